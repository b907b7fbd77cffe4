package reel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MetadataBlock is a case-insensitive, insertion-ordered key/value map.
// Keys keep the spelling they were first set with; lookups fold case.
type MetadataBlock struct {
	keys   []string
	values map[string]any // lowercased key -> value
}

// NewMetadataBlock builds a block from a plain map. Keys are inserted in
// sorted order so the result is deterministic.
func NewMetadataBlock(m map[string]any) *MetadataBlock {
	b := &MetadataBlock{}
	for _, k := range sortedKeys(m) {
		b.Set(k, m[k])
	}
	return b
}

// Set stores value under key. Setting a key that differs from an existing
// one only by case replaces the value and keeps the original spelling.
func (b *MetadataBlock) Set(key string, value any) {
	if b.values == nil {
		b.values = make(map[string]any)
	}
	lk := strings.ToLower(key)
	if _, ok := b.values[lk]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[lk] = value
}

// Get looks up key case-insensitively.
func (b *MetadataBlock) Get(key string) (any, bool) {
	if b == nil || b.values == nil {
		return nil, false
	}
	v, ok := b.values[strings.ToLower(key)]
	return v, ok
}

// Delete removes key, reporting whether it was present.
func (b *MetadataBlock) Delete(key string) bool {
	if b == nil || b.values == nil {
		return false
	}
	lk := strings.ToLower(key)
	if _, ok := b.values[lk]; !ok {
		return false
	}
	delete(b.values, lk)
	for i, k := range b.keys {
		if strings.ToLower(k) == lk {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns keys in insertion order with their original spelling.
func (b *MetadataBlock) Keys() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.keys...)
}

func (b *MetadataBlock) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Clone returns an independent copy. Nested slices and maps are shared, the
// block itself is not.
func (b *MetadataBlock) Clone() *MetadataBlock {
	if b == nil {
		return nil
	}
	c := &MetadataBlock{
		keys:   append([]string(nil), b.keys...),
		values: make(map[string]any, len(b.values)),
	}
	for k, v := range b.values {
		c.values[k] = v
	}
	return c
}

// Map returns the block as a plain map keyed by original spelling.
func (b *MetadataBlock) Map() map[string]any {
	m := make(map[string]any, b.Len())
	if b == nil {
		return m
	}
	for _, k := range b.keys {
		m[k] = b.values[strings.ToLower(k)]
	}
	return m
}

// MarshalJSON writes the block as a JSON object in insertion order.
func (b *MetadataBlock) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(b.values[strings.ToLower(k)])
		if err != nil {
			return nil, fmt.Errorf("encoding value for %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the document's key order.
func (b *MetadataBlock) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata block must be a JSON object")
	}
	*b = MetadataBlock{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata block key must be a string")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding value for %q: %w", key, err)
		}
		b.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
