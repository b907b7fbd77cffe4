package reel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// fileData is the reserved block holding a record's file attributes.
type fileData struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	CapturedAt time.Time `json:"captured_at"`
}

// MarshalRecord encodes one record as a JSON object: the reserved file_data
// block, one key per source in name order, and the reserved user_data block.
func MarshalRecord(r *MediaRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	fd, err := json.Marshal(fileData{Path: r.Path(), Size: r.Size(), CapturedAt: r.CapturedAt().UTC()})
	if err != nil {
		return nil, fmt.Errorf("encoding file data: %w", err)
	}
	writeMember(&buf, FileDataKey, fd)

	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := r.sources[n].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding %s block: %w", n, err)
		}
		buf.WriteByte(',')
		writeMember(&buf, n, b)
	}

	if r.user != nil {
		b, err := r.user.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding user block: %w", err)
		}
		buf.WriteByte(',')
		writeMember(&buf, UserDataKey, b)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalRecord decodes an object written by MarshalRecord.
func UnmarshalRecord(fp Fingerprint, data []byte, order SourceOrder) (*MediaRecord, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", fp.Short(), err)
	}

	raw, ok := members[FileDataKey]
	if !ok {
		return nil, fmt.Errorf("record %s has no %s block", fp.Short(), FileDataKey)
	}
	var fd fileData
	if err := json.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("decoding %s of %s: %w", FileDataKey, fp.Short(), err)
	}

	// Block names are folded the way AttachSourceData folds them, so two
	// spellings of one source collide instead of shadowing each other.
	r := RestoreMediaRecord(fp, fd.Path, fd.CapturedAt, fd.Size, order)
	seen := make(map[string]string, len(members))
	for _, key := range sortedKeys(members) {
		if key == FileDataKey {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(key))
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("record %s has blocks %q and %q for the same source", fp.Short(), prev, key)
		}
		seen[name] = key
		if name == "" || (name != UserDataKey && reservedSourceNames[name]) {
			return nil, fmt.Errorf("record %s has a block with reserved name %q", fp.Short(), key)
		}

		block := &MetadataBlock{}
		if err := json.Unmarshal(members[key], block); err != nil {
			return nil, fmt.Errorf("decoding %s block of %s: %w", key, fp.Short(), err)
		}
		if name == UserDataKey {
			r.user = block
			continue
		}
		r.AttachSourceData(name, block)
	}
	return r, nil
}

// ExportCollection writes the collection as indented JSON keyed by
// fingerprint, in fingerprint order.
func ExportCollection(w io.Writer, c *Collection) error {
	records := c.Records()
	sort.Slice(records, func(i, j int) bool { return records[i].Fingerprint() < records[j].Fingerprint() })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range records {
		data, err := MarshalRecord(r)
		if err != nil {
			return err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		writeMember(&buf, string(r.Fingerprint()), data)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("formatting export: %w", err)
	}
	out.WriteByte('\n')
	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// ImportCollection reads a document written by ExportCollection.
func ImportCollection(r io.Reader, order SourceOrder) (*Collection, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding import: %w", err)
	}

	c := NewCollection()
	for _, key := range sortedKeys(doc) {
		if key == "" {
			return nil, fmt.Errorf("import contains an empty fingerprint")
		}
		rec, err := UnmarshalRecord(Fingerprint(key), doc[key], order)
		if err != nil {
			return nil, err
		}
		c.Add(rec)
	}
	return c, nil
}

func writeMember(buf *bytes.Buffer, key string, value []byte) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(value)
}
