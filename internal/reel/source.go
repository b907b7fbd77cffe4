package reel

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Params are the named arguments passed to a metadata source.
type Params map[string]any

// MetadataSource fetches key/value metadata for a record.
//
// Fetch must fail with *MissingParameterError when a required parameter is
// absent from params. Callers resolve parameters with BindParams before a
// fetch so that missing values surface at staging time.
type MetadataSource interface {
	Name() string
	RequiredParams() []string
	OptionalParams() []string
	Fetch(ctx context.Context, params Params) (*MetadataBlock, error)
}

// CheckParams returns a *MissingParameterError naming every required
// parameter absent from params, or nil.
func CheckParams(src MetadataSource, params Params) error {
	var missing []string
	for _, name := range src.RequiredParams() {
		v, ok := params[name]
		if !ok || v == nil || FormatValue(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingParameterError{Source: src.Name(), Params: missing}
	}
	return nil
}

// BindParams resolves the source's parameters from the record. Built-in file
// attributes (path, filename, dir, stem, ext, fingerprint) are available in
// addition to resolved metadata keys.
func BindParams(src MetadataSource, r *MediaRecord) (Params, error) {
	params := make(Params)
	var missing []string
	for _, name := range src.RequiredParams() {
		v, ok := recordValue(r, name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		params[name] = v
	}
	if len(missing) > 0 {
		return nil, &MissingParameterError{Source: src.Name(), Params: missing}
	}
	for _, name := range src.OptionalParams() {
		if v, ok := recordValue(r, name); ok {
			params[name] = v
		}
	}
	return params, nil
}

// recordValue looks up a built-in attribute first and then resolves through
// the metadata layers.
func recordValue(r *MediaRecord, key string) (any, bool) {
	if v, ok := builtinValue(r, key); ok {
		return v, true
	}
	v, ok := r.Resolve(key)
	if !ok || v == nil || FormatValue(v) == "" {
		return nil, false
	}
	return v, true
}

// SourceRegistry is an explicit name to source table populated at startup.
type SourceRegistry struct {
	byName map[string]MetadataSource
}

var reservedSourceNames = map[string]bool{
	UserSource:  true,
	UserDataKey: true,
	FileDataKey: true,
}

// NewSourceRegistry registers sources by lowercased name. Empty, duplicate
// and reserved names are rejected.
func NewSourceRegistry(sources ...MetadataSource) (*SourceRegistry, error) {
	reg := &SourceRegistry{byName: make(map[string]MetadataSource, len(sources))}
	for _, s := range sources {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds one source.
func (r *SourceRegistry) Register(s MetadataSource) error {
	if s == nil {
		return fmt.Errorf("source must not be nil")
	}
	name := strings.ToLower(strings.TrimSpace(s.Name()))
	if name == "" {
		return fmt.Errorf("source name must not be empty")
	}
	if reservedSourceNames[name] {
		return fmt.Errorf("source name %q is reserved", name)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("duplicate source: %q", name)
	}
	r.byName[name] = s
	return nil
}

// Get looks up a source by name, case-insensitively.
func (r *SourceRegistry) Get(name string) (MetadataSource, bool) {
	if r == nil || r.byName == nil {
		return nil, false
	}
	s, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names returns the registered names, sorted.
func (r *SourceRegistry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
