package reel

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Reserved block names. The user block overrides every other source.
const (
	UserSource  = "user"
	UserDataKey = "user_data"
	FileDataKey = "file_data"
)

// hashChunkSize bounds memory use while fingerprinting large files.
const hashChunkSize = 64 * 1024

// Fingerprint is the lowercase hex SHA-256 of a file's content.
type Fingerprint string

// Short returns an abbreviated fingerprint for display.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// ComputeFingerprint hashes everything read from r.
func ComputeFingerprint(r io.Reader) (Fingerprint, int64, error) {
	h := sha256.New()
	n, err := io.CopyBuffer(h, r, make([]byte, hashChunkSize))
	if err != nil {
		return "", 0, fmt.Errorf("hashing content: %w", err)
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), n, nil
}

// FingerprintFile opens path through fsmgr and hashes its content.
func FingerprintFile(fsmgr FilesystemManager, path string) (Fingerprint, error) {
	r, err := fsmgr.Open(path)
	if err != nil {
		return "", notFoundOr(err, path)
	}
	defer r.Close()

	fp, _, err := ComputeFingerprint(r)
	if err != nil {
		return "", fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return fp, nil
}

// SourceOrder is the preference order used when resolving a key across
// metadata blocks. The user block is always consulted first and need not be
// listed.
type SourceOrder []string

// DefaultSourceOrder prefers file-intrinsic data, then external catalogs,
// then filename heuristics.
func DefaultSourceOrder() SourceOrder {
	return SourceOrder{"nfo", "web", "guess"}
}

// Arrange returns names ordered by preference. Names not in the order follow
// in sorted order so resolution is total.
func (o SourceOrder) Arrange(names []string) []string {
	rank := make(map[string]int, len(o))
	for i, n := range o {
		n = strings.ToLower(n)
		if _, ok := rank[n]; !ok {
			rank[n] = i
		}
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// MediaRecord describes one media file: its content fingerprint, file
// attributes and layered metadata from named sources.
type MediaRecord struct {
	fingerprint Fingerprint
	path        string
	capturedAt  time.Time
	size        int64
	order       SourceOrder
	sources     map[string]*MetadataBlock
	user        *MetadataBlock
}

// NewMediaRecord fingerprints the file at path and records its attributes.
func NewMediaRecord(fsmgr FilesystemManager, path string, order SourceOrder) (*MediaRecord, error) {
	r := &MediaRecord{order: order, sources: make(map[string]*MetadataBlock)}
	if err := r.RefreshFileAttributes(fsmgr, path, false); err != nil {
		return nil, err
	}
	return r, nil
}

// RestoreMediaRecord rebuilds a record from persisted attributes without
// touching the filesystem.
func RestoreMediaRecord(fp Fingerprint, path string, capturedAt time.Time, size int64, order SourceOrder) *MediaRecord {
	return &MediaRecord{
		fingerprint: fp,
		path:        path,
		capturedAt:  capturedAt,
		size:        size,
		order:       order,
		sources:     make(map[string]*MetadataBlock),
	}
}

func (r *MediaRecord) Fingerprint() Fingerprint { return r.fingerprint }
func (r *MediaRecord) Path() string             { return r.path }
func (r *MediaRecord) Dir() string              { return filepath.Dir(r.path) }
func (r *MediaRecord) Filename() string         { return filepath.Base(r.path) }
func (r *MediaRecord) CapturedAt() time.Time    { return r.capturedAt }
func (r *MediaRecord) Size() int64              { return r.size }

// RefreshFileAttributes re-derives path, timestamp and size from the file at
// path. The fingerprint is recomputed unless skipHash is set, which callers
// use right after a move when content is known to be unchanged.
func (r *MediaRecord) RefreshFileAttributes(fsmgr FilesystemManager, path string, skipHash bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	info, err := fsmgr.Stat(abs)
	if err != nil {
		return notFoundOr(err, abs)
	}
	if info.IsDir() {
		return fmt.Errorf("not a regular file: %s", abs)
	}
	if !skipHash || r.fingerprint == "" {
		fp, err := FingerprintFile(fsmgr, abs)
		if err != nil {
			return err
		}
		r.fingerprint = fp
	}
	r.path = abs
	r.capturedAt = info.ModTime()
	r.size = info.Size()
	return nil
}

// relocate points the record at path after a move. Content is unchanged so
// the fingerprint is kept. The path is updated even when the other
// attributes cannot be refreshed.
func (r *MediaRecord) relocate(fsmgr FilesystemManager, path string) error {
	r.path = path
	return r.RefreshFileAttributes(fsmgr, path, true)
}

// AttachSourceData replaces the block for name. The name "user" targets the
// override block.
func (r *MediaRecord) AttachSourceData(name string, block *MetadataBlock) {
	name = strings.ToLower(strings.TrimSpace(name))
	if block == nil {
		block = &MetadataBlock{}
	}
	if name == UserSource {
		r.user = block.Clone()
		return
	}
	if r.sources == nil {
		r.sources = make(map[string]*MetadataBlock)
	}
	r.sources[name] = block.Clone()
}

// RemoveSourceData drops the block for name and reports whether it existed.
func (r *MediaRecord) RemoveSourceData(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == UserSource {
		existed := r.user != nil
		r.user = nil
		return existed
	}
	if _, ok := r.sources[name]; !ok {
		return false
	}
	delete(r.sources, name)
	return true
}

// SourceData returns a copy of the block for name.
func (r *MediaRecord) SourceData(name string) (*MetadataBlock, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == UserSource {
		if r.user == nil {
			return nil, false
		}
		return r.user.Clone(), true
	}
	b, ok := r.sources[name]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// SetUserData sets one override value.
func (r *MediaRecord) SetUserData(key string, value any) {
	if r.user == nil {
		r.user = &MetadataBlock{}
	}
	r.user.Set(key, value)
}

// SourceNames returns the names of attached non-user blocks in preference
// order.
func (r *MediaRecord) SourceNames() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	return r.order.Arrange(names)
}

// Resolve returns the first value for key walking the user block and then
// the preference order. Key lookup is case-insensitive.
func (r *MediaRecord) Resolve(key string) (any, bool) {
	if v, ok := r.user.Get(key); ok {
		return v, true
	}
	for _, name := range r.SourceNames() {
		if v, ok := r.sources[name].Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

// ResolveDefault is Resolve with a fallback value.
func (r *MediaRecord) ResolveDefault(key string, def any) any {
	if v, ok := r.Resolve(key); ok {
		return v
	}
	return def
}

// ResolveString resolves key and formats the value as text.
func (r *MediaRecord) ResolveString(key string) (string, bool) {
	v, ok := r.Resolve(key)
	if !ok || v == nil {
		return "", false
	}
	s := FormatValue(v)
	return s, s != ""
}

// SetOrder replaces the preference order used by Resolve.
func (r *MediaRecord) SetOrder(order SourceOrder) { r.order = order }

// FormatValue renders a metadata value as text. Whole floats print without a
// fractional part so JSON-decoded years stay "1979".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, FormatValue(e))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(x, ", ")
	default:
		return fmt.Sprint(x)
	}
}

// notFoundOr converts not-exist errors into NotFoundError and wraps others.
func notFoundOr(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrNotFound) {
		return &NotFoundError{Path: path}
	}
	return fmt.Errorf("accessing %s: %w", path, err)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
