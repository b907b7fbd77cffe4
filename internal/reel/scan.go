package reel

import (
	"context"
	"errors"
	"fmt"
)

// ScanResult counts what a scan did.
type ScanResult struct {
	Found   int // media files seen
	Added   int // new records
	Updated int // existing records refreshed
	Skipped int // unreadable files or duplicate content
}

// Scan fingerprints media files under root and adds them to the collection.
// Rescanning an unchanged file refreshes its record in place. A file whose
// content changed gets a new record that inherits the old record's metadata.
// Configured scan sources are fetched and attached directly.
func (s *Service) Scan(ctx context.Context, root *Path, recursive bool) (*ScanResult, error) {
	if err := s.load(); err != nil {
		return nil, err
	}

	var paths []*Path
	if root.IsDir() {
		found, err := s.fsmgr.FindFiles(root, recursive)
		if err != nil {
			return nil, fmt.Errorf("finding files: %w", err)
		}
		paths = found
	} else {
		paths = []*Path{root}
	}

	byPath := make(map[string]*MediaRecord, s.collection.Len())
	for _, r := range s.collection.Records() {
		byPath[r.Path()] = r
	}

	result := &ScanResult{}
	var changed []*MediaRecord
	var stale []Fingerprint

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !s.exts[p.Ext()] {
			continue
		}
		result.Found++

		rec, err := NewMediaRecord(s.fsmgr, p.String(), s.settings.Order)
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", p.String(), "error", err)
			result.Skipped++
			continue
		}

		if existing, ok := s.collection.Get(rec.Fingerprint()); ok {
			if existing.Path() != rec.Path() && exists(s.fsmgr, existing.Path()) {
				s.logger.Warn("duplicate content", "path", rec.Path(), "existing", existing.Path())
				result.Skipped++
				continue
			}
			if err := existing.RefreshFileAttributes(s.fsmgr, rec.Path(), true); err != nil {
				s.logger.Warn("refreshing record", "path", rec.Path(), "error", err)
				result.Skipped++
				continue
			}
			byPath[existing.Path()] = existing
			changed = append(changed, existing)
			result.Updated++
			continue
		}

		if old, ok := byPath[rec.Path()]; ok && old.Fingerprint() != rec.Fingerprint() {
			s.logger.Info("content changed", "path", rec.Path(), "old", old.Fingerprint().Short(), "new", rec.Fingerprint().Short())
			inherit(rec, old)
			s.collection.Remove(old)
			stale = append(stale, old.Fingerprint())
		}

		s.fetchScanSources(ctx, rec)
		s.collection.Add(rec)
		byPath[rec.Path()] = rec
		changed = append(changed, rec)
		result.Added++
		s.logger.Debug("record added", "path", rec.Path(), "fingerprint", rec.Fingerprint().Short())
	}

	if len(stale) > 0 {
		if err := s.database.DeleteRecords(stale); err != nil {
			return result, fmt.Errorf("deleting stale records: %w", err)
		}
	}
	if err := s.database.SaveRecords(changed); err != nil {
		return result, fmt.Errorf("saving records: %w", err)
	}
	return result, nil
}

// fetchScanSources attaches data from every configured scan source. Sources
// the record cannot supply parameters for are skipped.
func (s *Service) fetchScanSources(ctx context.Context, rec *MediaRecord) {
	for _, name := range s.settings.ScanSources {
		src, ok := s.sources.Get(name)
		if !ok {
			s.logger.Warn("unknown scan source", "source", name)
			continue
		}
		params, err := BindParams(src, rec)
		if err != nil {
			if errors.Is(err, ErrMissingParameter) {
				s.logger.Debug("skipping scan source", "source", name, "path", rec.Path(), "error", err)
			}
			continue
		}
		block, err := src.Fetch(ctx, params)
		if err != nil {
			s.logger.Warn("scan source failed", "source", name, "path", rec.Path(), "error", err)
			continue
		}
		rec.AttachSourceData(src.Name(), block)
	}
}

func inherit(dst, src *MediaRecord) {
	for name, b := range src.sources {
		dst.sources[name] = b.Clone()
	}
	dst.user = src.user.Clone()
}
