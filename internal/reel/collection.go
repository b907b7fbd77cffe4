package reel

// Collection indexes media records by fingerprint. It is not safe for
// concurrent mutation; the service owns it.
type Collection struct {
	order   []Fingerprint
	records map[Fingerprint]*MediaRecord
}

func NewCollection() *Collection {
	return &Collection{records: make(map[Fingerprint]*MediaRecord)}
}

// Add inserts r or overwrites the record with the same fingerprint. It
// reports whether the fingerprint was new.
func (c *Collection) Add(r *MediaRecord) bool {
	fp := r.Fingerprint()
	if _, ok := c.records[fp]; ok {
		c.records[fp] = r
		return false
	}
	c.records[fp] = r
	c.order = append(c.order, fp)
	return true
}

// Remove eliminates records that are exactly the given instances and returns
// how many were removed. A different record sharing a fingerprint is kept.
func (c *Collection) Remove(records ...*MediaRecord) int {
	removed := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		cur, ok := c.records[r.Fingerprint()]
		if !ok || cur != r {
			continue
		}
		delete(c.records, r.Fingerprint())
		removed++
	}
	if removed > 0 {
		kept := c.order[:0]
		for _, fp := range c.order {
			if _, ok := c.records[fp]; ok {
				kept = append(kept, fp)
			}
		}
		c.order = kept
	}
	return removed
}

// Get returns the record for fp.
func (c *Collection) Get(fp Fingerprint) (*MediaRecord, bool) {
	r, ok := c.records[fp]
	return r, ok
}

func (c *Collection) Len() int { return len(c.records) }

// Records returns all records in insertion order.
func (c *Collection) Records() []*MediaRecord {
	out := make([]*MediaRecord, 0, len(c.order))
	for _, fp := range c.order {
		out = append(out, c.records[fp])
	}
	return out
}

// Select parses the filter expressions and applies them to every record.
func (c *Collection) Select(exprs ...string) ([]*MediaRecord, error) {
	filters, err := ParseFilters(exprs)
	if err != nil {
		return nil, err
	}
	return Filter(c.Records(), filters...), nil
}

// Missing returns records whose backing file no longer exists. They are
// reported, not removed.
func (c *Collection) Missing(fsmgr FilesystemManager) []*MediaRecord {
	var out []*MediaRecord
	for _, r := range c.Records() {
		if !exists(fsmgr, r.Path()) {
			out = append(out, r)
		}
	}
	return out
}
