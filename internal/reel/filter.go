package reel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FilterOp is a comparison operator in a filter expression.
type FilterOp byte

const (
	OpEqual   FilterOp = '='
	OpLess    FilterOp = '<'
	OpGreater FilterOp = '>'
)

// FilterExpr is a parsed "<key><op><value>" predicate.
type FilterExpr struct {
	Key   string
	Op    FilterOp
	Value string
}

func (f FilterExpr) String() string {
	return f.Key + string(f.Op) + f.Value
}

// leadingNumber matches a number at the start of a noisy string such as
// "1979 (remaster)".
var leadingNumber = regexp.MustCompile(`^\s*[-+]?(\d+(\.\d*)?|\.\d+)`)

// ParseFilter parses one expression. The first operator character splits key
// from value.
func ParseFilter(expr string) (FilterExpr, error) {
	idx := strings.IndexAny(expr, "=<>")
	if idx <= 0 {
		return FilterExpr{}, fmt.Errorf("invalid filter %q: expected <key><op><value> with op one of = < >", expr)
	}
	key := strings.TrimSpace(expr[:idx])
	if key == "" {
		return FilterExpr{}, fmt.Errorf("invalid filter %q: empty key", expr)
	}
	return FilterExpr{
		Key:   key,
		Op:    FilterOp(expr[idx]),
		Value: strings.TrimSpace(expr[idx+1:]),
	}, nil
}

// ParseFilters parses every expression and reports all malformed ones.
func ParseFilters(exprs []string) ([]FilterExpr, error) {
	var violations []error
	filters := make([]FilterExpr, 0, len(exprs))
	for _, e := range exprs {
		f, err := ParseFilter(e)
		if err != nil {
			violations = append(violations, err)
			continue
		}
		filters = append(filters, f)
	}
	if err := NewValidationError(violations); err != nil {
		return nil, err
	}
	return filters, nil
}

// Filter keeps records matching every filter, applied in sequence.
func Filter(records []*MediaRecord, filters ...FilterExpr) []*MediaRecord {
	out := records
	for _, f := range filters {
		var kept []*MediaRecord
		for _, r := range out {
			if f.Match(r) {
				kept = append(kept, r)
			}
		}
		out = kept
	}
	if out == nil {
		return []*MediaRecord{}
	}
	return out
}

// Match evaluates the predicate against the record's resolved value. A record
// without the key never matches.
func (f FilterExpr) Match(r *MediaRecord) bool {
	v, ok := recordValue(r, f.Key)
	if !ok {
		return false
	}
	return compareValue(v, f.Op, f.Value)
}

func compareValue(v any, op FilterOp, literal string) bool {
	text := FormatValue(v)
	lit, litNumeric := inferNumber(literal)
	val, valNumeric := numericValue(v, text)

	switch op {
	case OpEqual:
		if litNumeric && valNumeric {
			return val == lit
		}
		return strings.Contains(strings.ToLower(text), strings.ToLower(literal))
	case OpLess, OpGreater:
		if litNumeric {
			if !valNumeric {
				return false
			}
			if op == OpLess {
				return val < lit
			}
			return val > lit
		}
		cmp := strings.Compare(strings.ToLower(text), strings.ToLower(literal))
		if op == OpLess {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

func numericValue(v any, text string) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool, []any, []string, map[string]any:
		return 0, false
	}
	return inferNumber(text)
}

// inferNumber parses s as a number, tolerating trailing noise after a
// leading number.
func inferNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
