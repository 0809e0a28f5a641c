package filter

import "sort"

// Recognized filter keys. Any other key is an exact match against the
// chunk metadata value under that key.
const (
	KeyAuthor          = "author"
	KeyTag             = "tag"
	KeyKeyword         = "keyword"
	KeyExpirationStart = "expiration_date_start"
	KeyExpirationEnd   = "expiration_date_end"
	KeyExpirationGT    = "expiration_date_gt"
)

// Spec is the set of named predicates narrowing which chunks are eligible
// for a search (immutable value object). Deriving a new Spec never mutates
// the original, so callers may share and reuse Spec values across requests.
type Spec struct {
	conds map[string]any
}

// New creates a Spec from a key-value mapping. The mapping is copied.
func New(conds map[string]any) Spec {
	if len(conds) == 0 {
		return Spec{}
	}
	c := make(map[string]any, len(conds))
	for k, v := range conds {
		c[k] = v
	}
	return Spec{conds: c}
}

// IsEmpty reports whether the spec has no predicates.
func (s Spec) IsEmpty() bool { return len(s.conds) == 0 }

// Len returns the number of predicates.
func (s Spec) Len() int { return len(s.conds) }

// Get returns the value for a filter key.
func (s Spec) Get(key string) (any, bool) {
	v, ok := s.conds[key]
	return v, ok
}

// Has reports whether the key is present.
func (s Spec) Has(key string) bool {
	_, ok := s.conds[key]
	return ok
}

// Keys returns the predicate keys in sorted order.
func (s Spec) Keys() []string {
	keys := make([]string, 0, len(s.conds))
	for k := range s.conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the predicates for serialization and logging.
func (s Spec) Map() map[string]any {
	if len(s.conds) == 0 {
		return nil
	}
	m := make(map[string]any, len(s.conds))
	for k, v := range s.conds {
		m[k] = v
	}
	return m
}

// With returns a derived Spec with one predicate added or replaced.
func (s Spec) With(key string, value any) Spec {
	c := make(map[string]any, len(s.conds)+1)
	for k, v := range s.conds {
		c[k] = v
	}
	c[key] = value
	return Spec{conds: c}
}

// WithDefaultExpiration derives the effective spec for the "not yet
// expired" default policy: unless the caller set an explicit expiration
// range, a strict expiration_date_gt bound at today is added to a copy.
// The receiver is never modified.
func (s Spec) WithDefaultExpiration(today string) Spec {
	if s.Has(KeyExpirationStart) || s.Has(KeyExpirationEnd) {
		return s
	}
	return s.With(KeyExpirationGT, today)
}
