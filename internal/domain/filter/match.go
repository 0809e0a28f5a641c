package filter

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/chishiki/internal/domain/chunk"
)

// Rejection names the predicate that excluded a chunk, for diagnostics.
type Rejection struct {
	Key    string
	Reason string
}

// Match reports whether the chunk satisfies every predicate in the spec.
// An empty spec matches every chunk. Predicates are independent and
// side-effect-free, so evaluation order does not affect the result.
func Match(c chunk.Chunk, s Spec) bool {
	ok, _ := Evaluate(c, s)
	return ok
}

// Evaluate is Match with the first failing predicate reported.
//
// Expiration semantics for chunks without an expiration_date:
// expiration_date_gt excludes them (a chunk must carry a date to count as
// "not yet expired"), while expiration_date_start/expiration_date_end only
// constrain chunks that carry one. Date comparison is lexicographic over
// the fixed-width YYYY-MM-DD form.
func Evaluate(c chunk.Chunk, s Spec) (bool, Rejection) {
	for key, value := range s.conds {
		if rej, ok := evaluateKey(c, key, value); !ok {
			return false, rej
		}
	}
	return true, Rejection{}
}

func evaluateKey(c chunk.Chunk, key string, value any) (Rejection, bool) {
	switch key {
	case KeyExpirationGT:
		bound, ok := value.(string)
		if !ok {
			return Rejection{key, "bound is not a date string"}, false
		}
		exp, has := c.ExpirationDate()
		if !has {
			return Rejection{key, "expiration date not set"}, false
		}
		if exp <= bound {
			return Rejection{key, fmt.Sprintf("expired: %s <= %s", exp, bound)}, false
		}

	case KeyExpirationStart:
		bound, ok := value.(string)
		if !ok {
			return Rejection{key, "bound is not a date string"}, false
		}
		if exp, has := c.ExpirationDate(); has && exp < bound {
			return Rejection{key, fmt.Sprintf("before range: %s < %s", exp, bound)}, false
		}

	case KeyExpirationEnd:
		bound, ok := value.(string)
		if !ok {
			return Rejection{key, "bound is not a date string"}, false
		}
		if exp, has := c.ExpirationDate(); has && exp > bound {
			return Rejection{key, fmt.Sprintf("after range: %s > %s", exp, bound)}, false
		}

	case KeyAuthor:
		if c.MetaString(chunk.MetaAuthor) != value {
			return Rejection{key, "author mismatch"}, false
		}

	case KeyTag:
		if !anyTagPresent(c.Tags(), value) {
			return Rejection{key, "no requested tag present"}, false
		}

	case KeyKeyword:
		kw, ok := value.(string)
		if !ok {
			return Rejection{key, "keyword is not a string"}, false
		}
		if !strings.Contains(strings.ToLower(c.Text()), strings.ToLower(kw)) {
			return Rejection{key, "keyword not in text"}, false
		}

	default:
		// Forward-compatible: unrecognized keys are exact matches against
		// the metadata value; an absent metadata key never matches.
		v, has := c.Meta(key)
		if !has || !equalMeta(v, value) {
			return Rejection{key, "metadata mismatch"}, false
		}
	}
	return Rejection{}, true
}

// anyTagPresent reports whether any requested tag is in the chunk's tag set.
// The request value may be a single tag or a collection of tags.
func anyTagPresent(tags []string, value any) bool {
	have := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		have[t] = struct{}{}
	}
	switch want := value.(type) {
	case string:
		_, ok := have[want]
		return ok
	case []string:
		for _, w := range want {
			if _, ok := have[w]; ok {
				return true
			}
		}
	case []any:
		for _, w := range want {
			if s, ok := w.(string); ok {
				if _, ok := have[s]; ok {
					return true
				}
			}
		}
	}
	return false
}

// equalMeta compares a metadata value with a filter value. Both sides
// typically come from JSON, so numbers are compared as float64.
func equalMeta(a, b any) bool {
	if na, aok := asFloat(a); aok {
		nb, bok := asFloat(b)
		return bok && na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
