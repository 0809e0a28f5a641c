package filter

import (
	"reflect"
	"testing"
)

func TestNewCopiesInput(t *testing.T) {
	src := map[string]any{KeyAuthor: "alice"}
	s := New(src)

	src[KeyAuthor] = "bob"
	src[KeyTag] = "extra"

	if v, _ := s.Get(KeyAuthor); v != "alice" {
		t.Errorf("Get(author) = %v, want alice", v)
	}
	if s.Has(KeyTag) {
		t.Error("spec picked up a key added to the source map after New")
	}
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := New(map[string]any{KeyAuthor: "alice"})
	derived := base.With(KeyTag, "finance")

	if base.Has(KeyTag) {
		t.Error("With mutated the receiver")
	}
	if !derived.Has(KeyTag) || !derived.Has(KeyAuthor) {
		t.Errorf("derived spec missing predicates: keys = %v", derived.Keys())
	}
	if base.Len() != 1 || derived.Len() != 2 {
		t.Errorf("Len: base = %d, derived = %d", base.Len(), derived.Len())
	}
}

func TestWithDefaultExpiration(t *testing.T) {
	tests := []struct {
		name   string
		conds  map[string]any
		wantGT bool
	}{
		{"empty spec gets default", nil, true},
		{"unrelated keys get default", map[string]any{KeyAuthor: "alice"}, true},
		{"explicit start suppresses default", map[string]any{KeyExpirationStart: "2026-01-01"}, false},
		{"explicit end suppresses default", map[string]any{KeyExpirationEnd: "2026-12-31"}, false},
		{
			"explicit range suppresses default",
			map[string]any{KeyExpirationStart: "2026-01-01", KeyExpirationEnd: "2026-12-31"},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := New(tt.conds)
			eff := base.WithDefaultExpiration("2026-08-30")

			if got := eff.Has(KeyExpirationGT); got != tt.wantGT {
				t.Errorf("Has(expiration_date_gt) = %v, want %v", got, tt.wantGT)
			}
			if tt.wantGT {
				if v, _ := eff.Get(KeyExpirationGT); v != "2026-08-30" {
					t.Errorf("bound = %v, want 2026-08-30", v)
				}
			}
			if base.Has(KeyExpirationGT) {
				t.Error("WithDefaultExpiration mutated the receiver")
			}
		})
	}
}

func TestMapReturnsCopy(t *testing.T) {
	s := New(map[string]any{KeyAuthor: "alice"})
	m := s.Map()
	m[KeyAuthor] = "mallory"

	if v, _ := s.Get(KeyAuthor); v != "alice" {
		t.Errorf("mutating Map() result changed the spec: %v", v)
	}
}

func TestKeysSorted(t *testing.T) {
	s := New(map[string]any{"z": 1, "a": 2, "m": 3})
	want := []string{"a", "m", "z"}
	if got := s.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestEmptySpec(t *testing.T) {
	var s Spec
	if !s.IsEmpty() {
		t.Error("zero Spec should be empty")
	}
	if s.Map() != nil {
		t.Error("empty Spec Map() should be nil")
	}
	if New(nil).Len() != 0 {
		t.Error("New(nil) should be empty")
	}
}
