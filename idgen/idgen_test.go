package idgen

import (
	"sort"
	"strings"
	"testing"
)

func TestUUIDv7Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("length = %d, want 36 (%q)", len(id), id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("got %d groups in %q, want 5", len(parts), id)
	}
}

func TestUUIDv7SortsByCreation(t *testing.T) {
	gen := UUIDv7()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("sequential v7 ids are not lexically ordered")
	}
}

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("step_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "step_") {
		t.Fatalf("id = %q, want step_ prefix", id)
	}
	if len(id) != len("step_")+36 {
		t.Fatalf("length = %d, want %d", len(id), len("step_")+36)
	}
}
