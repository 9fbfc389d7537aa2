package compose

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeepMerge_DisjointSubtrees(t *testing.T) {
	fields := map[string]any{}
	deepMerge(fields, "user", map[string]any{"name": "x", "address": map[string]any{"city": "a"}})
	deepMerge(fields, "user", map[string]any{"email": "y", "address": map[string]any{"zip": "b"}})

	want := map[string]any{"user": map[string]any{
		"name":    "x",
		"email":   "y",
		"address": map[string]any{"city": "a", "zip": "b"},
	}}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestDeepMerge_ArraysOverwrite(t *testing.T) {
	fields := map[string]any{"items": []any{1, 2}}
	deepMerge(fields, "items", []any{3})
	if diff := cmp.Diff(map[string]any{"items": []any{3}}, fields); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestDeepMerge_ScalarsOverwrite(t *testing.T) {
	fields := map[string]any{"a": 1}
	deepMerge(fields, "a", 2)
	if fields["a"] != 2 {
		t.Fatalf("expected overwrite, got %v", fields["a"])
	}
}

// Associativity on disjoint structural keys: any grouping of the three
// merges yields the same tree. Fresh maps per side since merge adopts its
// inputs.
func TestDeepMerge_AssociativeForDisjointKeys(t *testing.T) {
	a := func() map[string]any { return map[string]any{"u": map[string]any{"x": 1}} }
	b := func() map[string]any { return map[string]any{"u": map[string]any{"y": 2}} }
	c := func() map[string]any { return map[string]any{"u": map[string]any{"z": 3}} }

	mergeInto := func(dst map[string]any, src map[string]any) {
		for k, v := range src {
			deepMerge(dst, k, v)
		}
	}

	left := map[string]any{}
	mergeInto(left, a())
	mergeInto(left, b())
	mergeInto(left, c())

	bc := map[string]any{}
	mergeInto(bc, b())
	mergeInto(bc, c())
	right := map[string]any{}
	mergeInto(right, a())
	mergeInto(right, bc)

	if diff := cmp.Diff(left, right); diff != "" {
		t.Fatalf("deep merge not associative (-left +right):\n%s", diff)
	}
}
