package catalog

import (
	"math"
	"sort"
	"testing"
)

func TestBBoxIoU(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b BBox
		want float64
	}{
		{name: "identical", a: BBox{0, 0, 10, 10}, b: BBox{0, 0, 10, 10}, want: 1},
		{name: "disjoint", a: BBox{0, 0, 10, 10}, b: BBox{20, 20, 10, 10}, want: 0},
		{name: "touching edges", a: BBox{0, 0, 10, 10}, b: BBox{10, 0, 10, 10}, want: 0},
		{name: "half overlap", a: BBox{0, 0, 10, 10}, b: BBox{5, 0, 10, 10}, want: 50.0 / 150.0},
		{name: "contained", a: BBox{0, 0, 10, 10}, b: BBox{0, 0, 5, 5}, want: 0.25},
		{name: "degenerate", a: BBox{0, 0, 0, 0}, b: BBox{0, 0, 0, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.IoU(tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU = %v, want %v", got, tt.want)
			}
			if rev := tt.b.IoU(tt.a); math.Abs(rev-got) > 1e-12 {
				t.Errorf("IoU not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestNewSortableIDIsOrdered(t *testing.T) {
	t.Parallel()

	ids := make([]string, 200)
	for i := range ids {
		ids[i] = NewSortableID()
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("NewSortableID values are not in creation order")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
