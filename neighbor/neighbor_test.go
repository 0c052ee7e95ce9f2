package neighbor

import (
	"testing"

	"github.com/rodyherrera/volterra/cell"
	"gonum.org/v1/gonum/spatial/r3"
)

func cubicCell(t *testing.T, a float64) *cell.Cell {
	t.Helper()
	c, err := cell.New(r3.Vec{X: a}, r3.Vec{Y: a}, r3.Vec{Z: a}, true, true, true, false)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func simpleCubicLattice(n int, a float64) []r3.Vec {
	var pts []r3.Vec
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				pts = append(pts, r3.Vec{X: float64(i) * a, Y: float64(j) * a, Z: float64(k) * a})
			}
		}
	}
	return pts
}

func TestCutoffFinderFindsLatticeNeighbors(t *testing.T) {
	a := 1.0
	pts := simpleCubicLattice(4, a)
	c := cubicCell(t, 4*a)
	f, err := NewCutoffFinder(pts, c, 1.1)
	if err != nil {
		t.Fatal(err)
	}
	// every atom in a periodic simple-cubic lattice has exactly 6 neighbors
	// within a cutoff just past the lattice spacing.
	for i := range pts {
		nbrs := f.Neighbors(i)
		if len(nbrs) != 6 {
			t.Fatalf("atom %d: got %d neighbors, want 6", i, len(nbrs))
		}
	}
}

func TestCutoffFinderTooSmallCell(t *testing.T) {
	pts := []r3.Vec{{}}
	c := cubicCell(t, 1.0)
	_, err := NewCutoffFinder(pts, c, 10.0)
	if err == nil {
		t.Fatal("expected CellTooSmall error")
	}
}

func TestKNNFinderOrdersByDistance(t *testing.T) {
	a := 1.0
	pts := simpleCubicLattice(4, a)
	c := cubicCell(t, 4*a)
	f := NewKNNFinder(pts, c, 3.0)
	res := f.Query(pts[0], 6, 0)
	if len(res) != 6 {
		t.Fatalf("got %d results, want 6", len(res))
	}
	for i := 1; i < len(res); i++ {
		if res[i].DistSq < res[i-1].DistSq {
			t.Fatalf("results not sorted ascending: %v", res)
		}
	}
	for _, r := range res {
		if r.DistSq < 0.99 || r.DistSq > 1.01 {
			t.Fatalf("expected nearest-neighbor distance ~1, got %v", r.DistSq)
		}
	}
}

func TestKNNFinderIncludeSelfExclusion(t *testing.T) {
	pts := simpleCubicLattice(2, 1.0)
	c := cubicCell(t, 2.0)
	f := NewKNNFinder(pts, c, 2.0)
	res := f.Query(pts[0], 1, 0)
	if len(res) != 1 {
		t.Fatalf("got %d results, want 1", len(res))
	}
	if res[0].DistSq == 0 {
		t.Fatal("query atom itself should have been excluded")
	}
}
