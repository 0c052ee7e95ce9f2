package smooth

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func straightLine(n int) *Polyline {
	pts := make([]r3.Vec, n)
	core := make([]int, n)
	for i := range pts {
		pts[i] = r3.Vec{X: float64(i)}
		core[i] = 1
	}
	return &Polyline{Points: pts, CoreSize: core}
}

func TestSmoothPinsEndpoints(t *testing.T) {
	p := straightLine(8)
	p.Points[4].Y = 3 // kink the middle
	orig0, origN := p.Points[0], p.Points[len(p.Points)-1]
	Smooth(p, 4)
	if p.Points[0] != orig0 || p.Points[len(p.Points)-1] != origN {
		t.Fatalf("endpoints moved: %v, %v", p.Points[0], p.Points[len(p.Points)-1])
	}
}

func TestSmoothReducesKink(t *testing.T) {
	p := straightLine(9)
	p.Points[4].Y = 5
	before := math.Abs(p.Points[4].Y)
	Smooth(p, 6)
	after := math.Abs(p.Points[4].Y)
	if after >= before {
		t.Fatalf("kink not reduced: before=%v after=%v", before, after)
	}
}

func TestCoarsenBypassesShortPolylines(t *testing.T) {
	p := straightLine(4)
	orig := append([]r3.Vec(nil), p.Points...)
	Coarsen(p, 100)
	if len(p.Points) != len(orig) {
		t.Fatalf("short polyline should bypass coarsening, got len %d", len(p.Points))
	}
}

func TestCoarsenMergesCloseRuns(t *testing.T) {
	p := straightLine(20)
	Coarsen(p, 1.5)
	if len(p.Points) >= 20 {
		t.Fatalf("expected coarsening to reduce point count, got %d", len(p.Points))
	}
	if p.Points[0] != (r3.Vec{X: 0}) {
		t.Fatalf("start endpoint should be pinned, got %v", p.Points[0])
	}
}

func TestSmoothLoopHasNoPinnedEndpoints(t *testing.T) {
	n := 12
	pts := make([]r3.Vec, n)
	for i := range pts {
		ang := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r3.Vec{X: math.Cos(ang), Y: math.Sin(ang)}
	}
	pts[0].Y += 0.5 // perturb one point
	p := &Polyline{Points: pts, IsLoop: true}
	Smooth(p, 3)
	if p.Points[0].Y == 0.5 {
		t.Fatal("loop point 0 should not stay pinned at its perturbed value")
	}
}
