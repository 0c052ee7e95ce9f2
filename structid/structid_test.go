package structid

import (
	"math"
	"testing"

	"github.com/rodyherrera/volterra/linalg"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestIdentifyPerfectFCCUnrotated(t *testing.T) {
	tmpl := Templates()[0] // FCC
	neighbors := make([]r3.Vec, len(tmpl.Vectors))
	for i, v := range tmpl.Vectors {
		neighbors[i] = r3.Scale(2.5, v)
	}
	res := Identify(neighbors, DefaultRMSDThreshold)
	if res.Type != FCC {
		t.Fatalf("got %v, want FCC", res.Type)
	}
	if res.RMSD > 1e-4 {
		t.Fatalf("RMSD = %v, want ~0", res.RMSD)
	}
}

func TestIdentifyTooFewNeighborsIsOther(t *testing.T) {
	neighbors := []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	res := Identify(neighbors, DefaultRMSDThreshold)
	if res.Type != Other {
		t.Fatalf("got %v, want OTHER for an isolated atom with too few neighbors", res.Type)
	}
}

func TestIdentifyNoisyNeighborsRejected(t *testing.T) {
	tmpl := Templates()[0]
	neighbors := make([]r3.Vec, len(tmpl.Vectors))
	for i, v := range tmpl.Vectors {
		// large random-looking perturbation well beyond the RMSD threshold.
		noise := r3.Vec{X: 0.9 * float64(i%3-1), Y: 0.7 * float64((i+1)%3-1), Z: 0.5}
		neighbors[i] = r3.Add(r3.Scale(2.5, v), noise)
	}
	res := Identify(neighbors, 0.05)
	if res.Type == FCC && res.RMSD < 0.05 {
		t.Fatalf("expected noisy shell to fail strict threshold, got RMSD=%v", res.RMSD)
	}
}

func TestCubicDisorientationIdentity(t *testing.T) {
	d := CubicDisorientation(linalg.Identity3(), linalg.Identity3())
	if d > 1e-6 {
		t.Fatalf("disorientation of identical orientations = %v, want 0", d)
	}
}

func TestCubicDisorientationSymmetryEquivalent(t *testing.T) {
	// a 90-degree rotation about z is a cubic symmetry operation, so the
	// disorientation between identity and that rotation should be ~0.
	ang := math.Pi / 2
	r := linalg.Mat3{
		{math.Cos(ang), -math.Sin(ang), 0},
		{math.Sin(ang), math.Cos(ang), 0},
		{0, 0, 1},
	}
	d := CubicDisorientation(linalg.Identity3(), r)
	if d > 1e-3 {
		t.Fatalf("disorientation = %v, want ~0 (symmetry-equivalent)", d)
	}
}

func TestCubicDisorientationSmallTilt(t *testing.T) {
	ang := 5.0 * math.Pi / 180
	r := linalg.Mat3{
		{1, 0, 0},
		{0, math.Cos(ang), -math.Sin(ang)},
		{0, math.Sin(ang), math.Cos(ang)},
	}
	d := CubicDisorientation(linalg.Identity3(), r)
	if math.Abs(d-5) > 0.1 {
		t.Fatalf("disorientation = %v, want ~5 degrees", d)
	}
}
