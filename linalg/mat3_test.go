package linalg

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestIdentityMulVec(t *testing.T) {
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	got := Identity3().MulVec(v)
	if got != v {
		t.Fatalf("identity*v = %v, want %v", got, v)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Mat3{
		{2, 0, 0},
		{0, 3, 0},
		{1, 1, 4},
	}
	inv := m.Inverse()
	prod := m.Mul(inv)
	if !prod.ApproxEqual(Identity3(), 1e-9) {
		t.Fatalf("m*inv(m) = %v, want identity", prod)
	}
}

func TestHornAlignIdentity(t *testing.T) {
	tmpl := []r3.Vec{
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: -1, Y: 0, Z: 0},
	}
	// neighbors are the template scaled by 2, unrotated.
	nbrs := make([]r3.Vec, len(tmpl))
	for i, v := range tmpl {
		nbrs[i] = r3.Scale(2, v)
	}
	res := HornAlign(tmpl, nbrs)
	if res.RMSD > 1e-6 {
		t.Fatalf("RMSD = %v, want ~0", res.RMSD)
	}
	if !res.Rotation.ApproxEqual(Identity3(), 1e-6) {
		t.Fatalf("rotation = %v, want identity", res.Rotation)
	}
	if res.Scale < 1.9 || res.Scale > 2.1 {
		t.Fatalf("scale = %v, want ~2", res.Scale)
	}
}
