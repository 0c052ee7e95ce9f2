package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// HornAlignment is the result of fitting a neighbor point set onto a
// reference template by the Horn/Kabsch minimum-RMSD rotation.
type HornAlignment struct {
	Rotation Mat3    // best-fit rotation taking template directions to neighbor directions
	RMSD     float64 // root-mean-square residual after alignment, in units of Scale
	Scale    float64 // average neighbor distance (interatomic distance proxy)
}

// HornAlign computes the rotation that best aligns the unit reference
// template vectors onto the (already centered) neighbor vectors, by SVD of
// their cross-covariance matrix (Kabsch algorithm). template and neighbors
// must have the same length and be index-corresponded already; the caller
// (structid) is responsible for trying candidate correspondences.
func HornAlign(template, neighbors []r3.Vec) HornAlignment {
	n := len(template)
	if n == 0 || len(neighbors) != n {
		return HornAlignment{Rotation: Identity3(), RMSD: math.Inf(1)}
	}

	// scale: average neighbor distance, used to normalize RMSD into a
	// dimensionless shape residual.
	var sumLen float64
	for _, v := range neighbors {
		sumLen += r3.Norm(v)
	}
	scale := sumLen / float64(n)
	if scale == 0 {
		return HornAlignment{Rotation: Identity3(), RMSD: math.Inf(1)}
	}

	// cross-covariance H = sum_i template_i * neighbors_i^T
	h := mat.NewDense(3, 3, nil)
	for i := 0; i < n; i++ {
		t := template[i]
		q := r3.Scale(1/scale, neighbors[i])
		tv := []float64{t.X, t.Y, t.Z}
		qv := []float64{q.X, q.Y, q.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+tv[r]*qv[c])
			}
		}
	}

	var svd mat.SVD
	ok := svd.Factorize(h, mat.SVDFull)
	if !ok {
		return HornAlignment{Rotation: Identity3(), RMSD: math.Inf(1), Scale: scale}
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V * U^T, with a reflection correction so det(R) == +1.
	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := mat.Det(&vut)
	if d < 0 {
		// flip the sign of V's last column and recompute.
		for r := 0; r < 3; r++ {
			v.Set(r, 2, -v.At(r, 2))
		}
		vut.Mul(&v, u.T())
	}

	var rot Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rot[r][c] = vut.At(r, c)
		}
	}

	// RMSD of the rotated template against the (scaled) neighbors.
	var sq float64
	for i := 0; i < n; i++ {
		t := template[i]
		q := r3.Scale(1/scale, neighbors[i])
		rt := rot.MulVec(t)
		d := r3.Sub(rt, q)
		sq += r3.Dot(d, d)
	}
	rmsd := math.Sqrt(sq / float64(n))

	return HornAlignment{Rotation: rot, RMSD: rmsd, Scale: scale}
}
