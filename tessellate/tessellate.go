// Package tessellate builds a 3-D Delaunay tessellation over primary atoms
// plus their periodic-image ghosts. No ready-made pure-Go 3-D Delaunay
// library turned up anywhere in the retrieved pack (none of the teacher-
// eligible repos, nor the other_examples sweep, import one), so this is
// grounded directly in the original delaunay_tessellation.cpp's ghost-layer
// construction (stencil counts, slab clipping by cell-normal projection) and
// reimplements its incremental-insertion Delaunay algorithm in plain Go,
// rather than the GEO::Delaunay3d backend the original wraps. See
// DESIGN.md for the standard-library justification this component requires.
package tessellate

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/cell"
	"github.com/rodyherrera/volterra/errs"
)

// Vertex is one tessellation point: either a primary (wrapped + jittered)
// atom position or a periodic ghost image of one.
type Vertex struct {
	Position  r3.Vec
	AtomIndex int
	IsGhost   bool
	Shift     [3]int
}

// Tetrahedron is one cell of the Delaunay complex.
type Tetrahedron struct {
	V       [4]int // indices into Tessellation.Vertices
	IsGhost bool
	Index   int // dense index among primary (non-ghost) tetrahedra, -1 if ghost
}

// Tessellation is the built Delaunay complex.
type Tessellation struct {
	Vertices          []Vertex
	Tetrahedra        []Tetrahedron
	numPrimaryVerts   int
	maxNeighborDistance float64
}

// jitterEpsilon bounds the deterministic coplanarity-breaking perturbation.
const jitterEpsilon = 2e-5

// deterministicJitter returns a small per-atom, per-component pseudo-random
// offset in [-jitterEpsilon, jitterEpsilon], derived from the atom index so
// repeated runs over the same input are bit-identical.
func deterministicJitter(atomIndex, component int) float64 {
	h := uint64(atomIndex)*2654435761 + uint64(component)*40503 + 1
	h ^= h >> 13
	h *= 0x2545F4914F6CDD1D
	h ^= h >> 17
	frac := float64(h%1000003) / 1000003.0 // in [0,1)
	return (frac*2 - 1) * jitterEpsilon
}

// Build constructs the tessellation over wrapped+jittered primary vertices
// and a periodic ghost layer of at least maxNeighborDistance thickness.
func Build(positions []r3.Vec, c *cell.Cell, maxNeighborDistance float64) (*Tessellation, error) {
	primary := make([]Vertex, len(positions))
	for i, p := range positions {
		wp := c.WrapPoint(p)
		jittered := r3.Vec{
			X: wp.X + deterministicJitter(i, 0),
			Y: wp.Y + deterministicJitter(i, 1),
			Z: wp.Z + deterministicJitter(i, 2),
		}
		primary[i] = Vertex{Position: jittered, AtomIndex: i}
	}

	ghosts := buildGhostLayer(primary, c, maxNeighborDistance)
	verts := append(primary, ghosts...)

	t := &Tessellation{Vertices: verts, numPrimaryVerts: len(primary), maxNeighborDistance: maxNeighborDistance}
	if err := t.triangulate(); err != nil {
		return nil, err
	}
	t.classifyAndIndex()
	return t, nil
}

// buildGhostLayer replicates primary vertices along periodic axes, clipped
// to a slab of thickness h beyond the cell, matching the original's stencil-
// count/cut-plane construction.
func buildGhostLayer(primary []Vertex, c *cell.Cell, h float64) []Vertex {
	var normals [3]r3.Vec
	var cuts [3][2]float64
	var stencil [3]int
	for d := 0; d < 3; d++ {
		normals[d] = c.CellNormalVector(d)
		lo := r3.Dot(normals[d], c.ReducedToAbsolute(r3.Vec{}))
		hi := r3.Dot(normals[d], c.ReducedToAbsolute(r3.Vec{X: 1, Y: 1, Z: 1}))
		cuts[d][0] = lo - h
		cuts[d][1] = hi + h
		if c.PBC[d] {
			axisProj := r3.Dot(c.AxisVector(d), normals[d])
			stencil[d] = int(math.Ceil(h / axisProj))
		} else {
			stencil[d] = 0
		}
	}

	var ghosts []Vertex
	for ix := -stencil[0]; ix <= stencil[0]; ix++ {
		for iy := -stencil[1]; iy <= stencil[1]; iy++ {
			for iz := -stencil[2]; iz <= stencil[2]; iz++ {
				if ix == 0 && iy == 0 && iz == 0 {
					continue
				}
				shift := c.ReducedToAbsolute(r3.Vec{X: float64(ix), Y: float64(iy), Z: float64(iz)})
				for _, v := range primary {
					p := r3.Add(v.Position, shift)
					clipped := false
					for d := 0; d < 3; d++ {
						proj := r3.Dot(normals[d], p)
						if proj < cuts[d][0] || proj > cuts[d][1] {
							clipped = true
							break
						}
					}
					if !clipped {
						ghosts = append(ghosts, Vertex{
							Position: p, AtomIndex: v.AtomIndex, IsGhost: true,
							Shift: [3]int{ix, iy, iz},
						})
					}
				}
			}
		}
	}
	return ghosts
}

// classifyAndIndex marks each tetrahedron ghost iff its min-index vertex is
// a ghost replica, then assigns dense indices to the primary (non-ghost)
// tetrahedra in scan order.
func (t *Tessellation) classifyAndIndex() {
	next := 0
	for i := range t.Tetrahedra {
		tet := &t.Tetrahedra[i]
		head := tet.V[0]
		for _, v := range tet.V[1:] {
			if v < head {
				head = v
			}
		}
		tet.IsGhost = t.Vertices[head].IsGhost
		if tet.IsGhost {
			tet.Index = -1
		} else {
			tet.Index = next
			next++
		}
	}
}

// AlphaTest computes the tetrahedron's squared circumradius (the same
// lifted-determinant formula opendxa's alphaTest uses) and reports whether
// it is below alpha.
func (t *Tessellation) AlphaTest(tetIdx int, alpha float64) bool {
	tet := t.Tetrahedra[tetIdx]
	v0 := t.Vertices[tet.V[0]].Position
	v1 := t.Vertices[tet.V[1]].Position
	v2 := t.Vertices[tet.V[2]].Position
	v3 := t.Vertices[tet.V[3]].Position
	return alphaTest(v0, v1, v2, v3, alpha)
}

func alphaTest(v0, v1, v2, v3 r3.Vec, alpha float64) bool {
	qp := r3.Sub(v1, v0)
	rp := r3.Sub(v2, v0)
	sp := r3.Sub(v3, v0)
	qp2 := r3.Dot(qp, qp)
	rp2 := r3.Dot(rp, rp)
	sp2 := r3.Dot(sp, sp)

	numX := det3(qp.Y, qp.Z, qp2, rp.Y, rp.Z, rp2, sp.Y, sp.Z, sp2)
	numY := det3(qp.X, qp.Z, qp2, rp.X, rp.Z, rp2, sp.X, sp.Z, sp2)
	numZ := det3(qp.X, qp.Y, qp2, rp.X, rp.Y, rp2, sp.X, sp.Y, sp2)
	den := det3(qp.X, qp.Y, qp.Z, rp.X, rp.Y, rp.Z, sp.X, sp.Y, sp.Z)
	if den == 0 {
		return false
	}
	return (numX*numX+numY*numY+numZ*numZ)/(4*den*den) < alpha
}

func det3(a00, a01, a02, a10, a11, a12, a20, a21, a22 float64) float64 {
	return a00*a11*a22 + a01*a12*a20 + a02*a10*a21 -
		a02*a11*a20 - a01*a10*a22 - a00*a12*a21
}

// triangulate runs Bowyer-Watson incremental insertion over t.Vertices,
// starting from one enclosing super-tetrahedron and discarding it (and any
// tetrahedra that still touch it) at the end.
func (t *Tessellation) triangulate() error {
	if len(t.Vertices) < 4 {
		return &errs.TessellationFailed{Reason: "fewer than four points"}
	}

	superBase := len(t.Vertices)
	superVerts := superTetrahedron(t.Vertices)
	pts := append(append([]Vertex(nil), t.Vertices...), superVerts...)

	tets := []Tetrahedron{{V: [4]int{superBase, superBase + 1, superBase + 2, superBase + 3}}}
	orientPositive(pts, &tets[0])

	for i := 0; i < superBase; i++ {
		p := pts[i].Position
		var bad []int
		for ti, tet := range tets {
			if inCircumsphere(pts, tet, p) {
				bad = append(bad, ti)
			}
		}
		if len(bad) == 0 {
			continue // degenerate/duplicate point; skip rather than fail the whole build
		}

		boundary := boundaryFaces(tets, bad)
		tets = removeIndices(tets, bad)

		for _, f := range boundary {
			nt := Tetrahedron{V: [4]int{f[0], f[1], f[2], i}}
			orientPositive(pts, &nt)
			tets = append(tets, nt)
		}
	}

	final := tets[:0]
	for _, tet := range tets {
		touchesSuper := false
		for _, v := range tet.V {
			if v >= superBase {
				touchesSuper = true
				break
			}
		}
		if !touchesSuper {
			final = append(final, tet)
		}
	}
	if len(final) == 0 {
		return &errs.TessellationFailed{Reason: "no tetrahedra survived super-tetrahedron removal"}
	}
	t.Tetrahedra = final
	return nil
}

// superTetrahedron returns four points forming one tetrahedron that strictly
// encloses every input vertex, built from the bounding box center and
// radius scaled generously.
func superTetrahedron(verts []Vertex) []Vertex {
	lo, hi := verts[0].Position, verts[0].Position
	for _, v := range verts {
		lo = r3.Vec{X: math.Min(lo.X, v.Position.X), Y: math.Min(lo.Y, v.Position.Y), Z: math.Min(lo.Z, v.Position.Z)}
		hi = r3.Vec{X: math.Max(hi.X, v.Position.X), Y: math.Max(hi.Y, v.Position.Y), Z: math.Max(hi.Z, v.Position.Z)}
	}
	center := r3.Scale(0.5, r3.Add(lo, hi))
	radius := r3.Norm(r3.Sub(hi, lo)) + 1
	scale := radius * 20

	return []Vertex{
		{Position: r3.Add(center, r3.Vec{X: 0, Y: 0, Z: scale})},
		{Position: r3.Add(center, r3.Vec{X: scale, Y: 0, Z: -scale})},
		{Position: r3.Add(center, r3.Vec{X: -scale, Y: scale, Z: -scale})},
		{Position: r3.Add(center, r3.Vec{X: -scale, Y: -scale, Z: -scale})},
	}
}

func orientPositive(pts []Vertex, tet *Tetrahedron) {
	if orient3D(pts[tet.V[0]].Position, pts[tet.V[1]].Position, pts[tet.V[2]].Position, pts[tet.V[3]].Position) < 0 {
		tet.V[0], tet.V[1] = tet.V[1], tet.V[0]
	}
}

func orient3D(a, b, c, d r3.Vec) float64 {
	ad := r3.Sub(a, d)
	bd := r3.Sub(b, d)
	cd := r3.Sub(c, d)
	return det3(ad.X, ad.Y, ad.Z, bd.X, bd.Y, bd.Z, cd.X, cd.Y, cd.Z)
}

// inCircumsphere reports whether p lies inside tet's circumsphere, assuming
// tet is positively oriented (orient3D(v0,v1,v2,v3) > 0).
func inCircumsphere(pts []Vertex, tet Tetrahedron, p r3.Vec) bool {
	a := pts[tet.V[0]].Position
	b := pts[tet.V[1]].Position
	c := pts[tet.V[2]].Position
	d := pts[tet.V[3]].Position

	sub := func(v r3.Vec) (x, y, z, w float64) {
		dv := r3.Sub(v, p)
		return dv.X, dv.Y, dv.Z, dv.X*dv.X + dv.Y*dv.Y + dv.Z*dv.Z
	}
	ax, ay, az, aw := sub(a)
	bx, by, bz, bw := sub(b)
	cx, cy, cz, cw := sub(c)
	dx, dy, dz, dw := sub(d)

	det := det4(
		ax, ay, az, aw,
		bx, by, bz, bw,
		cx, cy, cz, cw,
		dx, dy, dz, dw,
	)
	return det > 0
}

// det4 expands a 4x4 determinant by cofactors along the first row.
func det4(
	a0, a1, a2, a3,
	b0, b1, b2, b3,
	c0, c1, c2, c3,
	d0, d1, d2, d3 float64,
) float64 {
	m0 := det3(b1, b2, b3, c1, c2, c3, d1, d2, d3)
	m1 := det3(b0, b2, b3, c0, c2, c3, d0, d2, d3)
	m2 := det3(b0, b1, b3, c0, c1, c3, d0, d1, d3)
	m3 := det3(b0, b1, b2, c0, c1, c2, d0, d1, d2)
	return a0*m0 - a1*m1 + a2*m2 - a3*m3
}

// faceKey canonically identifies an (unordered) triangular face by its three
// vertex indices sorted ascending.
func faceKey(a, b, c int) [3]int {
	f := [3]int{a, b, c}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if f[j] < f[i] {
				f[i], f[j] = f[j], f[i]
			}
		}
	}
	return f
}

// tetFaces returns a tetrahedron's four triangular faces as ordered vertex
// triples, oriented outward (each opposite its excluded vertex).
func tetFaces(tet Tetrahedron) [4][3]int {
	v := tet.V
	return [4][3]int{
		{v[1], v[2], v[3]},
		{v[0], v[3], v[2]},
		{v[0], v[1], v[3]},
		{v[0], v[2], v[1]},
	}
}

// boundaryFaces returns the faces of the bad-tet cavity that border exactly
// one bad tetrahedron: the cavity's outer surface, which the new star of
// tetrahedra around the inserted point is built from.
func boundaryFaces(tets []Tetrahedron, bad []int) [][3]int {
	count := make(map[[3]int]int)
	orientedOf := make(map[[3]int][3]int)
	for _, ti := range bad {
		for _, f := range tetFaces(tets[ti]) {
			k := faceKey(f[0], f[1], f[2])
			count[k]++
			orientedOf[k] = f
		}
	}
	var out [][3]int
	for k, n := range count {
		if n == 1 {
			out = append(out, orientedOf[k])
		}
	}
	return out
}

func removeIndices(tets []Tetrahedron, remove []int) []Tetrahedron {
	skip := make(map[int]bool, len(remove))
	for _, i := range remove {
		skip[i] = true
	}
	out := tets[:0]
	for i, t := range tets {
		if !skip[i] {
			out = append(out, t)
		}
	}
	return out
}
