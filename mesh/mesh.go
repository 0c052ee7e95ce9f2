// Package mesh extracts the half-edge interface mesh separating good
// crystal from defects: for each tetrahedron face whose two incident
// tetrahedra carry different region labels, three oriented half-edges are
// emitted and glued to their opposites across shared edges. Grounded in the
// original interface_mesh.h/.cpp manifold-construction helper, reimplemented
// over this module's tessellate/elastic/clustergraph types, and in
// soypat-gsdf's dual-contouring mesh assembly for the shared-edge-map gluing
// technique (a hash map keyed by the directed vertex pair, where a half-edge
// is glued by looking up its reversed pair; not a full topological half-edge
// library).
package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/cell"
	"github.com/rodyherrera/volterra/elastic"
	"github.com/rodyherrera/volterra/errs"
	"github.com/rodyherrera/volterra/tessellate"
)

// AlphaShapeMultiplier is applied to the max neighbor distance to derive the
// alpha-shape threshold that filters oversized tetrahedra from inclusion.
const AlphaShapeMultiplier = 5

// HalfEdge is one oriented directed edge of a mesh face, carrying both the
// actual physical displacement and the ideal crystal vector/transition
// copied from its tessellation edge.
type HalfEdge struct {
	Origin, Dest   int // indices into Mesh.Vertices
	PhysicalVector r3.Vec
	ClusterVector  r3.Vec
	Transition     int
	Opposite       int // index into Mesh.HalfEdges, or -1 if unglued (boundary)
	Face           int
}

// Face is one triangular mesh face on the good side of a good/bad boundary.
type Face struct {
	V         [3]int // indices into Mesh.Vertices, cyclic order
	HalfEdges [3]int // indices into Mesh.HalfEdges
	Region    int
}

// Mesh is the built half-edge structure. Face.V and HalfEdge.Origin/Dest
// index into Vertices, not directly into the tessellation: an atom touched
// by more than one mesh chart (two charts meeting only at a point, as at a
// triple junction) gets one Vertices entry per chart, so every mesh vertex's
// one-ring stays inside a single connected chart.
type Mesh struct {
	Vertices         []int // mesh vertex id -> tessellation vertex index
	Faces            []Face
	HalfEdges        []HalfEdge
	IsCompletelyGood bool
	IsCompletelyBad  bool
}

// TessellationVertex maps a mesh vertex id back to its tessellation vertex
// index.
func (m *Mesh) TessellationVertex(meshVertex int) int {
	return m.Vertices[meshVertex]
}

// RegionLabeler assigns a region id (0 = bad, >=1 = supergrain cluster id)
// to a primary tetrahedron.
type RegionLabeler func(tetIdx int) int

// NewRegionLabeler builds a RegionLabeler from the tessellation, the elastic
// mapping's per-tetrahedron compatibility test, the per-atom cluster
// assignment and the cluster-to-supergrain map (as produced by
// connector.Connector.BuildSupergrains): a tetrahedron is bad (0) unless all
// six of its edges close, in which case its region is the supergrain of its
// first vertex's cluster.
func NewRegionLabeler(t *tessellate.Tessellation, elasticMap *elastic.Mapping, atomCluster, supergrainOf []int) RegionLabeler {
	return func(tetIdx int) int {
		tet := t.Tetrahedra[tetIdx]
		var atoms [4]int
		for i, vi := range tet.V {
			atoms[i] = t.Vertices[vi].AtomIndex
		}
		if !elasticMap.TetrahedronCompatible(atoms) {
			return 0
		}
		cid := atomCluster[atoms[0]]
		if cid <= 0 || cid >= len(supergrainOf) {
			return 0
		}
		return supergrainOf[cid]
	}
}

// Build scans every face of every primary tetrahedron, keeping those whose
// two incident tetrahedra carry different region labels, and glues opposite
// half-edges across shared vertex pairs.
func Build(t *tessellate.Tessellation, elasticMap *elastic.Mapping, region RegionLabeler, c *cell.Cell, maxNeighborDistance float64) (*Mesh, error) {
	alpha := (AlphaShapeMultiplier * maxNeighborDistance) * (AlphaShapeMultiplier * maxNeighborDistance)

	primary := make([]int, 0, len(t.Tetrahedra))
	for i, tet := range t.Tetrahedra {
		if !tet.IsGhost {
			primary = append(primary, i)
		}
	}

	type faceSide struct {
		tetIdx int
		verts  [3]int // oriented per that tet's face
	}
	adjacency := make(map[[3]int][]faceSide)

	for _, ti := range primary {
		tet := t.Tetrahedra[ti]
		for _, f := range tetFaces(tet) {
			k := faceKey(f)
			adjacency[k] = append(adjacency[k], faceSide{tetIdx: ti, verts: f})
		}
	}

	m := &Mesh{IsCompletelyGood: true, IsCompletelyBad: true}
	oppositeOf := make(map[[2]int]int) // directed edge (v0,v1) -> half-edge index

	for _, sides := range adjacency {
		if len(sides) != 2 {
			continue
		}
		if !t.AlphaTest(sides[0].tetIdx, alpha) || !t.AlphaTest(sides[1].tetIdx, alpha) {
			continue
		}
		r0, r1 := region(sides[0].tetIdx), region(sides[1].tetIdx)
		if r0 == r1 {
			continue
		}

		good := sides[0]
		goodRegion := r0
		if r1 != 0 {
			good = sides[1]
			goodRegion = r1
		}
		if goodRegion == 0 {
			// neither side is a recognized crystal region; skip (both bad).
			continue
		}

		m.IsCompletelyBad = false
		ordered := cyclicAscending(good.verts)

		faceIdx := len(m.Faces)
		face := Face{V: ordered, Region: goodRegion}
		for i := 0; i < 3; i++ {
			a, b := ordered[i], ordered[(i+1)%3]
			he := HalfEdge{Origin: a, Dest: b, Opposite: -1, Face: faceIdx}

			phys, err := PhysicalVector(t, c, a, b)
			if err != nil {
				return nil, err
			}
			he.PhysicalVector = phys

			atomA, atomB := t.Vertices[a].AtomIndex, t.Vertices[b].AtomIndex
			if e, ok := elasticMap.Edge(atomA, atomB); ok && e.Assigned {
				he.ClusterVector = e.ClusterVec
				he.Transition = e.Transition
			} else {
				m.IsCompletelyGood = false
			}
			idx := len(m.HalfEdges)
			m.HalfEdges = append(m.HalfEdges, he)
			face.HalfEdges[i] = idx
			oppositeOf[[2]int{a, b}] = idx
		}
		m.Faces = append(m.Faces, face)
	}

	// glue opposite half-edges: he (a->b) opposes he' (b->a).
	for key, idx := range oppositeOf {
		rev := [2]int{key[1], key[0]}
		if oppIdx, ok := oppositeOf[rev]; ok {
			m.HalfEdges[idx].Opposite = oppIdx
		}
	}

	duplicateChartVertices(m)

	return m, nil
}

// duplicateChartVertices relabels Face.V/HalfEdge.Origin/Dest from raw
// tessellation vertex indices to mesh-local vertex ids, one id per
// (tessellation vertex, connected chart) pair. Charts are the connected
// components of faces joined by a glued (Opposite >= 0) half-edge, found
// with the same union-find technique connector.BuildSupergrains uses to
// merge clusters. A tessellation vertex shared by two charts that never
// touch any other way (a single-point junction) ends up as two distinct
// mesh vertices, each with a clean one-ring inside its own chart.
func duplicateChartVertices(m *Mesh) {
	parent := make([]int, len(m.Faces))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, he := range m.HalfEdges {
		if he.Opposite >= 0 {
			union(he.Face, m.HalfEdges[he.Opposite].Face)
		}
	}

	type chartVertex struct {
		tessVert int
		chart    int
	}
	ids := make(map[chartVertex]int)
	var vertices []int
	relabel := func(face, tessVert int) int {
		key := chartVertex{tessVert: tessVert, chart: find(face)}
		id, ok := ids[key]
		if !ok {
			id = len(vertices)
			vertices = append(vertices, tessVert)
			ids[key] = id
		}
		return id
	}

	for fi := range m.Faces {
		face := &m.Faces[fi]
		for i := 0; i < 3; i++ {
			face.V[i] = relabel(fi, face.V[i])
		}
	}
	for hi := range m.HalfEdges {
		he := &m.HalfEdges[hi]
		he.Origin = relabel(he.Face, he.Origin)
		he.Dest = relabel(he.Face, he.Dest)
	}
	m.Vertices = vertices
}

// PhysicalVector computes the wrapped displacement between two tessellation
// vertex positions, verifying the minimum-image magnitude bound and
// returning a CellTooSmall error if violated on a periodic axis.
func PhysicalVector(t *tessellate.Tessellation, c *cell.Cell, v0, v1 int) (r3.Vec, error) {
	p0 := t.Vertices[v0].Position
	p1 := t.Vertices[v1].Position
	d := c.WrapVector(r3.Sub(p1, p0))
	if c.IsWrappedVector(d) {
		for axis := 0; axis < 3; axis++ {
			if c.PBC[axis] && math.Abs(r3.Dot(d, c.CellNormalVector(axis))) >= 0.5*r3.Norm(c.AxisVector(axis)) {
				return r3.Vec{}, &errs.CellTooSmall{Axis: axis}
			}
		}
	}
	return d, nil
}

func tetFaces(tet tessellate.Tetrahedron) [4][3]int {
	v := tet.V
	return [4][3]int{
		{v[1], v[2], v[3]},
		{v[0], v[3], v[2]},
		{v[0], v[1], v[3]},
		{v[0], v[2], v[1]},
	}
}

func faceKey(f [3]int) [3]int {
	k := f
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if k[j] < k[i] {
				k[i], k[j] = k[j], k[i]
			}
		}
	}
	return k
}

// cyclicAscending rotates a face's vertex triple so its smallest index comes
// first, preserving cyclic order (the "lower to higher" rule applies to the
// starting point, not a full sort, since a full sort could flip orientation).
func cyclicAscending(f [3]int) [3]int {
	min := 0
	for i := 1; i < 3; i++ {
		if f[i] < f[min] {
			min = i
		}
	}
	return [3]int{f[min], f[(min+1)%3], f[(min+2)%3]}
}

