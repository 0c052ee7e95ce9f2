package mesh

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/cell"
	"github.com/rodyherrera/volterra/clustergraph"
	"github.com/rodyherrera/volterra/elastic"
	"github.com/rodyherrera/volterra/structid"
	"github.com/rodyherrera/volterra/tessellate"
)

// bipyramid builds two tetrahedra (0,1,2,3) and (0,2,1,4) sharing the base
// triangle (0,1,2), with no ghost vertices.
func bipyramid() *tessellate.Tessellation {
	verts := []tessellate.Vertex{
		{Position: r3.Vec{X: 0, Y: 0, Z: 0}, AtomIndex: 0},
		{Position: r3.Vec{X: 1, Y: 0, Z: 0}, AtomIndex: 1},
		{Position: r3.Vec{X: 0, Y: 1, Z: 0}, AtomIndex: 2},
		{Position: r3.Vec{X: 0, Y: 0, Z: 1}, AtomIndex: 3},
		{Position: r3.Vec{X: 0, Y: 0, Z: -1}, AtomIndex: 4},
	}
	tets := []tessellate.Tetrahedron{
		{V: [4]int{0, 1, 2, 3}, Index: 0},
		{V: [4]int{0, 2, 1, 4}, Index: 1},
	}
	return &tessellate.Tessellation{Vertices: verts, Tetrahedra: tets}
}

func unassignedMapping() *elastic.Mapping {
	envs := make([]structid.Environment, 5)
	for i := range envs {
		envs[i] = structid.Environment{Result: structid.Result{Type: structid.Other}}
	}
	atomCluster := make([]int, 5)
	graph := clustergraph.NewGraph()
	t := bipyramid()
	return elastic.Build(t, func(a, b int) bool { return false }, graph, envs, atomCluster, elastic.DefaultCrystalPathBudget)
}

func boundaryCell() *cell.Cell {
	c, err := cell.New(r3.Vec{X: 10}, r3.Vec{Y: 10}, r3.Vec{Z: 10}, false, false, false, false)
	if err != nil {
		panic(err)
	}
	return c
}

func TestBuildEmitsOneFaceAcrossRegionBoundary(t *testing.T) {
	ts := bipyramid()
	em := unassignedMapping()
	c := boundaryCell()

	region := func(tetIdx int) int {
		if tetIdx == 0 {
			return 1
		}
		return 0
	}

	m, err := Build(ts, em, region, c, 10.0)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(m.Faces) != 1 {
		t.Fatalf("expected exactly one mesh face, got %d", len(m.Faces))
	}
	if len(m.HalfEdges) != 3 {
		t.Fatalf("expected exactly three half-edges, got %d", len(m.HalfEdges))
	}
	if m.Faces[0].Region != 1 {
		t.Fatalf("expected face region 1, got %d", m.Faces[0].Region)
	}
}

func TestBuildGluesOppositeHalfEdges(t *testing.T) {
	ts := bipyramid()
	em := unassignedMapping()
	c := boundaryCell()

	region := func(tetIdx int) int {
		if tetIdx == 0 {
			return 1
		}
		return 2
	}

	m, err := Build(ts, em, region, c, 10.0)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	// a single triangular chart has no interior edge, so every half-edge
	// should remain unglued (boundary) within this mesh.
	for i, he := range m.HalfEdges {
		if he.Opposite != -1 {
			t.Fatalf("half-edge %d unexpectedly glued to %d", i, he.Opposite)
		}
	}
}

func TestBuildSkipsFacesWithEqualRegions(t *testing.T) {
	ts := bipyramid()
	em := unassignedMapping()
	c := boundaryCell()

	region := func(tetIdx int) int { return 1 }

	m, err := Build(ts, em, region, c, 10.0)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(m.Faces) != 0 {
		t.Fatalf("expected no faces when regions agree, got %d", len(m.Faces))
	}
	if !m.IsCompletelyBad {
		t.Fatal("expected IsCompletelyBad to stay true with no emitted faces")
	}
}

func TestBuildSkipsFacesWhereBothSidesAreBad(t *testing.T) {
	ts := bipyramid()
	em := unassignedMapping()
	c := boundaryCell()

	region := func(tetIdx int) int { return 0 }

	m, err := Build(ts, em, region, c, 10.0)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(m.Faces) != 0 {
		t.Fatalf("expected no faces when both sides are region 0, got %d", len(m.Faces))
	}
}

func TestBuildMarksNotCompletelyGoodWithoutAssignedEdges(t *testing.T) {
	ts := bipyramid()
	em := unassignedMapping()
	c := boundaryCell()

	region := func(tetIdx int) int {
		if tetIdx == 0 {
			return 1
		}
		return 0
	}

	m, err := Build(ts, em, region, c, 10.0)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if m.IsCompletelyGood {
		t.Fatal("expected IsCompletelyGood=false since no elastic edge is assigned")
	}
}

// TestDuplicateChartVertices builds two faces sharing tessellation vertex 0
// with no Opposite gluing between them (two disconnected charts meeting only
// at a point, as at a triple junction) and checks that vertex 0 is split
// into one mesh vertex per chart.
func TestDuplicateChartVertices(t *testing.T) {
	m := &Mesh{
		Faces: []Face{
			{V: [3]int{0, 1, 2}, HalfEdges: [3]int{0, 1, 2}, Region: 1},
			{V: [3]int{0, 3, 4}, HalfEdges: [3]int{3, 4, 5}, Region: 1},
		},
		HalfEdges: []HalfEdge{
			{Origin: 0, Dest: 1, Opposite: -1, Face: 0},
			{Origin: 1, Dest: 2, Opposite: -1, Face: 0},
			{Origin: 2, Dest: 0, Opposite: -1, Face: 0},
			{Origin: 0, Dest: 3, Opposite: -1, Face: 1},
			{Origin: 3, Dest: 4, Opposite: -1, Face: 1},
			{Origin: 4, Dest: 0, Opposite: -1, Face: 1},
		},
	}
	duplicateChartVertices(m)

	if len(m.Vertices) != 6 {
		t.Fatalf("expected 6 distinct mesh vertices (3 per disconnected chart), got %d", len(m.Vertices))
	}
	if m.Faces[0].V[0] == m.Faces[1].V[0] {
		t.Fatal("expected tessellation vertex 0 to be duplicated across the two disconnected charts")
	}
	if m.HalfEdges[0].Origin != m.Faces[0].V[0] {
		t.Fatalf("expected half-edge 0's relabeled origin to match face 0's first vertex, got %d vs %d", m.HalfEdges[0].Origin, m.Faces[0].V[0])
	}
	if m.TessellationVertex(m.Faces[0].V[0]) != 0 || m.TessellationVertex(m.Faces[1].V[0]) != 0 {
		t.Fatal("expected both duplicated mesh vertices to map back to tessellation vertex 0")
	}
}

func TestPhysicalVectorFlagsCellTooSmall(t *testing.T) {
	ts := &tessellate.Tessellation{Vertices: []tessellate.Vertex{
		{Position: r3.Vec{X: 0, Y: 0, Z: 0}, AtomIndex: 0},
		{Position: r3.Vec{X: 0.5, Y: 0, Z: 0}, AtomIndex: 1},
	}}
	tiny, err := cell.New(r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}, true, true, true, false)
	if err != nil {
		t.Fatalf("cell.New: %v", err)
	}
	_, err = PhysicalVector(ts, tiny, 0, 1)
	if err == nil {
		t.Fatal("expected a cell-too-small error for an exactly half-cell displacement")
	}
}
