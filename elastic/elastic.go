// Package elastic implements elastic mapping: assigning each tessellation
// edge an ideal lattice vector and a cluster transition, then testing each
// primary tetrahedron for elastic compatibility by closing its four
// triangular faces. Grounded in the original elastic_mapping.h/.cpp for the
// direct-neighbor/crystal-path-finder assignment strategy and the per-face
// closure test, reimplemented over this module's clustergraph/structid/
// tessellate types.
package elastic

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/clustergraph"
	"github.com/rodyherrera/volterra/structid"
	"github.com/rodyherrera/volterra/tessellate"
)

// DefaultCrystalPathBudget bounds the crystal-path-finder BFS hop count.
const DefaultCrystalPathBudget = 2

const (
	translationCloseTolerance = 1e-3
	rotationCloseTolerance    = 1e-4
)

// Edge is one non-wrapping vertex pair shared by a primary tetrahedron,
// enriched with its ideal crystal vector and cluster transition once
// assigned.
type Edge struct {
	V1, V2     int // vertex indices (atom indices for primary vertices)
	Assigned   bool
	ClusterVec r3.Vec // ideal displacement from v1 to v2, in v1's cluster frame
	Transition int    // clustergraph transition index, v1's cluster -> v2's cluster
}

// Mapping owns the tessellation edges and their assignment state.
type Mapping struct {
	edges   map[[2]int]*Edge
	byVert  map[int][]*Edge
	graph   *clustergraph.Graph
	envs    []structid.Environment
	atomCluster []int
}

// Build registers one tessellation edge per non-wrapping vertex pair of
// every primary tetrahedron and attempts to assign each an ideal vector.
func Build(t *tessellate.Tessellation, isWrapping func(v1, v2 int) bool, graph *clustergraph.Graph, envs []structid.Environment, atomCluster []int, pathBudget int) *Mapping {
	m := &Mapping{
		edges:       make(map[[2]int]*Edge),
		byVert:      make(map[int][]*Edge),
		graph:       graph,
		envs:        envs,
		atomCluster: atomCluster,
	}

	for _, tet := range t.Tetrahedra {
		if tet.IsGhost {
			continue
		}
		for i := 0; i < 4; i++ {
			for j := i + 1; j < 4; j++ {
				a, b := t.Vertices[tet.V[i]].AtomIndex, t.Vertices[tet.V[j]].AtomIndex
				if isWrapping(a, b) {
					continue
				}
				m.registerEdge(a, b)
			}
		}
	}

	for _, e := range m.edges {
		m.assign(e, pathBudget)
	}
	return m
}

func (m *Mapping) registerEdge(a, b int) {
	if _, ok := m.edges[[2]int{a, b}]; ok {
		return
	}
	e := &Edge{V1: a, V2: b}
	m.edges[[2]int{a, b}] = e
	m.byVert[a] = append(m.byVert[a], e)

	rev := &Edge{V1: b, V2: a}
	m.edges[[2]int{b, a}] = rev
	m.byVert[b] = append(m.byVert[b], rev)
}

// Edge looks up the directed tessellation edge v1->v2, if registered.
func (m *Mapping) Edge(v1, v2 int) (*Edge, bool) {
	e, ok := m.edges[[2]int{v1, v2}]
	return e, ok
}

func (m *Mapping) assign(e *Edge, pathBudget int) {
	c1, c2 := m.atomCluster[e.V1], m.atomCluster[e.V2]
	if c1 == 0 || c2 == 0 {
		return
	}

	if v, ok := m.directNeighborVector(e.V1, e.V2); ok {
		idx, ok2 := m.graph.DetermineClusterTransition(c1, c2)
		if ok2 {
			e.ClusterVec = v
			e.Transition = idx
			e.Assigned = true
			return
		}
	}

	if v, idx, ok := m.crystalPath(e.V1, e.V2, pathBudget); ok {
		e.ClusterVec = v
		e.Transition = idx
		e.Assigned = true
	}
}

// directNeighborVector reports the ideal template vector from atom a to atom
// b, if b is one of a's PTM template neighbors.
func (m *Mapping) directNeighborVector(a, b int) (r3.Vec, bool) {
	env := m.envs[a]
	res := env.Result
	if res.Type == structid.Other {
		return r3.Vec{}, false
	}
	tmpl := structid.Templates()[res.TemplateIndex]
	for templateVertex, slot := range res.Correspondence {
		if slot < 0 || slot >= len(env.NeighborAtoms) {
			continue
		}
		if env.NeighborAtoms[slot] == b {
			return r3.Scale(res.Scale, tmpl.Vectors[templateVertex]), true
		}
	}
	return r3.Vec{}, false
}

// crystalPath runs a bounded BFS over the atom-to-atom PTM neighbor graph
// looking for a path from a to b, composing each hop's ideal vector back
// into a's cluster frame via the accumulated transition's reverse.
func (m *Mapping) crystalPath(a, b, budget int) (r3.Vec, int, bool) {
	type frontierItem struct {
		atom   int
		vec    r3.Vec // accumulated ideal vector from a, in a's cluster frame
		transIdx int  // transition a's cluster -> current atom's cluster
	}

	selfA := m.graph.SelfTransitionOf(m.atomCluster[a])
	start := frontierItem{atom: a, vec: r3.Vec{}, transIdx: selfA}
	frontier := []frontierItem{start}
	visited := map[int]bool{a: true}

	for hop := 0; hop < budget; hop++ {
		var next []frontierItem
		for _, item := range frontier {
			env := m.envs[item.atom]
			res := env.Result
			if res.Type == structid.Other {
				continue
			}
			tmpl := structid.Templates()[res.TemplateIndex]
			for templateVertex, slot := range res.Correspondence {
				if slot < 0 || slot >= len(env.NeighborAtoms) {
					continue
				}
				nb := env.NeighborAtoms[slot]
				if visited[nb] {
					continue
				}
				nbCluster := m.atomCluster[nb]
				if nbCluster == 0 {
					continue
				}

				hopVecLocal := r3.Scale(res.Scale, tmpl.Vectors[templateVertex])
				currentTrans := m.graph.Transition(item.transIdx)
				hopVecInA := currentTrans.TM.Transpose().MulVec(hopVecLocal)
				accumulated := r3.Add(item.vec, hopVecInA)

				composedIdx, ok := m.graph.DetermineClusterTransition(m.atomCluster[a], nbCluster)
				if !ok {
					continue
				}

				if nb == b {
					return accumulated, composedIdx, true
				}

				visited[nb] = true
				next = append(next, frontierItem{atom: nb, vec: accumulated, transIdx: composedIdx})
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return r3.Vec{}, -1, false
}

// FaceCompatible runs the closed-circuit translation and rotation tests for
// one triangular face (v0, v1, v2) of a tetrahedron, given the three edges
// v0->v1, v1->v2, v0->v2.
func (m *Mapping) FaceCompatible(v0, v1, v2 int) bool {
	e01, ok := m.Edge(v0, v1)
	if !ok || !e01.Assigned {
		return false
	}
	e12, ok := m.Edge(v1, v2)
	if !ok || !e12.Assigned {
		return false
	}
	e02, ok := m.Edge(v0, v2)
	if !ok || !e02.Assigned {
		return false
	}

	t01 := m.graph.Transition(e01.Transition)
	reverseOfT01 := m.graph.Transition(t01.Reverse)
	rotatedV12 := reverseOfT01.TM.MulVec(e12.ClusterVec)

	b := r3.Sub(r3.Add(e01.ClusterVec, rotatedV12), e02.ClusterVec)
	if r3.Norm(b) >= translationCloseTolerance {
		return false
	}

	t12 := m.graph.Transition(e12.Transition)
	t02 := m.graph.Transition(e02.Transition)
	around := t12.TM.Mul(t01.TM)
	reverseOf02 := m.graph.Transition(t02.Reverse)
	closed := reverseOf02.TM.Mul(around)
	return closed.IsIdentity(rotationCloseTolerance)
}

// TetrahedronCompatible reports whether all six edges of the tetrahedron
// (given as four vertex indices) are assigned and all four faces close.
func (m *Mapping) TetrahedronCompatible(v [4]int) bool {
	faces := [4][3]int{
		{v[0], v[1], v[2]},
		{v[0], v[1], v[3]},
		{v[0], v[2], v[3]},
		{v[1], v[2], v[3]},
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if _, ok := m.Edge(v[i], v[j]); !ok {
				return false
			}
		}
	}
	for _, f := range faces {
		if !m.FaceCompatible(f[0], f[1], f[2]) {
			return false
		}
	}
	return true
}
