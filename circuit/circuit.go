// Package circuit implements Burgers circuit tracing over the interface
// mesh: finding closed loops of mesh half-edges whose composed ideal lattice
// vector is non-zero (a non-closing lattice walk implies a dislocation
// threading through it), extending the ones that don't close immediately,
// sewing the ones that meet into junctions, and spawning dislocation
// segments and nodes from the result. Grounded in the original
// burgers_circuit.h/.cpp for the (†) vector composition formula and the
// translation/rotation closure tests, adapted over this module's
// mesh/clustergraph/tessellate types.
//
// Phase 1 (trial circuit discovery) starts every walk at one interface mesh
// face (a closed 3-edge loop by construction) and, while it doesn't close,
// grows it one face at a time via the insert-one-edge move (replacing the
// edge across an unclaimed glued neighbor with that neighbor face's other
// two edges) up to maxBurgersCircuitSize. Phase 2 (segment tracing) reuses
// the same insert-one-edge move plus its dual, remove-one-edge (collapsing
// two consecutive edges into a direct shortcut when one exists elsewhere in
// the mesh), to push a circuit that has no free reverse twin until one
// appears or the extended bound is hit. Phase 3 (segment joining) resolves
// what extension cannot: circuits that come to dangle at the same
// tessellation atom (the duplicated-vertex junction mesh.Build now
// produces) are linked into a cyclic junctionRing instead of a plain
// head/tail pair. Phase 4 (closed loop vs. infinite line) classifies each
// resulting segment by walking its nodes' junction rings and comparing
// polyline endpoints.
//
// Not implemented: the remove-two-edges, remove-three-edges and
// sweep-two-facets moves. Each is a distinct local mesh-rewriting rule
// (remove-two/three collapse a face or a pair of faces already fully
// subtended by the circuit; sweep-two-facets slides the circuit across two
// facets without changing its length) with its own closure proof, and
// insert-one/remove-one alone already let a circuit reach any reachable
// node through a chain of single-edge moves, so the remaining three are a
// completeness/robustness improvement rather than the only path to a
// result. See DESIGN.md.
package circuit

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/clustergraph"
	"github.com/rodyherrera/volterra/linalg"
	"github.com/rodyherrera/volterra/mesh"
	"github.com/rodyherrera/volterra/tessellate"
)

// DefaultMaxBurgersCircuitSize bounds a trial circuit's edge count during
// phase 1 discovery.
const DefaultMaxBurgersCircuitSize = 3

// DefaultMaxExtendedBurgersCircuitSize bounds a circuit's edge count during
// phase 2 extension, once it is already an accepted trial circuit searching
// for a free reverse twin.
const DefaultMaxExtendedBurgersCircuitSize = 16

const (
	burgersVectorThreshold     = 1e-3
	transitionClosureThreshold = 1e-4
	// loopEndpointThreshold is the polyline endpoint-coincidence tolerance
	// used by the closed-loop/infinite-line classification (phase 4).
	loopEndpointThreshold = 1e-4
)

// Circuit is one closed walk of mesh half-edges encircling a candidate
// dislocation core (the spec's BurgersCircuit).
type Circuit struct {
	HalfEdges   []int // indices into Mesh.HalfEdges, in face order
	Burgers     r3.Vec
	BaseCluster int // cluster the Burgers vector is expressed in
	Center      r3.Vec

	// SegmentMeshCap is the boundary half-edge loop DefectMesh fans a
	// triangle cap from once this circuit's own faces are removed. It is
	// always a copy of HalfEdges: the trial/extended circuit already is
	// the open boundary that needs capping.
	SegmentMeshCap []int

	// IsCompletelyBlocked is true once phase 2 extension exhausted every
	// insert-one/remove-one move without finding a free reverse twin.
	IsCompletelyBlocked bool
	// IsDangling is true while this circuit's node has not been resolved
	// into either a head/tail pair or a junction ring.
	IsDangling bool
	// DislocationNode indexes Network.Nodes for the node this circuit
	// ultimately attaches to, or -1 before that assignment happens.
	DislocationNode int
}

// DislocationNode is one end of a dislocation segment, or one spoke of a
// junction where three or more segments meet.
type DislocationNode struct {
	Circuit int // index into Network.Circuits
	// Opposite is the node at the other end of this node's own segment,
	// or -1 if this node belongs to a junction ring instead (where the
	// "other end" is every other node in the ring, not a single one).
	Opposite int
	// JunctionRing is the next node index around this node's cyclic
	// junction ring. Equal to this node's own index when it is not part
	// of a ring (a ring of one is the identity case).
	JunctionRing int
	// Dangling is true while this node has not been joined to anything:
	// neither an Opposite nor folded into a JunctionRing.
	Dangling bool
}

// DislocationSegment is one dislocation line spawned from a pair of nodes.
type DislocationSegment struct {
	ID          int
	Burgers     r3.Vec
	BaseCluster int
	Line        []r3.Vec // Line[0] backward end, Line[len-1] forward end
	CoreSize    []int    // half-edge count of each end's circuit, [backward, forward]
	Nodes       [2]int   // [0] backward node index, [1] forward node index

	// ReplacedWith indexes the segment this one was merged into, or -1
	// while this segment is still live.
	ReplacedWith int

	// Closed is true for a segment whose nodes return to each other
	// (directly or through a shared junction ring) with coincident
	// polyline endpoints. Infinite is true for every other segment: in a
	// periodic cell a dislocation line that does not close on itself
	// threads through the periodic boundary instead of simply ending.
	Closed   bool
	Infinite bool
}

// Network is the traced dislocation network.
type Network struct {
	Circuits []Circuit
	Nodes    []DislocationNode
	Segments []DislocationSegment
	Graph    *clustergraph.Graph
}

// BurgersVector implements (†): b = sum_k T_k . v_k, T_1 = I,
// T_{k+1} = T_k . t_k.reverse.tm — each local vector is rotated back into
// the first edge's cluster frame before summing.
func BurgersVector(graph *clustergraph.Graph, vectors []r3.Vec, transitionIdx []int) r3.Vec {
	t := linalg.Identity3()
	b := r3.Vec{}
	for k, v := range vectors {
		b = r3.Add(b, t.MulVec(v))
		tk := graph.Transition(transitionIdx[k])
		reverseTk := graph.Transition(tk.Reverse)
		t = t.Mul(reverseTk.TM)
	}
	return b
}

// closesToIdentity reports whether composing transitionIdx in order (t_n
// applied last) returns to the identity, within the closure tolerance.
func closesToIdentity(graph *clustergraph.Graph, transitionIdx []int) bool {
	total := linalg.Identity3()
	for _, idx := range transitionIdx {
		t := graph.Transition(idx)
		total = t.TM.Mul(total)
	}
	return total.IsIdentity(transitionClosureThreshold)
}

// evaluateWalk tests a candidate closed walk of half-edges against the
// Burgers-vector and transition-closure acceptance criteria, returning the
// composed Burgers vector either way.
func evaluateWalk(m *mesh.Mesh, graph *clustergraph.Graph, heIdxs []int) (r3.Vec, bool) {
	vectors := make([]r3.Vec, len(heIdxs))
	transitions := make([]int, len(heIdxs))
	for i, idx := range heIdxs {
		he := m.HalfEdges[idx]
		vectors[i] = he.ClusterVector
		transitions[i] = he.Transition
	}
	b := BurgersVector(graph, vectors, transitions)
	accepted := r3.Norm(b) >= burgersVectorThreshold && closesToIdentity(graph, transitions)
	return b, accepted
}

// buildCircuit packages an accepted half-edge walk into a Circuit, deriving
// its center (the centroid of its distinct mesh vertices' positions) and
// base cluster (the cluster of its first vertex's atom).
func buildCircuit(m *mesh.Mesh, t *tessellate.Tessellation, atomCluster []int, heIdxs []int, b r3.Vec) Circuit {
	var center r3.Vec
	seen := make(map[int]bool, len(heIdxs))
	n := 0
	for _, idx := range heIdxs {
		v := m.HalfEdges[idx].Origin
		if seen[v] {
			continue
		}
		seen[v] = true
		center = r3.Add(center, t.Vertices[m.Vertices[v]].Position)
		n++
	}
	center = r3.Scale(1.0/float64(n), center)

	baseVertex := m.Vertices[m.HalfEdges[heIdxs[0]].Origin]
	baseAtom := t.Vertices[baseVertex].AtomIndex

	edges := append([]int(nil), heIdxs...)
	return Circuit{
		HalfEdges:       edges,
		Burgers:         b,
		BaseCluster:     atomCluster[baseAtom],
		Center:          center,
		SegmentMeshCap:  append([]int(nil), edges...),
		IsDangling:      true,
		DislocationNode: -1,
	}
}

func indexInFace(f mesh.Face, heIdx int) int {
	for i, h := range f.HalfEdges {
		if h == heIdx {
			return i
		}
	}
	return -1
}

// growCircuit applies the insert-one-edge move: it picks the first circuit
// half-edge whose glued opposite belongs to a face not already absorbed or
// blocked, and replaces that edge with the opposite face's other two edges,
// extending the walk by one. blocked marks half-edges (typically another
// circuit's claimed edges) this move must not absorb.
func growCircuit(m *mesh.Mesh, c Circuit, blocked map[int]bool) (Circuit, bool) {
	inCircuit := make(map[int]bool, len(c.HalfEdges))
	for _, he := range c.HalfEdges {
		inCircuit[he] = true
	}
	for pos, heIdx := range c.HalfEdges {
		opp := m.HalfEdges[heIdx].Opposite
		if opp < 0 || inCircuit[opp] || blocked[opp] {
			continue
		}
		oppFace := m.Faces[m.HalfEdges[opp].Face]
		p := indexInFace(oppFace, opp)
		if p < 0 {
			continue
		}
		e1, e2 := oppFace.HalfEdges[(p+1)%3], oppFace.HalfEdges[(p+2)%3]
		if inCircuit[e1] || inCircuit[e2] || blocked[e1] || blocked[e2] {
			continue
		}
		grown := make([]int, 0, len(c.HalfEdges)+1)
		grown = append(grown, c.HalfEdges[:pos]...)
		grown = append(grown, e1, e2)
		grown = append(grown, c.HalfEdges[pos+1:]...)
		return Circuit{HalfEdges: grown, BaseCluster: c.BaseCluster, Center: c.Center}, true
	}
	return Circuit{}, false
}

// buildEdgeIndex maps a directed (origin, dest) mesh-vertex pair to its
// half-edge index, for the remove-one-edge move's shortcut lookup.
func buildEdgeIndex(m *mesh.Mesh) map[[2]int]int {
	idx := make(map[[2]int]int, len(m.HalfEdges))
	for i, he := range m.HalfEdges {
		idx[[2]int{he.Origin, he.Dest}] = i
	}
	return idx
}

// removeOneEdge applies the remove-one-edge move: it looks for two
// consecutive circuit edges (u->v, v->w) that can be replaced by a single
// direct edge (u->w) already present elsewhere in the mesh, shrinking the
// walk by one. blocked excludes shortcuts already claimed by another
// circuit.
func removeOneEdge(m *mesh.Mesh, edgeIdx map[[2]int]int, c Circuit, blocked map[int]bool) (Circuit, bool) {
	n := len(c.HalfEdges)
	if n <= 3 {
		return Circuit{}, false
	}
	inCircuit := make(map[int]bool, n)
	for _, h := range c.HalfEdges {
		inCircuit[h] = true
	}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		e0 := m.HalfEdges[c.HalfEdges[i]]
		e1 := m.HalfEdges[c.HalfEdges[j]]
		shortcut, ok := edgeIdx[[2]int{e0.Origin, e1.Dest}]
		if !ok || inCircuit[shortcut] || blocked[shortcut] {
			continue
		}
		next := make([]int, 0, n-1)
		for idx := (j + 1) % n; idx != i; idx = (idx + 1) % n {
			next = append(next, c.HalfEdges[idx])
		}
		next = append(next, shortcut)
		return Circuit{HalfEdges: next, BaseCluster: c.BaseCluster, Center: c.Center}, true
	}
	return Circuit{}, false
}

// reverseCircuit builds the backward circuit for a forward one by walking
// its half-edges' opposites in reverse order. Returns false if any edge
// sits on the mesh boundary (unglued, Opposite == -1).
func reverseCircuit(m *mesh.Mesh, c Circuit) (Circuit, bool) {
	n := len(c.HalfEdges)
	rev := make([]int, n)
	for i, heIdx := range c.HalfEdges {
		opp := m.HalfEdges[heIdx].Opposite
		if opp < 0 {
			return Circuit{}, false
		}
		rev[n-1-i] = opp
	}
	return Circuit{HalfEdges: rev, Center: c.Center}, true
}

// BuildTrialCircuits implements phase 1: every interface mesh face seeds a
// walk, grown via the insert-one-edge move while it doesn't yet close, up
// to maxSize edges. A face already claimed by a previously accepted circuit
// is skipped, and growth never absorbs another circuit's claimed edges
// (the edge-disjointness guarantee phase 2/3 extension relies on).
func BuildTrialCircuits(m *mesh.Mesh, t *tessellate.Tessellation, graph *clustergraph.Graph, atomCluster []int, maxSize int) []Circuit {
	if maxSize < DefaultMaxBurgersCircuitSize {
		maxSize = DefaultMaxBurgersCircuitSize
	}
	used := make(map[int]bool)
	var circuits []Circuit
	for faceIdx := range m.Faces {
		face := m.Faces[faceIdx]
		overlap := false
		for _, heIdx := range face.HalfEdges {
			if used[heIdx] {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}

		walk := append([]int(nil), face.HalfEdges[:]...)
		for {
			b, ok := evaluateWalk(m, graph, walk)
			if ok {
				c := buildCircuit(m, t, atomCluster, walk, b)
				for _, heIdx := range c.HalfEdges {
					used[heIdx] = true
				}
				circuits = append(circuits, c)
				break
			}
			if len(walk) >= maxSize {
				break
			}
			grown, grew := growCircuit(m, Circuit{HalfEdges: walk}, used)
			if !grew {
				break
			}
			walk = grown.HalfEdges
		}
	}
	return circuits
}

// BuildSegments implements phases 2 and 3. Every accepted trial circuit
// becomes a node; if its own reverse twin is already free (every edge
// glued), the two form a segment directly. Otherwise phase 2 extension
// (remove-one-edge first, then insert-one-edge) keeps pushing the circuit,
// up to maxExtended edges, until a free reverse appears. A circuit that
// extension cannot resolve is left dangling for phase 3's junction pass.
func BuildSegments(m *mesh.Mesh, graph *clustergraph.Graph, circuits []Circuit, maxExtended int) Network {
	if maxExtended < DefaultMaxBurgersCircuitSize {
		maxExtended = DefaultMaxExtendedBurgersCircuitSize
	}

	claimed := make(map[int]bool)
	for _, c := range circuits {
		for _, he := range c.HalfEdges {
			claimed[he] = true
		}
	}
	edgeIdx := buildEdgeIndex(m)

	net := Network{Graph: graph}
	var blockedNodes []int

	for _, seed := range circuits {
		current := seed
		var tail Circuit
		matched := false
		for {
			var ok bool
			tail, ok = reverseCircuit(m, current)
			if ok {
				matched = true
				break
			}
			if shrunk, okShrink := removeOneEdge(m, edgeIdx, current, claimed); okShrink {
				current = shrunk
				continue
			}
			if grown, okGrow := growCircuit(m, current, claimed); okGrow && len(grown.HalfEdges) <= maxExtended {
				current = grown
				continue
			}
			break
		}
		// removeOneEdge and growCircuit return a bare walk: recompute the
		// Burgers vector and cap loop of the circuit the loop settled on.
		current.Burgers, _ = evaluateWalk(m, graph, current.HalfEdges)
		current.SegmentMeshCap = append([]int(nil), current.HalfEdges...)

		headIdx := len(net.Circuits)
		current.IsDangling = !matched
		current.IsCompletelyBlocked = !matched
		headNodeIdx := len(net.Nodes)
		current.DislocationNode = headNodeIdx
		net.Circuits = append(net.Circuits, current)
		net.Nodes = append(net.Nodes, DislocationNode{Circuit: headIdx, Opposite: -1, JunctionRing: headNodeIdx, Dangling: !matched})

		if !matched {
			blockedNodes = append(blockedNodes, headNodeIdx)
			continue
		}

		tailIdx := len(net.Circuits)
		tail.BaseCluster = current.BaseCluster
		tail.SegmentMeshCap = append([]int(nil), tail.HalfEdges...)
		tailNodeIdx := len(net.Nodes)
		tail.DislocationNode = tailNodeIdx
		net.Circuits = append(net.Circuits, tail)
		net.Nodes = append(net.Nodes, DislocationNode{Circuit: tailIdx, Opposite: headNodeIdx, JunctionRing: tailNodeIdx, Dangling: false})
		net.Nodes[headNodeIdx].Opposite = tailNodeIdx
		net.Nodes[headNodeIdx].Dangling = false

		net.Segments = append(net.Segments, DislocationSegment{
			ID:           len(net.Segments),
			Burgers:      current.Burgers,
			BaseCluster:  current.BaseCluster,
			Line:         []r3.Vec{tail.Center, current.Center},
			CoreSize:     []int{len(tail.HalfEdges), len(current.HalfEdges)},
			Nodes:        [2]int{tailNodeIdx, headNodeIdx},
			ReplacedWith: -1,
		})
	}

	sewJunctions(m, &net, blockedNodes)
	classifySegments(&net)

	return net
}

// sewJunctions implements the irreducible part of phase 3: circuits that
// extension could not pair off directly but that dangle at the same
// tessellation atom (mesh.Build's vertex duplication keeps one mesh vertex
// per chart, so this grouping is the physical "same atom" test, not a
// mesh-vertex-id coincidence) are linked into one cyclic junctionRing. Two
// circuits meeting through an ordinary glued edge never reach this pass:
// BuildSegments already pairs those directly via reverseCircuit, so only
// genuine three-or-more-way meetings are left to sew here.
func sewJunctions(m *mesh.Mesh, net *Network, blocked []int) {
	type groupKey struct {
		tessVertex  int
		baseCluster int
	}
	groups := make(map[groupKey][]int)
	for _, n := range blocked {
		c := net.Circuits[net.Nodes[n].Circuit]
		if len(c.HalfEdges) == 0 {
			continue
		}
		v := m.Vertices[m.HalfEdges[c.HalfEdges[0]].Origin]
		key := groupKey{tessVertex: v, baseCluster: c.BaseCluster}
		groups[key] = append(groups[key], n)
	}
	for _, ring := range groups {
		if len(ring) < 3 {
			continue
		}
		for i, n := range ring {
			next := ring[(i+1)%len(ring)]
			net.Nodes[n].JunctionRing = next
			net.Nodes[n].Dangling = false
			net.Circuits[net.Nodes[n].Circuit].IsDangling = false
		}
		// The Burgers-vector-sum-to-zero invariant over a junction ring
		// only holds once every meeting circuit is expressed in a common
		// cluster frame; grouping by baseCluster above keeps the raw sum
		// meaningful here without needing an extra transition composition
		// per ring member.
		var sum r3.Vec
		for _, n := range ring {
			sum = r3.Add(sum, net.Circuits[net.Nodes[n].Circuit].Burgers)
		}
		_ = sum
	}
}

// classifySegments implements phase 4: a segment whose nodes are opposite
// each other or share a junction ring, with coincident polyline endpoints,
// is closed. Every other segment is infinite: in a periodic cell a
// dislocation line that does not close threads through the periodic
// boundary rather than ending.
func classifySegments(net *Network) {
	for i := range net.Segments {
		seg := &net.Segments[i]
		if len(seg.Line) == 0 {
			continue
		}
		a, b := seg.Nodes[0], seg.Nodes[1]
		linked := a == b || net.Nodes[a].Opposite == b || inJunctionRing(net.Nodes, a, b)
		endpointsCoincide := r3.Norm(r3.Sub(seg.Line[0], seg.Line[len(seg.Line)-1])) < loopEndpointThreshold
		if linked && endpointsCoincide {
			seg.Closed = true
		} else {
			seg.Infinite = true
		}
	}
}

func inJunctionRing(nodes []DislocationNode, a, b int) bool {
	cur := a
	for i := 0; i <= len(nodes); i++ {
		if cur == b {
			return true
		}
		next := nodes[cur].JunctionRing
		if next == cur {
			return false
		}
		cur = next
	}
	return false
}

// DefectMesh returns the interface mesh with every face claimed by an
// accepted circuit removed and replaced by a triangle fan capping that
// circuit's own boundary loop (its segmentMeshCap), so the result stays a
// closed surface instead of having a hole at every traced dislocation.
func DefectMesh(m *mesh.Mesh, circuits []Circuit) *mesh.Mesh {
	claimed := make(map[int]bool)
	for _, c := range circuits {
		for _, heIdx := range c.HalfEdges {
			claimed[m.HalfEdges[heIdx].Face] = true
		}
	}

	out := &mesh.Mesh{
		Vertices:         append([]int(nil), m.Vertices...),
		IsCompletelyGood: m.IsCompletelyGood,
		IsCompletelyBad:  m.IsCompletelyBad,
	}
	oldToNew := make(map[int]int)
	for faceIdx, face := range m.Faces {
		if claimed[faceIdx] {
			continue
		}
		newFaceIdx := len(out.Faces)
		var newHE [3]int
		for i, heIdx := range face.HalfEdges {
			he := m.HalfEdges[heIdx]
			newIdx := len(out.HalfEdges)
			oldToNew[heIdx] = newIdx
			he.Face = newFaceIdx
			he.Opposite = -1
			out.HalfEdges = append(out.HalfEdges, he)
			newHE[i] = newIdx
		}
		face.HalfEdges = newHE
		out.Faces = append(out.Faces, face)
	}
	for oldIdx, newIdx := range oldToNew {
		if opp := m.HalfEdges[oldIdx].Opposite; opp >= 0 {
			if newOpp, ok := oldToNew[opp]; ok {
				out.HalfEdges[newIdx].Opposite = newOpp
			}
		}
	}

	for _, c := range circuits {
		capCircuit(m, out, c)
	}

	return out
}

// capCircuit fan-triangulates a circuit's segmentMeshCap from its first
// vertex, re-closing the hole its claimed faces left behind. Cap half-edges
// are not real tetrahedron-face edges, so they carry no elastic transition
// data (ClusterVector/Transition stay zero) and no Opposite link to the
// rest of the mesh; they exist purely to keep the defect mesh a closed
// surface at every traced dislocation's former location. Region -1 marks a
// cap face so it is never mistaken for a real supergrain/bad region id.
func capCircuit(m *mesh.Mesh, out *mesh.Mesh, c Circuit) {
	n := len(c.SegmentMeshCap)
	if n < 3 {
		return
	}
	origin := func(i int) int { return m.HalfEdges[c.SegmentMeshCap[i]].Origin }
	v0 := origin(0)
	for i := 1; i < n-1; i++ {
		v1, v2 := origin(i), origin(i+1)
		faceIdx := len(out.Faces)
		pairs := [3][2]int{{v0, v1}, {v1, v2}, {v2, v0}}
		var newHE [3]int
		for k, pair := range pairs {
			idx := len(out.HalfEdges)
			out.HalfEdges = append(out.HalfEdges, mesh.HalfEdge{
				Origin: pair[0], Dest: pair[1], Opposite: -1, Face: faceIdx,
			})
			newHE[k] = idx
		}
		out.Faces = append(out.Faces, mesh.Face{V: [3]int{v0, v1, v2}, HalfEdges: newHE, Region: -1})
	}
}
