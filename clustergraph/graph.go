// Package clustergraph implements the cluster graph: clusters (grains)
// connected by rotation-valued transitions forming a groupoid. Mutation is
// protected by a single coarse mutex, the way katalvlaran-lvlath's
// graph/core guards its adjacency structures with one lock per graph
// rather than per-vertex locking — contention here is rare relative to
// per-atom structure identification, which dominates the pipeline's work.
package clustergraph

import (
	"sync"

	"github.com/rodyherrera/volterra/linalg"
	"github.com/rodyherrera/volterra/structid"
	"gonum.org/v1/gonum/spatial/r3"
)

// TransitionMatrixEpsilon is the tolerance used to decide whether two
// transitions between the same pair of clusters carry the same rotation,
// and whether a composed path closes to identity.
const TransitionMatrixEpsilon = 1e-4

// Cluster is a maximal set of structurally compatible atoms sharing one
// local lattice orientation. Cluster 0 is the sentinel "amorphous" cluster.
type Cluster struct {
	ID               int
	Structure        structid.StructureType
	AtomCount        int
	Orientation      linalg.Mat3
	ParentTransition int // index into Graph.transitions, or -1 if this cluster is its own supergrain representative
	CenterOfMass     r3.Vec
	transitions      []int // indices into Graph.transitions, sorted ascending by Distance
}

// Transitions returns the cluster's transition indices, sorted ascending by
// distance.
func (c *Cluster) Transitions() []int { return c.transitions }

// Transition is a directed edge between two clusters carrying the rotation
// that aligns their local lattice frames.
type Transition struct {
	From, To int // cluster IDs
	TM       linalg.Mat3
	Reverse  int // index of the reverse transition
	Distance int
	Area     int
}

// IsSelf reports whether t is an identity self-loop: from==to, tm==I,
// distance==0. The reverse link is not examined.
func (t *Transition) IsSelf() bool {
	return t.From == t.To && t.Distance == 0 && t.TM.IsIdentity(TransitionMatrixEpsilon)
}

// Graph owns the clusters and transitions pools.
type Graph struct {
	mu          sync.Mutex
	clusters    []Cluster
	transitions []Transition
	negative    map[[2]int]bool // cached disconnected cluster-id pairs
}

// NewGraph returns a graph pre-populated with the sentinel cluster 0.
func NewGraph() *Graph {
	g := &Graph{negative: make(map[[2]int]bool)}
	g.clusters = append(g.clusters, Cluster{ID: 0, Structure: structid.Other, ParentTransition: -1})
	return g
}

// CreateCluster allocates a new cluster with a unique id and immediately
// gives it a self-transition.
func (g *Graph) CreateCluster(structure structid.StructureType) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := len(g.clusters)
	g.clusters = append(g.clusters, Cluster{ID: id, Structure: structure, ParentTransition: -1})
	g.createSelfTransitionLocked(id)
	return id
}

// Cluster returns a pointer to the cluster with the given id. The pointer is
// stable until the next CreateCluster call (slice reallocation).
func (g *Graph) Cluster(id int) *Cluster {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &g.clusters[id]
}

// NumClusters returns the number of clusters, including the sentinel.
func (g *Graph) NumClusters() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clusters)
}

// Transition returns a pointer to the transition at idx.
func (g *Graph) Transition(idx int) *Transition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &g.transitions[idx]
}

func (g *Graph) createSelfTransitionLocked(id int) int {
	idx := len(g.transitions)
	g.transitions = append(g.transitions, Transition{From: id, To: id, TM: linalg.Identity3(), Reverse: idx, Distance: 0})
	g.clusters[id].transitions = append(g.clusters[id].transitions, idx)
	return idx
}

// SelfTransitionOf returns the index of id's self-transition (always its
// first transition, created at CreateCluster time).
func (g *Graph) SelfTransitionOf(id int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clusters[id].transitions[0]
}

// FindTransition looks up an existing direct transition from a to b
// (linear scan over a's list).
func (g *Graph) FindTransition(a, b int) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.findTransitionLocked(a, b)
}

func (g *Graph) findTransitionLocked(a, b int) (int, bool) {
	for _, idx := range g.clusters[a].transitions {
		if g.transitions[idx].To == b {
			return idx, true
		}
	}
	return -1, false
}

// CreateClusterTransition returns an existing semantically-equal transition
// (same endpoints and tm equal within TransitionMatrixEpsilon) or allocates
// a forward/reverse pair, inserted sorted by distance. An identity rotation
// auto-reduces to the self-transition.
func (g *Graph) CreateClusterTransition(a, b int, tm linalg.Mat3, distance int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if a == b && tm.IsIdentity(TransitionMatrixEpsilon) {
		return g.clusters[a].transitions[0]
	}

	for _, idx := range g.clusters[a].transitions {
		t := g.transitions[idx]
		if t.To == b && t.TM.ApproxEqual(tm, TransitionMatrixEpsilon) {
			return idx
		}
	}

	fwdIdx := len(g.transitions)
	revIdx := fwdIdx + 1
	g.transitions = append(g.transitions,
		Transition{From: a, To: b, TM: tm, Reverse: revIdx, Distance: distance},
		Transition{From: b, To: a, TM: tm.Transpose(), Reverse: fwdIdx, Distance: distance},
	)
	g.insertSortedLocked(a, fwdIdx)
	g.insertSortedLocked(b, revIdx)
	delete(g.negative, canon(a, b))
	return fwdIdx
}

// ConnectOrIncrement records one interface bond between clusters a and b
// carrying misorientation tm: an existing matching transition has its Area
// (bond count) incremented; otherwise a new distance-1 transition pair is
// created with Area=1, so Area accumulates a weight proportional to the
// interface's bond count.
func (g *Graph) ConnectOrIncrement(a, b int, tm linalg.Mat3) int {
	g.mu.Lock()
	for _, idx := range g.clusters[a].transitions {
		t := &g.transitions[idx]
		if t.To == b && t.TM.ApproxEqual(tm, TransitionMatrixEpsilon) {
			t.Area++
			g.transitions[t.Reverse].Area++
			g.mu.Unlock()
			return idx
		}
	}
	g.mu.Unlock()

	idx := g.CreateClusterTransition(a, b, tm, 1)
	g.mu.Lock()
	g.transitions[idx].Area = 1
	g.transitions[g.transitions[idx].Reverse].Area = 1
	g.mu.Unlock()
	return idx
}

func (g *Graph) insertSortedLocked(clusterID, transIdx int) {
	list := g.clusters[clusterID].transitions
	d := g.transitions[transIdx].Distance
	pos := len(list)
	for i, idx := range list {
		if g.transitions[idx].Distance > d {
			pos = i
			break
		}
	}
	list = append(list, 0)
	copy(list[pos+1:], list[pos:])
	list[pos] = transIdx
	g.clusters[clusterID].transitions = list
}

func canon(a, b int) [2]int {
	if a < b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

// DetermineClusterTransition resolves a transition from a to b, trying (in
// order): identity, a direct edge, and bounded 2-hop composition through any
// of a's neighbors. Returns (-1,false) if no path exists; the
// negative result is cached per canonical pair so repeated failed lookups
// are O(1).
func (g *Graph) DetermineClusterTransition(a, b int) (int, bool) {
	if a == b {
		g.mu.Lock()
		idx := g.clusters[a].transitions[0]
		g.mu.Unlock()
		return idx, true
	}

	g.mu.Lock()
	if idx, ok := g.findTransitionLocked(a, b); ok {
		g.mu.Unlock()
		return idx, true
	}
	if len(g.clusters[a].transitions) <= 1 || len(g.clusters[b].transitions) <= 1 {
		g.mu.Unlock()
		return -1, false
	}
	key := canon(a, b)
	if g.negative[key] {
		g.mu.Unlock()
		return -1, false
	}

	// try 2-hop paths a->x->b, pick the shortest total distance.
	bestDist := -1
	var bestTM linalg.Mat3
	found := false
	aTransitions := append([]int(nil), g.clusters[a].transitions...)
	g.mu.Unlock()

	for _, axIdx := range aTransitions {
		g.mu.Lock()
		ax := g.transitions[axIdx]
		x := ax.To
		if x == a || x == b {
			g.mu.Unlock()
			continue
		}
		xbIdx, ok := g.findTransitionLocked(x, b)
		g.mu.Unlock()
		if !ok {
			continue
		}
		xb := g.Transition(xbIdx)
		total := ax.Distance + xb.Distance
		if !found || total < bestDist {
			bestDist = total
			bestTM = xb.TM.Mul(ax.TM)
			found = true
		}
	}

	if !found {
		g.mu.Lock()
		g.negative[key] = true
		g.mu.Unlock()
		return -1, false
	}

	idx := g.CreateClusterTransition(a, b, bestTM, bestDist)
	return idx, true
}

// ConcatenateClusterTransitions composes tAB then tBC:
// identity/self reuse on either factor, self-transition if tBC is tAB's
// reverse, otherwise a freshly materialized composition.
func (g *Graph) ConcatenateClusterTransitions(abIdx, bcIdx int) int {
	g.mu.Lock()
	ab := g.transitions[abIdx]
	bc := g.transitions[bcIdx]
	g.mu.Unlock()

	if ab.IsSelf() {
		return bcIdx
	}
	if bc.IsSelf() {
		return abIdx
	}
	if bcIdx == ab.Reverse {
		return g.SelfTransitionOf(ab.From)
	}
	tm := bc.TM.Mul(ab.TM)
	return g.CreateClusterTransition(ab.From, bc.To, tm, ab.Distance+bc.Distance)
}
