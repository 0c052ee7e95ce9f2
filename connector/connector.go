// Package connector implements grain formation: growing clusters by
// region-flooding over compatible neighbors, recording transitions for
// incompatible interface bonds, and forming supergrains by transitive
// closure of orientation compatibility. Grounded in katalvlaran-lvlath's
// bfs package for the flood-fill traversal idiom and in its prim_kruskal
// package's disjoint-set for the supergrain union-find, and in
// ExaScience-ptra's cluster/clustering.go queue-driven label propagation.
package connector

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/clustergraph"
	"github.com/rodyherrera/volterra/linalg"
	"github.com/rodyherrera/volterra/structid"
)

// Options configures the connector's compatibility tolerances.
type Options struct {
	GrowToleranceDegrees       float64 // neighbor-merge disorientation tolerance
	SupergrainToleranceDegrees float64 // coarser tolerance for supergrain formation
}

// DefaultOptions mirrors typical PTM practice: a tight tolerance to grow a
// grain from a single orientation, a looser one to lump near-identical
// grains (e.g. across a thin stacking-fault sliver) into one supergrain.
var DefaultOptions = Options{GrowToleranceDegrees: 2, SupergrainToleranceDegrees: 5}

// Connector owns the cluster graph and the per-atom cluster assignment it
// builds.
type Connector struct {
	Graph       *clustergraph.Graph
	AtomCluster []int // atom index -> cluster id (0 = unassigned/amorphous)
	opts        Options
	envs        []structid.Environment
	positions   []r3.Vec
}

// New creates a Connector over the given per-atom PTM environments.
func New(envs []structid.Environment, positions []r3.Vec, opts Options) *Connector {
	return &Connector{
		Graph:       clustergraph.NewGraph(),
		AtomCluster: make([]int, len(envs)),
		opts:        opts,
		envs:        envs,
		positions:   positions,
	}
}

// BuildClusters runs the seed and BFS grow phases over every atom.
func (c *Connector) BuildClusters() {
	for seed := range c.envs {
		if c.envs[seed].Result.Type == structid.Other || c.AtomCluster[seed] != 0 {
			continue
		}
		clusterID := c.Graph.CreateCluster(c.envs[seed].Result.Type)
		c.AtomCluster[seed] = clusterID
		queue := []int{seed}
		for len(queue) > 0 {
			atom := queue[0]
			queue = queue[1:]
			c.growFrom(atom, clusterID, &queue)
		}
	}
	c.recomputeClusterStats()
}

func (c *Connector) growFrom(atom, clusterID int, queue *[]int) {
	env := c.envs[atom]
	structure := env.Result.Type
	for _, neighborSlot := range env.Result.Correspondence {
		if neighborSlot < 0 || neighborSlot >= len(env.NeighborAtoms) {
			continue
		}
		nb := env.NeighborAtoms[neighborSlot]
		if c.AtomCluster[nb] == clusterID {
			continue
		}
		nbEnv := c.envs[nb]
		if nbEnv.Result.Type != structure {
			continue
		}

		misorientation := misorientationMatrix(env.Result, nbEnv.Result)
		angle := structid.Disorientation(structure, env.Result.Orientation, nbEnv.Result.Orientation)

		if angle <= c.opts.GrowToleranceDegrees {
			if c.AtomCluster[nb] == 0 {
				c.AtomCluster[nb] = clusterID
				*queue = append(*queue, nb)
			}
			// already claimed by this cluster via another path: nothing
			// further to record.
			continue
		}

		if c.AtomCluster[nb] == 0 {
			// neighbor not yet in any cluster; leave it for its own seed
			// pass. No bond is recorded here: it is recorded when that
			// seed's grow pass reaches this atom from the other side.
			continue
		}

		c.Graph.ConnectOrIncrement(clusterID, c.AtomCluster[nb], misorientation)
	}
}

// misorientationMatrix returns the rotation taking atom i's local frame to
// atom j's, from their two (possibly symmetry-ambiguous) PTM orientations.
func misorientationMatrix(ri, rj structid.Result) linalg.Mat3 {
	return rj.Orientation.Mul(ri.Orientation.Transpose())
}

func (c *Connector) recomputeClusterStats() {
	n := c.Graph.NumClusters()
	counts := make([]int, n)
	coms := make([]r3.Vec, n)
	for atom, cid := range c.AtomCluster {
		counts[cid]++
		coms[cid] = r3.Add(coms[cid], c.positions[atom])
	}
	for id := 1; id < n; id++ {
		cl := c.Graph.Cluster(id)
		cl.AtomCount = counts[id]
		if counts[id] > 0 {
			cl.CenterOfMass = r3.Scale(1/float64(counts[id]), coms[id])
		}
	}
	// seed orientation: assign each cluster's Orientation from its first
	// (seeding) atom, found by a second pass since seeds aren't tracked
	// explicitly above.
	assignedOrientation := make([]bool, n)
	for atom, cid := range c.AtomCluster {
		if cid == 0 || assignedOrientation[cid] {
			continue
		}
		c.Graph.Cluster(cid).Orientation = c.envs[atom].Result.Orientation
		assignedOrientation[cid] = true
	}
}

// BuildSupergrains unions clusters connected by a transition whose rotation
// angle falls within SupergrainToleranceDegrees, via union-find over the
// cluster graph's transitions, and returns the region id for every
// cluster: cluster 0 (amorphous) always maps to 0, singleton crystalline
// clusters map to their own id, and unioned clusters all map to their
// union-find root's id.
func (c *Connector) BuildSupergrains() []int {
	n := c.Graph.NumClusters()
	parent := make([]int, n)
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

	for id := 1; id < n; id++ {
		for _, tIdx := range c.Graph.Cluster(id).Transitions() {
			t := c.Graph.Transition(tIdx)
			if t.From == 0 || t.To == 0 || t.IsSelf() {
				continue
			}
			if t.TM.RotationAngleDegrees() <= c.opts.SupergrainToleranceDegrees {
				union(t.From, t.To)
			}
		}
	}

	region := make([]int, n)
	for id := 1; id < n; id++ {
		region[id] = find(id)
	}
	return region
}

// ProcessDefects attributes each amorphous (structure==OTHER) atom to the
// cluster of its majority-vote crystalline neighbor, without altering the
// crystal's structure. Returns a fresh attribution map;
// AtomCluster itself is left untouched (0 stays the "no crystal" value for
// region labeling downstream).
func (c *Connector) ProcessDefects() []int {
	attribution := make([]int, len(c.envs))
	for atom, env := range c.envs {
		if env.Result.Type != structid.Other {
			attribution[atom] = c.AtomCluster[atom]
			continue
		}
		votes := make(map[int]int)
		for _, nb := range env.NeighborAtoms {
			if cid := c.AtomCluster[nb]; cid != 0 {
				votes[cid]++
			}
		}
		best, bestCount := 0, 0
		for cid, count := range votes {
			if count > bestCount || (count == bestCount && cid < best) {
				best, bestCount = cid, count
			}
		}
		attribution[atom] = best
	}
	return attribution
}
