package connector

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/linalg"
	"github.com/rodyherrera/volterra/structid"
)

func rotX(deg float64) linalg.Mat3 {
	a := deg * math.Pi / 180
	c, s := math.Cos(a), math.Sin(a)
	return linalg.Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func twoAtomEnv(orientA, orientB linalg.Mat3) []structid.Environment {
	return []structid.Environment{
		{
			NeighborAtoms: []int{1},
			NeighborShift: [][3]int{{0, 0, 0}},
			NeighborDelta: []r3.Vec{{X: 1}},
			Result: structid.Result{
				Type:           structid.FCC,
				Orientation:    orientA,
				Correspondence: structid.Correspondence{0},
			},
		},
		{
			NeighborAtoms: []int{0},
			NeighborShift: [][3]int{{0, 0, 0}},
			NeighborDelta: []r3.Vec{{X: -1}},
			Result: structid.Result{
				Type:           structid.FCC,
				Orientation:    orientB,
				Correspondence: structid.Correspondence{0},
			},
		},
	}
}

func TestBuildClustersMergesCompatibleNeighbors(t *testing.T) {
	envs := twoAtomEnv(linalg.Identity3(), linalg.Identity3())
	positions := []r3.Vec{{X: 0}, {X: 1}}
	c := New(envs, positions, DefaultOptions)
	c.BuildClusters()

	if c.AtomCluster[0] == 0 || c.AtomCluster[1] == 0 {
		t.Fatalf("expected both atoms assigned to a crystal cluster, got %v", c.AtomCluster)
	}
	if c.AtomCluster[0] != c.AtomCluster[1] {
		t.Fatalf("compatible neighbors should merge into one cluster, got %v", c.AtomCluster)
	}
	cl := c.Graph.Cluster(c.AtomCluster[0])
	if cl.AtomCount != 2 {
		t.Fatalf("cluster atom count = %d, want 2", cl.AtomCount)
	}
}

func TestBuildClustersRecordsIncompatibleTransition(t *testing.T) {
	envs := twoAtomEnv(linalg.Identity3(), rotX(30))
	positions := []r3.Vec{{X: 0}, {X: 1}}
	c := New(envs, positions, DefaultOptions)
	c.BuildClusters()

	if c.AtomCluster[0] == c.AtomCluster[1] {
		t.Fatalf("incompatible neighbors should not merge, got same cluster %d", c.AtomCluster[0])
	}
	idx, ok := c.Graph.FindTransition(c.AtomCluster[0], c.AtomCluster[1])
	if !ok {
		t.Fatal("expected an interface transition between the two incompatible clusters")
	}
	if c.Graph.Transition(idx).Area != 1 {
		t.Fatalf("Area = %d, want 1 for a single recorded bond", c.Graph.Transition(idx).Area)
	}
}

func TestBuildSupergrainsUnionsWithinTolerance(t *testing.T) {
	envs := twoAtomEnv(linalg.Identity3(), rotX(1))
	positions := []r3.Vec{{X: 0}, {X: 1}}
	opts := Options{GrowToleranceDegrees: 0.1, SupergrainToleranceDegrees: 5}
	c := New(envs, positions, opts)
	c.BuildClusters()

	if c.AtomCluster[0] == c.AtomCluster[1] {
		t.Fatalf("1-degree misorientation should exceed a 0.1-degree grow tolerance, got same cluster %d", c.AtomCluster[0])
	}

	regions := c.BuildSupergrains()
	if regions[c.AtomCluster[0]] != regions[c.AtomCluster[1]] {
		t.Fatalf("expected both clusters in the same supergrain within a 5-degree tolerance, got %v", regions)
	}
}

func TestBuildSupergrainsKeepsDistantClustersSeparate(t *testing.T) {
	envs := twoAtomEnv(linalg.Identity3(), rotX(30))
	positions := []r3.Vec{{X: 0}, {X: 1}}
	c := New(envs, positions, DefaultOptions)
	c.BuildClusters()

	regions := c.BuildSupergrains()
	if regions[c.AtomCluster[0]] == regions[c.AtomCluster[1]] {
		t.Fatalf("30-degree misorientation should exceed the default supergrain tolerance, got same region %d", regions[c.AtomCluster[0]])
	}
}

func TestProcessDefectsAttributesByMajorityNeighbor(t *testing.T) {
	envs := []structid.Environment{
		{Result: structid.Result{Type: structid.FCC, Orientation: linalg.Identity3()}},
		{Result: structid.Result{Type: structid.Other}, NeighborAtoms: []int{0, 0, 2}},
		{Result: structid.Result{Type: structid.Other}, NeighborAtoms: []int{1}},
	}
	positions := []r3.Vec{{X: 0}, {X: 1}, {X: 2}}
	c := New(envs, positions, DefaultOptions)
	c.BuildClusters()

	attribution := c.ProcessDefects()
	if attribution[1] != c.AtomCluster[0] {
		t.Fatalf("defect atom 1 should attribute to atom 0's crystal cluster, got %d want %d", attribution[1], c.AtomCluster[0])
	}
	if attribution[2] != 0 {
		t.Fatalf("defect atom 2 has no crystalline neighbor, want sentinel cluster 0, got %d", attribution[2])
	}
}
