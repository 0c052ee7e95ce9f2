package clustergraph

import (
	"math"
	"testing"

	"github.com/rodyherrera/volterra/linalg"
	"github.com/rodyherrera/volterra/structid"
)

func rotZ(deg float64) linalg.Mat3 {
	a := deg * math.Pi / 180
	c, s := math.Cos(a), math.Sin(a)
	return linalg.Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func TestSelfTransitionInvariants(t *testing.T) {
	g := NewGraph()
	id := g.CreateCluster(structid.FCC)
	selfIdx := g.SelfTransitionOf(id)
	tr := g.Transition(selfIdx)
	if tr.From != id || tr.To != id || tr.Distance != 0 {
		t.Fatalf("self-transition malformed: %+v", tr)
	}
	if !tr.TM.IsIdentity(1e-9) {
		t.Fatalf("self-transition tm not identity: %v", tr.TM)
	}
	if tr.Reverse != selfIdx {
		t.Fatalf("self-transition reverse should point to itself")
	}
}

func TestReverseInvolution(t *testing.T) {
	g := NewGraph()
	a := g.CreateCluster(structid.FCC)
	b := g.CreateCluster(structid.FCC)
	idx := g.CreateClusterTransition(a, b, rotZ(30), 1)
	fwd := g.Transition(idx)
	rev := g.Transition(fwd.Reverse)
	if rev.From != b || rev.To != a {
		t.Fatalf("reverse endpoints wrong: %+v", rev)
	}
	prod := fwd.TM.Mul(rev.TM)
	if !prod.ApproxEqual(linalg.Identity3(), 1e-9) {
		t.Fatalf("tm * reverse.tm != I: %v", prod)
	}
	if rev.Reverse != idx {
		t.Fatalf("reverse.reverse should be the original index")
	}
}

func TestNonSelfTransitionHasPositiveDistance(t *testing.T) {
	g := NewGraph()
	a := g.CreateCluster(structid.FCC)
	b := g.CreateCluster(structid.FCC)
	idx := g.CreateClusterTransition(a, b, rotZ(10), 3)
	if g.Transition(idx).Distance < 1 {
		t.Fatal("non-self transition must have distance >= 1")
	}
}

func TestIdentityTransitionReducesToSelf(t *testing.T) {
	g := NewGraph()
	a := g.CreateCluster(structid.FCC)
	idx := g.CreateClusterTransition(a, a, linalg.Identity3(), 1)
	if idx != g.SelfTransitionOf(a) {
		t.Fatal("identity transition a->a should reduce to the self-transition")
	}
}

func TestDetermineTransitionTwoHop(t *testing.T) {
	g := NewGraph()
	a := g.CreateCluster(structid.FCC)
	b := g.CreateCluster(structid.FCC)
	c := g.CreateCluster(structid.FCC)
	g.CreateClusterTransition(a, b, rotZ(10), 1)
	g.CreateClusterTransition(b, c, rotZ(20), 1)

	idx, ok := g.DetermineClusterTransition(a, c)
	if !ok {
		t.Fatal("expected a 2-hop path a->b->c")
	}
	got := g.Transition(idx).TM
	want := rotZ(20).Mul(rotZ(10))
	if !got.ApproxEqual(want, 1e-6) {
		t.Fatalf("composed tm = %v, want %v", got, want)
	}
}

func TestDetermineTransitionDisconnected(t *testing.T) {
	g := NewGraph()
	a := g.CreateCluster(structid.FCC)
	b := g.CreateCluster(structid.FCC)
	_, ok := g.DetermineClusterTransition(a, b)
	if ok {
		t.Fatal("expected no path between two isolated clusters")
	}
}

func TestConcatenateTransitions(t *testing.T) {
	g := NewGraph()
	a := g.CreateCluster(structid.FCC)
	b := g.CreateCluster(structid.FCC)
	c := g.CreateCluster(structid.FCC)
	ab := g.CreateClusterTransition(a, b, rotZ(15), 1)
	bc := g.CreateClusterTransition(b, c, rotZ(25), 1)
	ac := g.ConcatenateClusterTransitions(ab, bc)
	got := g.Transition(ac).TM
	want := rotZ(25).Mul(rotZ(15))
	if !got.ApproxEqual(want, 1e-6) {
		t.Fatalf("concatenated tm = %v, want %v", got, want)
	}
}

func TestConcatenateWithReverseYieldsSelf(t *testing.T) {
	g := NewGraph()
	a := g.CreateCluster(structid.FCC)
	b := g.CreateCluster(structid.FCC)
	ab := g.CreateClusterTransition(a, b, rotZ(40), 1)
	ba := g.Transition(ab).Reverse
	self := g.ConcatenateClusterTransitions(ab, ba)
	if self != g.SelfTransitionOf(a) {
		t.Fatal("concatenating a transition with its reverse should yield the self-transition")
	}
}
