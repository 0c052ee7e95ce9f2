package pool

import "testing"

func TestArenaStableIndices(t *testing.T) {
	a := NewArena[int](0)
	i0 := a.Alloc(10)
	i1 := a.Alloc(20)
	if *a.Get(i0) != 10 || *a.Get(i1) != 20 {
		t.Fatal("unexpected values after Alloc")
	}
	*a.Get(i0) = 99
	if *a.Get(i0) != 99 {
		t.Fatal("Get should return a mutable reference")
	}
	a.Clear()
	if a.Len() != 0 {
		t.Fatal("Clear should reset length")
	}
}

func TestBoundedQueueKeepsSmallest(t *testing.T) {
	q := NewBoundedQueue(3)
	vals := []float64{5, 1, 9, 3, 7, 0.5}
	for i, v := range vals {
		q.Push(i, v)
	}
	sorted := q.Sorted()
	if len(sorted) != 3 {
		t.Fatalf("expected 3 items, got %d", len(sorted))
	}
	want := []float64{0.5, 1, 3}
	for i, it := range sorted {
		if it.Priority != want[i] {
			t.Fatalf("sorted[%d] = %v, want %v", i, it.Priority, want[i])
		}
	}
}
