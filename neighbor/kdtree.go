package neighbor

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// point is one entry in the kd-tree: a ghost-aware atom image.
type point struct {
	pos      r3.Vec
	atom     int    // original (primary) atom index this image belongs to
	shift    [3]int // integer cell shift applied to reach this image
	isGhost  bool
}

const kdBucketSize = 16

// kdNode is one node of the bucketed kd-tree. Leaves have splitDim == -1 and
// reference a contiguous run [start,end) of the reordered points slice;
// internal nodes split on splitDim at splitVal and point at left/right
// children (indices into nodes, -1 = none).
type kdNode struct {
	splitDim        int
	splitVal        float64
	left, right     int
	start, end      int
	boundsLo, boundsHi r3.Vec
}

// kdTree is an axis-aligned median-split, bucketed-leaf kd-tree over ghost-
// replicated points. No ready-made pure-Go kd-tree models periodic ghost
// points directly, so this is hand rolled rather than forced through
// gonum's generic spatial/kdtree.Interface.
type kdTree struct {
	points []point
	nodes  []kdNode
	root   int
}

func buildKDTree(points []point) *kdTree {
	t := &kdTree{points: points}
	if len(points) == 0 {
		t.root = -1
		return t
	}
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	reordered := make([]point, 0, len(points))
	t.root = t.build(points, idx, &reordered, 0)
	t.points = reordered
	return t
}

func (t *kdTree) build(src []point, idx []int, out *[]point, depth int) int {
	if len(idx) <= kdBucketSize {
		start := len(*out)
		for _, i := range idx {
			*out = append(*out, src[i])
		}
		lo, hi := boundsOf(*out, start, len(*out))
		t.nodes = append(t.nodes, kdNode{splitDim: -1, left: -1, right: -1, start: start, end: len(*out), boundsLo: lo, boundsHi: hi})
		return len(t.nodes) - 1
	}

	dim := depth % 3
	sort.Slice(idx, func(a, b int) bool {
		return comp(src[idx[a]].pos, dim) < comp(src[idx[b]].pos, dim)
	})
	mid := len(idx) / 2
	splitVal := comp(src[idx[mid]].pos, dim)

	nodeIdx := len(t.nodes)
	t.nodes = append(t.nodes, kdNode{splitDim: dim, splitVal: splitVal})

	left := t.build(src, idx[:mid], out, depth+1)
	right := t.build(src, idx[mid:], out, depth+1)

	t.nodes[nodeIdx].left = left
	t.nodes[nodeIdx].right = right
	lo, hi := mergeBounds(t.nodes[left], t.nodes[right])
	t.nodes[nodeIdx].boundsLo = lo
	t.nodes[nodeIdx].boundsHi = hi
	return nodeIdx
}

func comp(v r3.Vec, dim int) float64 {
	switch dim {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func boundsOf(pts []point, start, end int) (lo, hi r3.Vec) {
	lo = pts[start].pos
	hi = pts[start].pos
	for i := start + 1; i < end; i++ {
		p := pts[i].pos
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return
}

func mergeBounds(a, b kdNode) (lo, hi r3.Vec) {
	lo = r3.Vec{X: min(a.boundsLo.X, b.boundsLo.X), Y: min(a.boundsLo.Y, b.boundsLo.Y), Z: min(a.boundsLo.Z, b.boundsLo.Z)}
	hi = r3.Vec{X: max(a.boundsHi.X, b.boundsHi.X), Y: max(a.boundsHi.Y, b.boundsHi.Y), Z: max(a.boundsHi.Z, b.boundsHi.Z)}
	return
}

// minDistSqToBox returns the squared distance from q to the node's bounding
// box (0 if q is inside it), used to prune subtrees during search.
func minDistSqToBox(q r3.Vec, lo, hi r3.Vec) float64 {
	var d float64
	for _, c := range [][3]float64{{q.X, lo.X, hi.X}, {q.Y, lo.Y, hi.Y}, {q.Z, lo.Z, hi.Z}} {
		x, l, h := c[0], c[1], c[2]
		if x < l {
			d += (l - x) * (l - x)
		} else if x > h {
			d += (x - h) * (x - h)
		}
	}
	return d
}
