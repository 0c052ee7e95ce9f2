package neighbor

import (
	"math"

	"github.com/rodyherrera/volterra/cell"
	"github.com/rodyherrera/volterra/pool"
	"gonum.org/v1/gonum/spatial/r3"
)

// KNNFinder answers "k nearest images around this atom/point" queries,
// covering periodic boundaries by building explicit ghost images in a
// layer of width >= the finder's maxQueryDistance (images are taken one
// cell shift away at most, so the layer is at most one cell thick).
type KNNFinder struct {
	tree   *kdTree
	cell   *cell.Cell
}

// NewKNNFinder builds ghost images for every primary atom within maxDist of
// a periodic boundary and indexes primary+ghost points in a kd-tree.
func NewKNNFinder(positions []r3.Vec, c *cell.Cell, maxDist float64) *KNNFinder {
	pts := make([]point, 0, len(positions))
	for i, p := range positions {
		pts = append(pts, point{pos: p, atom: i})
	}

	var shiftRanges [3][]int
	for d := 0; d < 3; d++ {
		if c.PBC[d] {
			shiftRanges[d] = []int{-1, 0, 1}
		} else {
			shiftRanges[d] = []int{0}
		}
	}

	for i, p := range positions {
		for _, sx := range shiftRanges[0] {
			for _, sy := range shiftRanges[1] {
				for _, sz := range shiftRanges[2] {
					if sx == 0 && sy == 0 && sz == 0 {
						continue
					}
					shift := [3]int{sx, sy, sz}
					img := applyShift(c, p, shift)
					if !withinLayer(c, img, maxDist) {
						continue
					}
					pts = append(pts, point{pos: img, atom: i, shift: shift, isGhost: true})
				}
			}
		}
	}

	return &KNNFinder{tree: buildKDTree(pts), cell: c}
}

func applyShift(c *cell.Cell, p r3.Vec, shift [3]int) r3.Vec {
	v := p
	for d := 0; d < 3; d++ {
		if shift[d] != 0 {
			v = r3.Add(v, r3.Scale(float64(shift[d]), c.AxisVector(d)))
		}
	}
	return v
}

// withinLayer keeps a ghost image only if, along every axis, its reduced
// coordinate lies within a margin of the primary cell's [0,1] range. The
// margin is maxDist divided by that axis's thickness, and never less than
// half a cell; this trades a few superfluous ghosts for simplicity.
func withinLayer(c *cell.Cell, p r3.Vec, maxDist float64) bool {
	red := c.AbsoluteToReduced(p)
	comps := [3]float64{red.X, red.Y, red.Z}
	for d := 0; d < 3; d++ {
		margin := 0.5
		if thickness := math.Abs(r3.Dot(c.AxisVector(d), c.CellNormalVector(d))); thickness > 0 {
			margin = math.Max(margin, maxDist/thickness)
		}
		if comps[d] < -margin || comps[d] > 1+margin {
			return false
		}
	}
	return true
}

// Result is one k-NN hit.
type Result struct {
	Atom     int    // original atom index
	Shift    [3]int // periodic shift applied to reach this image
	Delta    r3.Vec // image position - query position
	DistSq   float64
}

// Query returns the k nearest images to pos, ascending by squared distance.
// If excludeAtom >= 0, images of that atom with zero shift are skipped
// (used when querying around one of the indexed atoms itself).
func (f *KNNFinder) Query(pos r3.Vec, k int, excludeAtom int) []Result {
	bq := pool.NewBoundedQueue(k)
	f.search(f.tree.root, pos, excludeAtom, bq)
	sorted := bq.Sorted()
	out := make([]Result, len(sorted))
	for i, it := range sorted {
		p := f.tree.points[it.Index]
		out[i] = Result{Atom: p.atom, Shift: p.shift, Delta: r3.Sub(p.pos, pos), DistSq: it.Priority}
	}
	return out
}

func (f *KNNFinder) search(nodeIdx int, q r3.Vec, excludeAtom int, bq *pool.BoundedQueue) {
	if nodeIdx < 0 {
		return
	}
	n := f.tree.nodes[nodeIdx]
	if n.splitDim == -1 {
		for i := n.start; i < n.end; i++ {
			p := f.tree.points[i]
			if excludeAtom >= 0 && p.atom == excludeAtom && p.shift == [3]int{0, 0, 0} {
				continue
			}
			d := r3.Sub(p.pos, q)
			bq.Push(i, r3.Dot(d, d))
		}
		return
	}
	near, far := n.left, n.right
	if comp(q, n.splitDim) > n.splitVal {
		near, far = far, near
	}
	f.search(near, q, excludeAtom, bq)
	if far >= 0 {
		fb := f.tree.nodes[far]
		if !bq.Full() || minDistSqToBox(q, fb.boundsLo, fb.boundsHi) < bq.Worst() {
			f.search(far, q, excludeAtom, bq)
		}
	}
}
