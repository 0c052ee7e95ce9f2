// Package neighbor implements the two neighbor-query engines the rest of the
// pipeline is built on: a cutoff-sphere finder backed by a periodic bin
// grid, and a k-nearest finder backed by a bucketed kd-tree with explicit
// ghost replication. Both consume positions plus a *cell.Cell and are
// grounded in the original cutoff_neighbor_finder.h / nearest_neighbor_finder.h
// semantics.
package neighbor

import (
	"math"

	"github.com/rodyherrera/volterra/cell"
	"github.com/rodyherrera/volterra/errs"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pair is one neighbor relation returned by CutoffFinder.Neighbors.
type Pair struct {
	Index    int      // neighbor atom index
	Delta    r3.Vec   // position[Index] - position[i], minimum image
	DistSq   float64  // squared length of Delta
	PBCShift [3]int   // integer cell-shift applied to reach this image
}

// CutoffFinder answers "all atoms within cutoff of atom i" queries over a
// periodic cell using a cell-list (bin grid) of bins at least cutoff wide,
// with bin indices wrapping around on periodic axes, so the 3x3x3 (or
// fewer) stencil around an atom's own bin covers every candidate within
// cutoff.
type CutoffFinder struct {
	c       *cell.Cell
	cutoff  float64
	nbins   [3]int
	bins    map[[3]int][]int
	frac    []r3.Vec // fractional coordinates of each atom, wrapped into [0,1) on periodic axes
}

// NewCutoffFinder preprocesses positions into the bin grid. It returns
// *errs.CellTooSmall if any periodic axis's thickness is below cutoff.
func NewCutoffFinder(positions []r3.Vec, c *cell.Cell, cutoff float64) (*CutoffFinder, error) {
	f := &CutoffFinder{c: c, cutoff: cutoff, bins: make(map[[3]int][]int)}

	for d := 0; d < 3; d++ {
		thickness := math.Abs(r3.Dot(c.AxisVector(d), c.CellNormalVector(d)))
		n := int(math.Floor(thickness / cutoff))
		if n < 1 {
			if c.PBC[d] {
				return nil, &errs.CellTooSmall{Axis: d}
			}
			n = 1
		}
		f.nbins[d] = n
	}

	f.frac = make([]r3.Vec, len(positions))
	for i, p := range positions {
		fr := c.AbsoluteToReduced(p)
		comps := [3]float64{fr.X, fr.Y, fr.Z}
		for d := 0; d < 3; d++ {
			if c.PBC[d] {
				comps[d] -= math.Floor(comps[d])
			} else if comps[d] < 0 {
				comps[d] = 0
			} else if comps[d] >= 1 {
				comps[d] = math.Nextafter(1, 0)
			}
		}
		fr = r3.Vec{X: comps[0], Y: comps[1], Z: comps[2]}
		f.frac[i] = fr
		key := f.binOf(fr)
		f.bins[key] = append(f.bins[key], i)
	}
	return f, nil
}

func (f *CutoffFinder) binOf(fr r3.Vec) [3]int {
	comps := [3]float64{fr.X, fr.Y, fr.Z}
	var key [3]int
	for d := 0; d < 3; d++ {
		b := int(comps[d] * float64(f.nbins[d]))
		if b >= f.nbins[d] {
			b = f.nbins[d] - 1
		}
		if b < 0 {
			b = 0
		}
		key[d] = b
	}
	return key
}

// Neighbors returns every atom within cutoff of atom i (i excluded), in an
// unspecified but deterministic order (stencil bin order, then the order
// atoms were added to each bin).
func (f *CutoffFinder) Neighbors(i int) []Pair {
	origin := f.binOf(f.frac[i])
	var out []Pair
	var offs [3][]int
	for d := 0; d < 3; d++ {
		if f.nbins[d] == 1 {
			offs[d] = []int{0}
		} else {
			offs[d] = []int{-1, 0, 1}
		}
	}
	seen := make(map[int]bool)
	for _, ox := range offs[0] {
		for _, oy := range offs[1] {
			for _, oz := range offs[2] {
				key, ok := f.shiftBin(origin, [3]int{ox, oy, oz})
				if !ok {
					continue
				}
				for _, j := range f.bins[key] {
					if j == i || seen[j] {
						continue
					}
					p, ok := f.pairFor(i, j)
					if ok {
						out = append(out, p)
						seen[j] = true
					}
				}
			}
		}
	}
	return out
}

// shiftBin applies an integer bin offset, wrapping on periodic axes and
// rejecting out-of-range bins on non-periodic axes.
func (f *CutoffFinder) shiftBin(origin [3]int, off [3]int) ([3]int, bool) {
	var out [3]int
	for d := 0; d < 3; d++ {
		b := origin[d] + off[d]
		if f.c.PBC[d] {
			b = ((b % f.nbins[d]) + f.nbins[d]) % f.nbins[d]
		} else if b < 0 || b >= f.nbins[d] {
			return out, false
		}
		out[d] = b
	}
	return out, true
}

func (f *CutoffFinder) pairFor(i, j int) (Pair, bool) {
	fi, fj := f.frac[i], f.frac[j]
	d := r3.Sub(fj, fi)
	comps := [3]float64{d.X, d.Y, d.Z}
	var shift [3]int
	for dim := 0; dim < 3; dim++ {
		if f.c.PBC[dim] {
			s := math.Round(comps[dim])
			comps[dim] -= s
			shift[dim] = -int(s)
		}
	}
	delta := f.c.ReducedToAbsolute(r3.Vec{X: comps[0], Y: comps[1], Z: comps[2]})
	distSq := r3.Dot(delta, delta)
	if distSq > f.cutoff*f.cutoff {
		return Pair{}, false
	}
	return Pair{Index: j, Delta: delta, DistSq: distSq, PBCShift: shift}, true
}
