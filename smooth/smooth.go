// Package smooth implements dislocation-line coarsening and Taubin λ/μ
// smoothing. Grounded in the original smooth_dislocations_modifier.h/.cpp for
// the coarsening special cases (short polylines, loops, infinite lines) and
// the exact two-pass Taubin filter constants.
package smooth

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// KPB is the Taubin pass-band parameter; Mu is derived from it and Lambda.
const (
	Lambda = 0.5
	KPB    = 0.1
)

// Mu returns the companion shrink factor for the two-pass Taubin filter.
func Mu() float64 {
	return 1 / (KPB - 1/Lambda)
}

// Polyline is a dislocation segment's line, with per-point core size used to
// weight coarsening.
type Polyline struct {
	Points   []r3.Vec
	CoreSize []int
	IsLoop   bool
}

// Coarsen merges runs of points closer together than interval into single
// weighted-average points. Polylines of 4 points or fewer, and loops with
// fewer than 3 points, bypass coarsening entirely.
func Coarsen(p *Polyline, interval float64) {
	n := len(p.Points)
	if n <= 4 || interval <= 0 {
		return
	}
	if p.IsLoop && n < 3 {
		return
	}

	var outPts []r3.Vec
	var outCore []int

	i := 0
	for i < n {
		runStart := i
		weight := float64(weightOf(p.CoreSize, i))
		sum := r3.Scale(weight, p.Points[i])
		totalWeight := weight
		j := i + 1
		for j < n && r3.Norm(r3.Sub(p.Points[j], p.Points[runStart])) < interval {
			w := float64(weightOf(p.CoreSize, j))
			sum = r3.Add(sum, r3.Scale(w, p.Points[j]))
			totalWeight += w
			j++
		}
		if totalWeight == 0 {
			totalWeight = float64(j - runStart)
		}
		avg := r3.Scale(1/totalWeight, sum)
		outPts = append(outPts, avg)
		outCore = append(outCore, weightOf(p.CoreSize, runStart))
		i = j
	}

	// pin non-loop endpoints to their original positions, since a merge run
	// starting or ending at an endpoint must not drift it.
	if !p.IsLoop && len(outPts) > 0 {
		outPts[0] = p.Points[0]
		outPts[len(outPts)-1] = p.Points[n-1]
	}

	p.Points = outPts
	p.CoreSize = outCore
}

func weightOf(coreSize []int, i int) int {
	if i < len(coreSize) && coreSize[i] > 0 {
		return coreSize[i]
	}
	return 1
}

// Smooth applies `levels` iterations of the two-pass Taubin λ/μ filter.
// Endpoints of non-loop polylines are pinned across every iteration.
func Smooth(p *Polyline, levels int) {
	n := len(p.Points)
	if n < 3 || levels <= 0 {
		return
	}
	mu := Mu()
	for iter := 0; iter < levels; iter++ {
		applyPass(p, Lambda)
		applyPass(p, mu)
	}
	p.CoreSize = nil
}

func applyPass(p *Polyline, factor float64) {
	n := len(p.Points)
	next := make([]r3.Vec, n)
	for i := 0; i < n; i++ {
		prev, succ := neighborIndices(i, n, p.IsLoop)
		if prev < 0 || succ < 0 {
			next[i] = p.Points[i]
			continue
		}
		lap := r3.Scale(0.5, r3.Add(r3.Sub(p.Points[prev], p.Points[i]), r3.Sub(p.Points[succ], p.Points[i])))
		next[i] = r3.Add(p.Points[i], r3.Scale(factor, lap))
	}
	if !p.IsLoop {
		next[0] = p.Points[0]
		next[n-1] = p.Points[n-1]
	}
	p.Points = next
}

// neighborIndices returns the previous/next point index for i, wrapping for
// loops and returning -1 for a non-loop's endpoints (pinned, no Laplacian).
func neighborIndices(i, n int, isLoop bool) (int, int) {
	if isLoop {
		return (i - 1 + n) % n, (i + 1) % n
	}
	if i == 0 || i == n-1 {
		return -1, -1
	}
	return i - 1, i + 1
}
