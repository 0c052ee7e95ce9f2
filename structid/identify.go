// Package structid implements polyhedral template matching: per atom, it
// fits the neighbor shell against each candidate reference template by a
// best-fit rotation, accepting the best match below an RMSD threshold.
// Grounded in the original polyhedral_template_matching.h for
// the overall accept/reject shape, and in sarat-asymmetrica-foldvedic's
// quat_search/quaternion_lbfgs/coordinate_builder idiom of seeding a small
// number of candidate orientations and refining each by least squares —
// adapted here from that code's gradient refinement to a closed-form Horn
// (Kabsch) refinement, since the "gradient" in this domain is just the
// rotation that minimizes RMSD given a point correspondence.
package structid

import (
	"math"
	"sort"

	"github.com/rodyherrera/volterra/linalg"
	"gonum.org/v1/gonum/spatial/r3"
)

// InputNeighborLimit and OutputNeighborLimit bound the neighbor shell PTM
// considers.
const (
	InputNeighborLimit  = 18
	OutputNeighborLimit = 16
)

// DefaultRMSDThreshold is the default acceptance threshold.
const DefaultRMSDThreshold = 0.10

// Correspondence maps template vertex index -> neighbor slot index (an
// index into the atom's neighbor list, in [0, nNeighbors)).
type Correspondence []int

// Result is the per-atom PTM outcome.
type Result struct {
	Type            StructureType
	Orientation     linalg.Mat3 // template-local -> spatial
	RMSD            float64
	Scale           float64
	Correspondence  Correspondence
	TemplateIndex   int // which Templates()[i] matched
}

// Identify fits neighborDeltas (spatial displacement vectors to an atom's
// nearest neighbors, ascending by distance, length already clipped to
// InputNeighborLimit) against every candidate template and returns the best
// match, or a Result with Type==Other carrying only the best RMSD seen
// (+Inf if no template fit) if nothing clears threshold.
func Identify(neighborDeltas []r3.Vec, rmsdThreshold float64) Result {
	best := Result{Type: Other, RMSD: math.Inf(1)}
	n := len(neighborDeltas)
	if n > OutputNeighborLimit {
		neighborDeltas = neighborDeltas[:OutputNeighborLimit]
		n = OutputNeighborLimit
	}

	for ti, tmpl := range Templates() {
		if n < len(tmpl.Vectors) {
			continue
		}
		cand := fitTemplate(tmpl, neighborDeltas)
		if cand.RMSD < best.RMSD {
			cand.TemplateIndex = ti
			best = cand
		}
	}

	if best.RMSD <= rmsdThreshold {
		return best
	}
	return Result{Type: Other, RMSD: best.RMSD}
}

// fitTemplate searches a bounded set of seed correspondences (pairs of
// nearby neighbors matched against pairs of template vectors whose mutual
// angle is compatible) and refines the best one with Horn alignment.
func fitTemplate(tmpl Template, neighbors []r3.Vec) Result {
	n := len(neighbors)
	m := len(tmpl.Vectors)

	seedNeighbors := n
	if seedNeighbors > 6 {
		seedNeighbors = 6
	}

	best := Result{Type: tmpl.Type, RMSD: math.Inf(1)}

	for a := 0; a < seedNeighbors; a++ {
		for b := 0; b < seedNeighbors; b++ {
			if a == b {
				continue
			}
			na, nb := r3.Unit(neighbors[a]), r3.Unit(neighbors[b])
			angleN := math.Acos(clamp(r3.Dot(na, nb), -1, 1))

			for ti := 0; ti < m; ti++ {
				for tj := 0; tj < m; tj++ {
					if ti == tj {
						continue
					}
					angleT := math.Acos(clamp(r3.Dot(tmpl.Vectors[ti], tmpl.Vectors[tj]), -1, 1))
					if math.Abs(angleN-angleT) > 0.35 { // ~20 degrees of slack
						continue
					}

					rot := seedRotation(tmpl.Vectors[ti], tmpl.Vectors[tj], na, nb)
					corr := greedyCorrespondence(tmpl.Vectors, neighbors, rot)
					if corr == nil {
						continue
					}
					cand := refine(tmpl, neighbors, corr)
					if cand.RMSD < best.RMSD {
						best = cand
						best.Correspondence = corr
					}
				}
			}
		}
	}
	return best
}

// seedRotation builds the rotation mapping template vectors (p,q) onto
// spatial directions (a,b), via matched orthonormal frames.
func seedRotation(p, q, a, b r3.Vec) linalg.Mat3 {
	ft := frame(p, q)
	fn := frame(a, b)
	return fn.Mul(ft.Transpose())
}

// frame builds a right-handed orthonormal basis (as matrix columns) from two
// non-parallel vectors: e1 along a, e3 along a x b, e2 completing the frame.
func frame(a, b r3.Vec) linalg.Mat3 {
	e1 := r3.Unit(a)
	e3 := r3.Unit(r3.Cross(a, b))
	e2 := r3.Cross(e3, e1)
	return linalg.Columns(e1, e2, e3)
}

// greedyCorrespondence rotates every template vector into the spatial frame
// and greedily assigns each to its nearest still-unclaimed neighbor
// direction, by ascending residual. Returns nil if neighbors run out.
func greedyCorrespondence(tmplVecs []r3.Vec, neighbors []r3.Vec, rot linalg.Mat3) Correspondence {
	m := len(tmplVecs)
	n := len(neighbors)
	if n < m {
		return nil
	}

	type cand struct{ ti, ni int; cost float64 }
	var cands []cand
	units := make([]r3.Vec, n)
	for i, v := range neighbors {
		units[i] = r3.Unit(v)
	}
	for ti, tv := range tmplVecs {
		rv := rot.MulVec(tv)
		for ni, nv := range units {
			d := r3.Sub(rv, nv)
			cands = append(cands, cand{ti, ni, r3.Dot(d, d)})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].cost < cands[j].cost })

	corr := make(Correspondence, m)
	for i := range corr {
		corr[i] = -1
	}
	usedN := make([]bool, n)
	assigned := 0
	for _, c := range cands {
		if corr[c.ti] != -1 || usedN[c.ni] {
			continue
		}
		corr[c.ti] = c.ni
		usedN[c.ni] = true
		assigned++
		if assigned == m {
			break
		}
	}
	if assigned != m {
		return nil
	}
	return corr
}

// refine runs Horn alignment on the established correspondence to produce
// the final rotation, RMSD and scale.
func refine(tmpl Template, neighbors []r3.Vec, corr Correspondence) Result {
	matched := make([]r3.Vec, len(corr))
	for i, ni := range corr {
		matched[i] = neighbors[ni]
	}
	ha := linalg.HornAlign(tmpl.Vectors, matched)
	return Result{
		Type:        tmpl.Type,
		Orientation: ha.Rotation,
		RMSD:        ha.RMSD,
		Scale:       ha.Scale,
	}
}

// Environment bundles one atom's ordered neighbor list with its PTM result,
// so downstream stages (the cluster connector, the elastic mapper's direct-
// neighbor test) can recover which actual atom a template neighbor slot
// corresponds to.
type Environment struct {
	NeighborAtoms []int      // neighbor atom index per slot
	NeighborShift [][3]int   // periodic shift applied to reach that neighbor image
	NeighborDelta []r3.Vec   // spatial displacement to that neighbor image
	Result        Result
}

// IdentifyAtom runs Identify over one atom's neighbor shell and packages the
// result together with the (possibly truncated) neighbor list it matched
// against.
func IdentifyAtom(neighborAtoms []int, neighborShift [][3]int, neighborDelta []r3.Vec, rmsdThreshold float64) Environment {
	n := len(neighborDelta)
	if n > OutputNeighborLimit {
		n = OutputNeighborLimit
	}
	res := Identify(neighborDelta, rmsdThreshold)
	return Environment{
		NeighborAtoms: neighborAtoms[:n],
		NeighborShift: neighborShift[:n],
		NeighborDelta: neighborDelta[:n],
		Result:        res,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
