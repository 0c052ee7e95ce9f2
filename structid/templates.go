package structid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// StructureType is the per-atom classification result.
type StructureType int

const (
	Other StructureType = iota
	FCC
	HCP
	BCC
	ICO
	SC
	CubicDiamond
	HexDiamond
)

func (s StructureType) String() string {
	switch s {
	case FCC:
		return "FCC"
	case HCP:
		return "HCP"
	case BCC:
		return "BCC"
	case ICO:
		return "ICO"
	case SC:
		return "SC"
	case CubicDiamond:
		return "CUBIC_DIAMOND"
	case HexDiamond:
		return "HEX_DIAMOND"
	default:
		return "OTHER"
	}
}

// Template is a reference coordination structure: an ordered list of unit
// neighbor vectors that a candidate atom's neighbor shell is fit against.
// Reference data is statically known, not derived at runtime.
type Template struct {
	Type    StructureType
	Vectors []r3.Vec // unit vectors, template-local frame
}

func u(x, y, z float64) r3.Vec {
	v := r3.Vec{X: x, Y: y, Z: z}
	return r3.Scale(1/r3.Norm(v), v)
}

// candidateTemplates is the static table of reference structures the
// identifier tries, in slice order, against each atom's neighbor shell; each
// entry carries its own StructureType (the slice index is not the type), and
// no interface vtable is involved.
var candidateTemplates = buildTemplates()

func buildTemplates() []Template {
	var out []Template

	// FCC: 12 nearest neighbors along <110> directions.
	var fcc []r3.Vec
	for _, s1 := range []float64{1, -1} {
		for _, s2 := range []float64{1, -1} {
			fcc = append(fcc, u(s1, s2, 0), u(s1, 0, s2), u(0, s1, s2))
		}
	}
	out = append(out, Template{Type: FCC, Vectors: fcc})

	// HCP: 12 neighbors, ABAB stacking - 6 in-plane hexagon + 3 up + 3 down.
	var hcp []r3.Vec
	for k := 0; k < 6; k++ {
		ang := float64(k) * math.Pi / 3
		hcp = append(hcp, u(math.Cos(ang), math.Sin(ang), 0))
	}
	c := math.Sqrt(2.0 / 3.0) // ideal c/a based vertical offset, normalized direction
	for k := 0; k < 3; k++ {
		ang := float64(k)*2*math.Pi/3 + math.Pi/6
		r := math.Sqrt(1 - c*c)
		hcp = append(hcp, u(r*math.Cos(ang), r*math.Sin(ang), c))
	}
	for k := 0; k < 3; k++ {
		ang := float64(k)*2*math.Pi/3 + math.Pi/6
		r := math.Sqrt(1 - c*c)
		hcp = append(hcp, u(r*math.Cos(ang), r*math.Sin(ang), -c))
	}
	out = append(out, Template{Type: HCP, Vectors: hcp})

	// BCC: 8 first-shell <111> + 6 second-shell <100>, 14 total.
	var bcc []r3.Vec
	for _, sx := range []float64{1, -1} {
		for _, sy := range []float64{1, -1} {
			for _, sz := range []float64{1, -1} {
				bcc = append(bcc, u(sx, sy, sz))
			}
		}
	}
	bcc = append(bcc, u(1, 0, 0), u(-1, 0, 0), u(0, 1, 0), u(0, -1, 0), u(0, 0, 1), u(0, 0, -1))
	out = append(out, Template{Type: BCC, Vectors: bcc})

	// SC: 6 neighbors along <100>.
	sc := []r3.Vec{u(1, 0, 0), u(-1, 0, 0), u(0, 1, 0), u(0, -1, 0), u(0, 0, 1), u(0, 0, -1)}
	out = append(out, Template{Type: SC, Vectors: sc})

	// Cubic diamond: 4 tetrahedral primary bonds + 12 second-shell <110>-like
	// directions (the same outer shell FCC uses, since diamond cubic's
	// second shell sits on an FCC sublattice).
	tet := []r3.Vec{u(1, 1, 1), u(1, -1, -1), u(-1, 1, -1), u(-1, -1, 1)}
	cd := append([]r3.Vec{}, tet...)
	cd = append(cd, fcc...)
	out = append(out, Template{Type: CubicDiamond, Vectors: cd})

	// Hex diamond: same 4 tetrahedral primary bonds, outer shell taken from
	// the HCP second-shell geometry (hexagonal-stacked sublattice).
	hd := append([]r3.Vec{}, tet...)
	hd = append(hd, hcp...)
	out = append(out, Template{Type: HexDiamond, Vectors: hd})

	return out
}

// Templates returns the static reference table.
func Templates() []Template { return candidateTemplates }
