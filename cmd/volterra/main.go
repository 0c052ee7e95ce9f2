// Command volterra runs the dislocation extraction pipeline over a small
// synthetic FCC block, the way gofem's own thin main.go loads a .sim file
// and drives fem.NewFEM/FEM.Run. This driver builds its frame in memory
// instead of parsing one, since file parsing is out of scope (SPEC_FULL.md
// Non-goals).
package main

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/cell"
	"github.com/rodyherrera/volterra/volterra"
)

func main() {
	defer func() {
		if err := recover(); err != nil {
			chk.Verbose = true
			io.PfRed("ERROR: %v\n", err)
		}
	}()

	cellsPerSide := io.ArgToInt(0, 4)
	lattice := io.ArgToFloat(1, 3.6)
	deterministic := io.ArgToBool(2, true)
	verbose := io.ArgToBool(3, true)

	positions, c, err := fccBlock(cellsPerSide, lattice)
	if err != nil {
		io.PfRed("failed to build synthetic frame: %v\n", err)
		return
	}

	opts := volterra.DefaultOptions
	opts.Deterministic = deterministic
	opts.Verbose = verbose

	out, err := volterra.Analyze(positions, c, opts)
	if err != nil {
		io.PfRed("analysis failed: %v\n", err)
		return
	}

	io.Pfgreen("atoms:               %d\n", len(positions))
	io.Pfgreen("interface mesh:      %d faces (completely good=%v, completely bad=%v)\n",
		len(out.InterfaceMesh.Faces), out.InterfaceMesh.IsCompletelyGood, out.InterfaceMesh.IsCompletelyBad)
	io.Pfgreen("dislocation segments: %d\n", len(out.DislocationNetwork.Segments))
}

// fccBlock builds an FCC lattice of cellsPerSide^3 conventional cells with
// edge length a, periodic along all three axes, as a defect-free synthetic
// frame to exercise the pipeline end to end.
func fccBlock(cellsPerSide int, a float64) ([]r3.Vec, *cell.Cell, error) {
	if cellsPerSide < 1 {
		cellsPerSide = 1
	}
	basis := []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 0.5 * a, Y: 0.5 * a, Z: 0},
		{X: 0.5 * a, Y: 0, Z: 0.5 * a},
		{X: 0, Y: 0.5 * a, Z: 0.5 * a},
	}
	var positions []r3.Vec
	for ix := 0; ix < cellsPerSide; ix++ {
		for iy := 0; iy < cellsPerSide; iy++ {
			for iz := 0; iz < cellsPerSide; iz++ {
				origin := r3.Vec{X: float64(ix) * a, Y: float64(iy) * a, Z: float64(iz) * a}
				for _, b := range basis {
					positions = append(positions, r3.Add(origin, b))
				}
			}
		}
	}
	side := float64(cellsPerSide) * a
	c, err := cell.New(r3.Vec{X: side}, r3.Vec{Y: side}, r3.Vec{Z: side}, true, true, true, false)
	if err != nil {
		return nil, nil, err
	}
	return positions, c, nil
}
