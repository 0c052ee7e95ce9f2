// Package volterra wires the full dislocation extraction pipeline into a
// single entry point, the way gofem.NewFEM/FEM.Run construct then drive the
// finite element core over one already-built Domain. Analyze plays the same
// role here over one already-built simulation cell: structure identification,
// grain formation, tessellation, elastic mapping, interface mesh extraction,
// Burgers circuit tracing, and line smoothing run in that fixed order with a
// barrier between each, and the result is returned as a single FrameOutput.
package volterra

import (
	"math"
	"runtime"
	"sync"

	"github.com/cpmech/gosl/chk"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rodyherrera/volterra/cell"
	"github.com/rodyherrera/volterra/circuit"
	"github.com/rodyherrera/volterra/connector"
	"github.com/rodyherrera/volterra/diag"
	"github.com/rodyherrera/volterra/elastic"
	"github.com/rodyherrera/volterra/errs"
	"github.com/rodyherrera/volterra/linalg"
	"github.com/rodyherrera/volterra/mesh"
	"github.com/rodyherrera/volterra/neighbor"
	"github.com/rodyherrera/volterra/smooth"
	"github.com/rodyherrera/volterra/structid"
	"github.com/rodyherrera/volterra/tessellate"
)

// IdentificationMode names a structure-identification family. Analyze always
// runs polyhedral template matching; the Options field is accepted and not
// consulted.
type IdentificationMode int

const (
	PTM IdentificationMode = iota
	CNA
	Diamond
)

// Options configures one Analyze call. Every field maps directly to a
// recognized option of the analysis core; fields with no corresponding
// implemented component are accepted (so callers can carry one Options value
// across a future upgrade) and are called out in DESIGN.md rather than
// silently ignored.
type Options struct {
	// InputCrystalType biases structure-identification defaults toward an
	// expected lattice. Accepted but not yet used to bias template order;
	// every candidate template is always tried (see DESIGN.md).
	InputCrystalType structid.StructureType

	MaxBurgersCircuitSize         int
	MaxExtendedBurgersCircuitSize int

	SurfaceSmoothingLevel int // accepted; no surface-mesh smoother exists yet
	LineSmoothingLevel    int
	LineCoarseningLevel   float64 // merge-run interval, in position units

	// SFFlattenLevel is accepted for forward compatibility with a stacking-
	// fault flattening pass; no component in this module claims it yet.
	SFFlattenLevel float64

	RMSDThreshold      float64
	CrystalPathSteps   int
	IdentificationMode IdentificationMode
	Deterministic      bool
	ThreadCount        int // 0 = runtime.GOMAXPROCS(0)

	GrowToleranceDegrees       float64
	SupergrainToleranceDegrees float64

	// Verbose enables stage-by-stage diagnostics (ambient logging, not one
	// of the analysis core's recognized options).
	Verbose bool
}

// DefaultOptions mirrors the defaults named in the interface contract.
var DefaultOptions = Options{
	InputCrystalType:              structid.Other,
	MaxBurgersCircuitSize:         circuit.DefaultMaxBurgersCircuitSize,
	MaxExtendedBurgersCircuitSize: circuit.DefaultMaxExtendedBurgersCircuitSize,
	SurfaceSmoothingLevel:         8,
	LineSmoothingLevel:            4,
	LineCoarseningLevel:           4,
	SFFlattenLevel:                0.2,
	RMSDThreshold:                 structid.DefaultRMSDThreshold,
	CrystalPathSteps:              elastic.DefaultCrystalPathBudget,
	IdentificationMode:            PTM,
	Deterministic:                 false,
	ThreadCount:                   0,
	GrowToleranceDegrees:          connector.DefaultOptions.GrowToleranceDegrees,
	SupergrainToleranceDegrees:    connector.DefaultOptions.SupergrainToleranceDegrees,
}

func (o Options) validate() {
	chk.IntAssertLessThan(2, o.MaxBurgersCircuitSize)
	chk.IntAssertLessThan(o.MaxBurgersCircuitSize-1, o.MaxExtendedBurgersCircuitSize)
	if o.RMSDThreshold <= 0 {
		chk.Panic("rmsdThreshold must be positive, got %v", o.RMSDThreshold)
	}
	if o.CrystalPathSteps < 1 {
		chk.Panic("crystalPathSteps must be at least 1, got %d", o.CrystalPathSteps)
	}
}

// FrameOutput is everything one Analyze call produces.
type FrameOutput struct {
	DislocationNetwork circuit.Network
	InterfaceMesh      *mesh.Mesh
	DefectMesh         *mesh.Mesh

	StructureTypes []structid.StructureType
	Orientations   []linalg.Mat3
	AtomCluster    []int
}

// Analyze is the single entry point: a pure function of positions, cell and
// options, with no persisted state across calls.
func Analyze(positions []r3.Vec, c *cell.Cell, opts Options) (*FrameOutput, error) {
	opts.validate()
	if len(positions) == 0 {
		return nil, &errs.InvalidCell{Reason: "no atoms supplied"}
	}

	log := diag.NewLogger(opts.Verbose)

	log.Stage("structure identification")
	envs, maxNeighborDistance := identifyAll(positions, c, opts)
	log.Done("structure identification", len(positions))

	for d := 0; d < 3; d++ {
		if !c.PBC[d] {
			continue
		}
		if r3.Norm(c.AxisVector(d)) < 2*maxNeighborDistance {
			return nil, &errs.CellTooSmall{Axis: d}
		}
	}

	log.Stage("cluster connection")
	conn := connector.New(envs, positions, connector.Options{
		GrowToleranceDegrees:       opts.GrowToleranceDegrees,
		SupergrainToleranceDegrees: opts.SupergrainToleranceDegrees,
	})
	conn.BuildClusters()
	conn.ProcessDefects()
	supergrainOf := conn.BuildSupergrains()
	log.Done("cluster connection", conn.Graph.NumClusters())

	log.Stage("tessellation")
	tess, err := tessellate.Build(positions, c, maxNeighborDistance)
	if err != nil {
		return nil, err
	}
	log.Done("tessellation", len(tess.Tetrahedra))

	log.Stage("elastic mapping")
	isWrapping := func(a, b int) bool {
		raw := r3.Sub(positions[b], positions[a])
		return r3.Norm(r3.Sub(c.WrapVector(raw), raw)) > 1e-9
	}
	elasticMap := elastic.Build(tess, isWrapping, conn.Graph, envs, conn.AtomCluster, opts.CrystalPathSteps)
	log.Done("elastic mapping", 0)

	log.Stage("interface mesh")
	region := mesh.NewRegionLabeler(tess, elasticMap, conn.AtomCluster, supergrainOf)
	ifMesh, err := mesh.Build(tess, elasticMap, region, c, maxNeighborDistance)
	if err != nil {
		return nil, err
	}
	log.Done("interface mesh", len(ifMesh.Faces))

	out := &FrameOutput{
		InterfaceMesh: ifMesh,
		AtomCluster:   conn.AtomCluster,
	}
	out.StructureTypes, out.Orientations = collectIdentification(envs)

	if ifMesh.IsCompletelyBad {
		// no good/bad boundary anywhere: either no atom is elastically
		// compatible, or the whole sample is one defect-free grain. Either
		// way this is not an error (spec.md "No crystalline atoms").
		out.DislocationNetwork = circuit.Network{Graph: conn.Graph}
		out.DefectMesh = ifMesh
		return out, nil
	}

	log.Stage("burgers circuit tracing")
	circuits := circuit.BuildTrialCircuits(ifMesh, tess, conn.Graph, conn.AtomCluster, opts.MaxBurgersCircuitSize)
	network := circuit.BuildSegments(ifMesh, conn.Graph, circuits, opts.MaxExtendedBurgersCircuitSize)
	log.Done("burgers circuit tracing", len(network.Segments))

	log.Stage("smoothing")
	for i := range network.Segments {
		poly := &smooth.Polyline{Points: network.Segments[i].Line, IsLoop: network.Segments[i].Closed}
		smooth.Coarsen(poly, opts.LineCoarseningLevel)
		smooth.Smooth(poly, opts.LineSmoothingLevel)
		network.Segments[i].Line = poly.Points
	}
	log.Done("smoothing", len(network.Segments))

	out.DislocationNetwork = network
	out.DefectMesh = circuit.DefectMesh(ifMesh, network.Circuits)
	return out, nil
}

func collectIdentification(envs []structid.Environment) ([]structid.StructureType, []linalg.Mat3) {
	types := make([]structid.StructureType, len(envs))
	orientations := make([]linalg.Mat3, len(envs))
	for i, e := range envs {
		types[i] = e.Result.Type
		orientations[i] = e.Result.Orientation
	}
	return types, orientations
}

// estimateNeighborRadius picks a ghost-layer radius generous enough to cover
// each atom's input neighbor shell, from the mean interatomic spacing
// implied by cell volume and atom count. This is the one piece of the
// pipeline built on plain arithmetic rather than a pack library: it is a
// single density estimate, not a spatial data structure or numerical
// algorithm, so no third-party dependency applies (see DESIGN.md).
func estimateNeighborRadius(positions []r3.Vec, c *cell.Cell) float64 {
	n := len(positions)
	if n == 0 {
		return 1
	}
	spacing := math.Cbrt(c.Volume() / float64(n))
	return spacing * 4
}

// identifyAll runs polyhedral template matching over every atom, spreading
// the embarrassingly-parallel per-atom work across a bounded worker pool
// (runtime.GOMAXPROCS(0) workers by default, one in deterministic mode),
// grounded in gofem/fem's own worker-pool-over-domains parallel loop.
// Each goroutine writes only to its own slice index, so no coordination
// beyond the final WaitGroup barrier is needed. It also returns the largest
// neighbor distance seen across every atom, which sizes the tessellation
// ghost layer and the interface mesh's alpha-shape threshold downstream.
func identifyAll(positions []r3.Vec, c *cell.Cell, opts Options) ([]structid.Environment, float64) {
	finder := neighbor.NewKNNFinder(positions, c, estimateNeighborRadius(positions, c))

	envs := make([]structid.Environment, len(positions))
	maxDistSq := make([]float64, len(positions))

	workers := opts.ThreadCount
	if opts.Deterministic {
		workers = 1
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(positions) {
		workers = len(positions)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results := finder.Query(positions[i], structid.InputNeighborLimit, i)
				atoms := make([]int, len(results))
				shifts := make([][3]int, len(results))
				deltas := make([]r3.Vec, len(results))
				var maxSq float64
				for j, r := range results {
					atoms[j] = r.Atom
					shifts[j] = r.Shift
					deltas[j] = r.Delta
					if r.DistSq > maxSq {
						maxSq = r.DistSq
					}
				}
				envs[i] = structid.IdentifyAtom(atoms, shifts, deltas, opts.RMSDThreshold)
				maxDistSq[i] = maxSq
			}
		}()
	}
	for i := range positions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var maxSq float64
	for _, d := range maxDistSq {
		if d > maxSq {
			maxSq = d
		}
	}
	return envs, math.Sqrt(maxSq)
}
