package projection

import (
	"fmt"
	"runtime"
	"time"

	"github.com/notargets/HGradProjection/element"
	"github.com/notargets/HGradProjection/metrics"
	"github.com/notargets/HGradProjection/partitions"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Config tunes how a Projector executes. The zero value is usable.
type Config struct {
	Workers       int // concurrent partitions; <= 0 means GOMAXPROCS
	PartitionSize int // cells per partition; <= 0 derives it from Workers
	Strategy      partitions.PartitionStrategy

	Solver  LocalSolver // nil means NewDenseSolver()
	Logger  *zap.Logger
	Metrics *metrics.Recorder

	// EntityOrder, when set, returns the order in which the count subcells of
	// dimension dim are projected. It must be a permutation of 0..count-1.
	EntityOrder func(dim, count int) []int
}

// Result of one projection.
type Result struct {
	Coeffs   *mat.Dense // [numCells × cardinality]
	Computed []int      // dofs in the order their stages completed
}

// Projector computes the hierarchical H(grad) projection of sampled target
// fields onto a basis, for batches of cells sharing one reference topology.
type Projector struct {
	basis  BasisOracle
	cat    EvaluationCatalog
	cfg    Config
	solver LocalSolver
	log    *zap.Logger
}

func NewProjector(basis BasisOracle, cat EvaluationCatalog, cfg Config) (*Projector, error) {
	if err := checkDofTags(basis, cat); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if _, err := partitions.ParseStrategy(cfg.Strategy.String()); err != nil {
		return nil, err
	}
	p := &Projector{
		basis:  basis,
		cat:    cat,
		cfg:    cfg,
		solver: cfg.Solver,
		log:    cfg.Logger,
	}
	if p.solver == nil {
		p.solver = NewDenseSolver()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p, nil
}

// checkDofTags verifies that the subcell dof tables cover every basis
// function exactly once.
func checkDofTags(basis BasisOracle, cat EvaluationCatalog) error {
	card := basis.Cardinality()
	set := NewDofSet(card)
	for dim := 0; dim <= cat.Dimension(); dim++ {
		for id := 0; id < cat.NumSubcells(dim); id++ {
			for j := 0; j < basis.DofCount(dim, id); j++ {
				if err := set.Append(basis.DofOrdinal(dim, id, j)); err != nil {
					return fmt.Errorf("dof table, subcell (%d,%d): %w", dim, id, err)
				}
			}
		}
	}
	if set.Len() != card {
		return fmt.Errorf("%w: subcells carry %d dofs, basis has %d", ErrShapeMismatch, set.Len(), card)
	}
	return nil
}

// projectionRun holds the state of one Project call.
type projectionRun struct {
	p        *Projector
	dim      int
	target   *TargetSamples
	orts     []element.Orientation
	values   [][]*mat.Dense // [cell][0] basis values at value points
	gB, gT   [][]*mat.Dense // [cell][direction] basis gradients
	coeffs   *mat.Dense
	computed *DofSet
	layout   *partitions.PartitionLayout
}

// Project computes the coefficients of every cell of the batch. orts holds
// one orientation per cell; target must be sampled on the catalog's points
// for the same number of cells.
func (p *Projector) Project(target *TargetSamples, orts []element.Orientation) (*Result, error) {
	numCells := len(orts)
	if numCells == 0 {
		return nil, ErrEmptyBatch
	}
	if err := target.validate(p.cat, numCells); err != nil {
		return nil, err
	}

	r := &projectionRun{
		p:        p,
		dim:      p.cat.Dimension(),
		target:   target,
		orts:     orts,
		coeffs:   mat.NewDense(numCells, p.basis.Cardinality(), nil),
		computed: NewDofSet(p.basis.Cardinality()),
	}
	var err error
	if r.values, err = p.basis.Evaluate(p.cat.ValuePoints(), element.OpValue, orts); err != nil {
		return nil, fmt.Errorf("basis values: %w", err)
	}
	if r.gB, err = p.basis.Evaluate(p.cat.Points(BasisPoints), element.OpGrad, orts); err != nil {
		return nil, fmt.Errorf("basis gradients at basis points: %w", err)
	}
	if r.gT, err = p.basis.Evaluate(p.cat.Points(TargetPoints), element.OpGrad, orts); err != nil {
		return nil, fmt.Errorf("basis gradients at target points: %w", err)
	}

	pb := &partitions.PartitionBuilder{
		NumCells:            numCells,
		TargetPartitionSize: p.partitionSize(numCells),
		Strategy:            p.cfg.Strategy,
	}
	if r.layout, err = pb.BuildPartitions(); err != nil {
		return nil, err
	}
	p.log.Debug("projecting batch",
		zap.Int("cells", numCells),
		zap.Int("cardinality", p.basis.Cardinality()),
		zap.Int("partitions", r.layout.NumPartitions),
		zap.Int("workers", p.cfg.Workers))

	if err = r.run(); err != nil {
		return nil, err
	}
	p.cfg.Metrics.AddCells(numCells)
	return &Result{Coeffs: r.coeffs, Computed: r.computed.Dofs()}, nil
}

func (p *Projector) partitionSize(numCells int) int {
	if p.cfg.PartitionSize > 0 {
		return p.cfg.PartitionSize
	}
	size := (numCells + 4*p.cfg.Workers - 1) / (4 * p.cfg.Workers)
	if size < 1 {
		size = 1
	}
	return size
}

func (p *Projector) entityOrder(dim, count int) ([]int, error) {
	if p.cfg.EntityOrder == nil || count == 0 {
		order := make([]int, count)
		for i := range order {
			order[i] = i
		}
		return order, nil
	}
	order := p.cfg.EntityOrder(dim, count)
	if len(order) != count {
		return nil, fmt.Errorf("%w: dimension %d has %d subcells, order lists %d", ErrEntityOrder, dim, count, len(order))
	}
	seen := make([]bool, count)
	for _, id := range order {
		if id < 0 || id >= count || seen[id] {
			return nil, fmt.Errorf("%w: dimension %d order %v", ErrEntityOrder, dim, order)
		}
		seen[id] = true
	}
	return order, nil
}

// forEachPartition runs fn on every non-empty partition with at most
// Workers goroutines. It returns once all of them finished, with the first
// error any of them reported.
func (r *projectionRun) forEachPartition(fn func(cells []int) error) error {
	var g errgroup.Group
	g.SetLimit(r.p.cfg.Workers)
	for i := range r.layout.Partitions {
		cells := r.layout.Partitions[i].Cells
		if len(cells) == 0 {
			continue
		}
		g.Go(func() error { return fn(cells) })
	}
	return g.Wait()
}

func (r *projectionRun) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.p.cfg.Metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		r.p.cfg.Metrics.Fault(stage)
	}
	return err
}

// solveEntity assembles and solves the local problem of one subcell on every
// cell, then records its dofs as computed.
func (r *projectionRun) solveEntity(ep *entityProblem) error {
	if err := r.computed.Check(ep.dofs); err != nil {
		return fmt.Errorf("%s %d: %w", ep.stage, ep.entity, err)
	}
	J := len(ep.dofs)
	r.p.log.Debug("projecting subcell",
		zap.String("stage", ep.stage),
		zap.Int("entity", ep.entity),
		zap.Int("dofs", J),
		zap.Int("basisPoints", ep.basisRange.Len()),
		zap.Int("targetPoints", ep.targetRange.Len()),
		zap.Int("deflation", len(ep.deflate)))

	err := r.forEachPartition(func(cells []int) error {
		s := newEntityScratch(ep, r.dim)
		batch := &SystemBatch{
			Cells:                   cells,
			Mass:                    make([]*mat.SymDense, len(cells)),
			RHS:                     make([]*mat.VecDense, len(cells)),
			MatrixIndependentOfCell: ep.matrixIndependentOfCell,
		}
		for i, c := range cells {
			batch.Mass[i] = mat.NewSymDense(J, nil)
			batch.RHS[i] = mat.NewVecDense(J, nil)
			ep.assemble(c, r.gB[c], r.gT[c], r.target, r.coeffs, s, batch.Mass[i], batch.RHS[i])
		}
		return r.p.solver.Solve(r.coeffs, batch, ep.dofs)
	})
	if err != nil {
		return fmt.Errorf("%s %d: %w", ep.stage, ep.entity, err)
	}
	r.p.cfg.Metrics.AddSystems(ep.stage, len(r.orts))
	return r.computed.Append(ep.dofs...)
}
