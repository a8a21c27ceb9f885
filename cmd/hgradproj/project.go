package main

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/notargets/HGradProjection/basis"
	"github.com/notargets/HGradProjection/element"
	"github.com/notargets/HGradProjection/field"
	"github.com/notargets/HGradProjection/metrics"
	"github.com/notargets/HGradProjection/projection"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var flags struct {
	cell    string
	order   int
	cells   int
	workers int
	mesh    string
	seed    int64
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project a polynomial target and report the coefficient error",
	Long: `Without --mesh, builds a batch of reference cells with random vertex
numberings and compares the projected coefficients with the exact nodal
interpolant of the target.

With --mesh, reads a tetrahedral mesh, projects the physical target pulled
back to every cell, and checks that cells sharing a face agree on every
vertex, edge and face coefficient of that face.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Mesh != "" {
			return runMesh(cmd.OutOrStdout(), cfg.Mesh)
		}
		return runSynthetic(cmd.OutOrStdout())
	},
}

func init() {
	f := projectCmd.Flags()
	f.StringVar(&flags.cell, "cell", "", "cell type: line, tri or tet")
	f.IntVar(&flags.order, "order", 0, "basis order")
	f.IntVar(&flags.cells, "cells", 0, "cells in the synthetic batch")
	f.IntVar(&flags.workers, "workers", 0, "concurrent partitions (0: GOMAXPROCS)")
	f.StringVar(&flags.mesh, "mesh", "", "tetrahedral mesh file")
	f.Int64Var(&flags.seed, "seed", 0, "seed for the random vertex numberings")
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Lookup("cell") == nil {
		return
	}
	if f.Changed("cell") {
		cfg.Cell = flags.cell
	}
	if f.Changed("order") {
		cfg.Order = flags.order
	}
	if f.Changed("cells") {
		cfg.Cells = flags.cells
	}
	if f.Changed("workers") {
		cfg.Execution.Workers = flags.workers
	}
	if f.Changed("mesh") {
		cfg.Mesh = flags.mesh
	}
	if f.Changed("seed") {
		cfg.Seed = flags.seed
	}
}

// session holds what every projection run needs.
type session struct {
	topo *element.Topology
	lb   *basis.Lagrange
	cat  *projection.Catalog
	poly *field.Polynomial
	reg  *prometheus.Registry
	p    *projection.Projector
}

func newSession(g element.ElementGeometry) (*session, error) {
	topo, err := element.NewTopology(g)
	if err != nil {
		return nil, err
	}
	s := &session{topo: topo, reg: prometheus.NewRegistry()}
	if s.lb, err = basis.NewLagrange(topo, cfg.Order); err != nil {
		return nil, err
	}
	if s.cat, err = projection.NewCatalog(topo, cfg.Order, cfg.TargetCubatureDegree()); err != nil {
		return nil, err
	}
	if s.poly, err = cfg.Polynomial(topo.Dim); err != nil {
		return nil, err
	}
	if s.poly.Degree() > cfg.Order {
		logger.Warn("target degree exceeds basis order, projection will not be exact",
			zap.Int("targetDegree", s.poly.Degree()), zap.Int("order", cfg.Order))
	}
	strategy, err := cfg.PartitionStrategy()
	if err != nil {
		return nil, err
	}
	rec, err := metrics.NewRecorder(s.reg)
	if err != nil {
		return nil, err
	}
	s.p, err = projection.NewProjector(s.lb, s.cat, projection.Config{
		Workers:       cfg.Execution.Workers,
		PartitionSize: cfg.Execution.PartitionSize,
		Strategy:      strategy,
		Logger:        logger,
		Metrics:       rec,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("projection set up",
		zap.Stringer("basis", s.lb),
		zap.Stringer("target", s.poly),
		zap.Int("basisCubatureDegree", s.cat.Degree(projection.BasisPoints)),
		zap.Int("targetCubatureDegree", s.cat.Degree(projection.TargetPoints)))
	return s, nil
}

func (s *session) project(target projection.TargetFunc, orts []element.Orientation) (*projection.Result, error) {
	samples, err := projection.SampleTarget(s.cat, len(orts), target)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := s.p.Project(samples, orts)
	if err != nil {
		return nil, err
	}
	logger.Info("projected",
		zap.Int("cells", len(orts)),
		zap.Int("computedDofs", len(res.Computed)),
		zap.Duration("elapsed", time.Since(start)))
	s.logMetrics()
	return res, nil
}

func (s *session) logMetrics() {
	families, err := s.reg.Gather()
	if err != nil {
		logger.Warn("gathering metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", m.GetHistogram().GetSampleCount()),
					zap.Float64("sumSeconds", m.GetHistogram().GetSampleSum()))
			}
			logger.Debug("metric", fields...)
		}
	}
}

func runSynthetic(out io.Writer) error {
	g, err := cfg.Geometry()
	if err != nil {
		return err
	}
	s, err := newSession(g)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	nv := s.topo.NumVertices()
	orts := make([]element.Orientation, cfg.Cells)
	for c := range orts {
		if orts[c], err = element.NewOrientation(s.topo, rng.Perm(4 * nv)[:nv]); err != nil {
			return err
		}
	}
	res, err := s.project(field.Uniform{F: s.poly}, orts)
	if err != nil {
		return err
	}

	want := interpolant(s, orts)
	var maxErr float64
	for c := range orts {
		maxErr = math.Max(maxErr, floats.Distance(res.Coeffs.RawRowView(c), want.RawRowView(c), math.Inf(1)))
	}
	fmt.Fprintf(out, "%s, %d cells, target %s\n", s.lb, len(orts), s.poly)
	fmt.Fprintf(out, "max coefficient error vs interpolant: %.3e\n", maxErr)
	return nil
}

// interpolant returns the nodal interpolant of the target in each cell's
// oriented basis.
func interpolant(s *session, orts []element.Orientation) *mat.Dense {
	card := s.lb.Cardinality()
	want := mat.NewDense(len(orts), card, nil)
	for c, ort := range orts {
		perm := s.lb.Permutation(ort)
		for j := 0; j < card; j++ {
			want.Set(c, j, s.poly.Value(s.lb.Node(perm[j])))
		}
	}
	return want
}
