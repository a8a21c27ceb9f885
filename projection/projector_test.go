package projection

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notargets/HGradProjection/element"
	"github.com/notargets/HGradProjection/metrics"
	"github.com/notargets/HGradProjection/partitions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func newProjector(t *testing.T, fx *fixture, cfg Config) *Projector {
	t.Helper()
	p, err := NewProjector(fx.basis, fx.cat, cfg)
	require.NoError(t, err)
	return p
}

// stageOrder lists every dof in the order the stages compute them.
func stageOrder(fx *fixture) []int {
	var dofs []int
	for dim := 0; dim <= fx.topo.Dim; dim++ {
		for id := 0; id < fx.topo.SubcellCount(dim); id++ {
			for j := 0; j < fx.basis.DofCount(dim, id); j++ {
				dofs = append(dofs, fx.basis.DofOrdinal(dim, id, j))
			}
		}
	}
	return dofs
}

func TestProjectReproducesBasisExpansion(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, g := range []element.ElementGeometry{element.Line, element.Tri, element.Tet} {
		for order := 1; order <= 4; order++ {
			t.Run(fmt.Sprintf("%v/P%d", g, order), func(t *testing.T) {
				fx := newFixture(t, g, order, 2*order)
				numCells := 9
				orts := randomOrientations(t, fx.topo, numCells, rng)
				want := randomCoefficients(numCells, fx.basis.Cardinality(), rng)
				target := expansionSamples(t, fx, want, orts)

				p := newProjector(t, fx, Config{Workers: 3, PartitionSize: 2})
				res, err := p.Project(target, orts)
				require.NoError(t, err)

				assert.True(t, mat.EqualApprox(want, res.Coeffs, 1e-9),
					"max error %g", maxAbsDiff(want, res.Coeffs))
				if diff := cmp.Diff(stageOrder(fx), res.Computed); diff != "" {
					t.Errorf("computed set mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

// maxAbsDiff is max |a_ij - b_ij|.
func maxAbsDiff(a, b *mat.Dense) float64 {
	var d mat.Dense
	d.Sub(a, b)
	data := d.RawMatrix().Data
	for i, v := range data {
		data[i] = math.Abs(v)
	}
	return floats.Max(data)
}

func TestMaxAbsDiff(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	b := mat.NewDense(2, 3, []float64{1, 2.5, 3, 4, 5, 2})
	assert.Equal(t, 4.0, maxAbsDiff(a, b))
	assert.Equal(t, 4.0, maxAbsDiff(b, a))
	assert.Equal(t, 0.0, maxAbsDiff(a, a))
	// inputs are left untouched
	assert.Equal(t, []float64{1, 2.5, 3, 4, 5, 2}, b.RawMatrix().Data)
}

func TestVertexCoefficientsInterpolate(t *testing.T) {
	fx := newFixture(t, element.Tet, 3, 6)
	rng := rand.New(rand.NewSource(2))
	orts := randomOrientations(t, fx.topo, 4, rng)
	fn := smoothTarget{a: []float64{0.3, -0.7, 0.4}}
	target, err := SampleTarget(fx.cat, len(orts), fn)
	require.NoError(t, err)

	res, err := newProjector(t, fx, Config{}).Project(target, orts)
	require.NoError(t, err)
	for c := range orts {
		for v := 0; v < 4; v++ {
			dof := fx.basis.DofOrdinal(0, v, 0)
			assert.InDelta(t, fn.Value(c, fx.topo.Vertices[v]), res.Coeffs.At(c, dof), 1e-13)
		}
	}
}

// With identical basis and target point sets the edge residual is
// orthogonal, in the tangential-derivative inner product, to every edge
// basis function.
func TestEdgeResidualOrthogonality(t *testing.T) {
	order := 3
	fx := newFixture(t, element.Tri, order, 2*(order-1))
	rng := rand.New(rand.NewSource(5))
	orts := randomOrientations(t, fx.topo, 3, rng)
	fn := smoothTarget{a: []float64{0.9, 0.5}}
	target, err := SampleTarget(fx.cat, len(orts), fn)
	require.NoError(t, err)

	res, err := newProjector(t, fx, Config{}).Project(target, orts)
	require.NoError(t, err)

	grads, err := fx.basis.Evaluate(fx.cat.Points(BasisPoints), element.OpGrad, orts)
	require.NoError(t, err)
	g := make([]float64, 2)
	for c := range orts {
		row := res.Coeffs.RawRowView(c)
		for ie := range fx.topo.Edges {
			tan := fx.cat.EdgeTangent(ie)
			pr := fx.cat.PointRange(1, ie, BasisPoints)
			w := fx.cat.Weights(1, ie, BasisPoints)
			for j := 0; j < fx.basis.DofCount(1, ie); j++ {
				dof := fx.basis.DofOrdinal(1, ie, j)
				var inner float64
				for q := 0; q < pr.Len(); q++ {
					pt := pr.Start + q
					fn.Gradient(c, fx.cat.Points(BasisPoints).RawRowView(pt), g)
					resid := g[0]*tan[0] + g[1]*tan[1]
					for d := 0; d < 2; d++ {
						resid -= dotColumn(grads[c][d], row, pt) * tan[d]
					}
					phi := grads[c][0].At(dof, pt)*tan[0] + grads[c][1].At(dof, pt)*tan[1]
					inner += w[q] * resid * phi
				}
				assert.InDelta(t, 0, inner, 1e-12, "cell %d edge %d dof %d", c, ie, dof)
			}
		}
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	fx := newFixture(t, element.Tet, 3, 6)
	rng := rand.New(rand.NewSource(8))
	orts := randomOrientations(t, fx.topo, 16, rng)
	target, err := SampleTarget(fx.cat, len(orts), smoothTarget{a: []float64{0.2, 0.1, -0.5}})
	require.NoError(t, err)

	p := newProjector(t, fx, Config{Workers: 4, PartitionSize: 3})
	first, err := p.Project(target, orts)
	require.NoError(t, err)
	second, err := p.Project(target, orts)
	require.NoError(t, err)
	assert.True(t, mat.Equal(first.Coeffs, second.Coeffs))
	assert.Equal(t, first.Computed, second.Computed)
}

func TestEntityOrderDoesNotChangeResult(t *testing.T) {
	fx := newFixture(t, element.Tet, 4, 8)
	rng := rand.New(rand.NewSource(21))
	orts := randomOrientations(t, fx.topo, 5, rng)
	target, err := SampleTarget(fx.cat, len(orts), smoothTarget{a: []float64{-0.4, 0.6, 0.3}})
	require.NoError(t, err)

	forward, err := newProjector(t, fx, Config{}).Project(target, orts)
	require.NoError(t, err)

	reverse := func(_, count int) []int {
		order := make([]int, count)
		for i := range order {
			order[i] = count - 1 - i
		}
		return order
	}
	backward, err := newProjector(t, fx, Config{EntityOrder: reverse}).Project(target, orts)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(forward.Coeffs, backward.Coeffs, 1e-12),
		"max difference %g", maxAbsDiff(forward.Coeffs, backward.Coeffs))
	assert.ElementsMatch(t, forward.Computed, backward.Computed)
	assert.NotEqual(t, forward.Computed, backward.Computed)

	bad := func(_, count int) []int { return make([]int, count) }
	_, err = newProjector(t, fx, Config{EntityOrder: bad}).Project(target, orts)
	assert.ErrorIs(t, err, ErrEntityOrder)
}

func TestTriangleP1VertexScenario(t *testing.T) {
	fx := newFixture(t, element.Tri, 1, 2)
	orts := []element.Orientation{{}}
	// λ1 = (1+r)/2 is 1 at vertex 1 and 0 at the others
	target, err := SampleTarget(fx.cat, 1, linearTarget{b: 0.5, a: []float64{0.5, 0}})
	require.NoError(t, err)

	res, err := newProjector(t, fx, Config{}).Project(target, orts)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, res.Coeffs.RawRowView(0), 1e-15)
	assert.Equal(t, []int{0, 1, 2}, res.Computed)
}

func TestPureVertexBasisComputesOnlyVertices(t *testing.T) {
	fx := newFixture(t, element.Tet, 1, 2)
	rng := rand.New(rand.NewSource(3))
	orts := randomOrientations(t, fx.topo, 6, rng)
	target, err := SampleTarget(fx.cat, len(orts), linearTarget{b: 1, a: []float64{1, 2, 3}})
	require.NoError(t, err)

	res, err := newProjector(t, fx, Config{}).Project(target, orts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Computed)
	for c := range orts {
		assert.InDeltaSlice(t, []float64{-5, -3, -1, 1}, res.Coeffs.RawRowView(c), 1e-14)
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	fx := newFixture(t, element.Tet, 3, 6)
	rng := rand.New(rand.NewSource(13))
	orts := randomOrientations(t, fx.topo, 40, rng)
	target, err := SampleTarget(fx.cat, len(orts), smoothTarget{a: []float64{0.1, 0.8, -0.3}})
	require.NoError(t, err)

	serial, err := newProjector(t, fx, Config{Workers: 1, PartitionSize: len(orts)}).Project(target, orts)
	require.NoError(t, err)
	parallel, err := newProjector(t, fx, Config{
		Workers:       8,
		PartitionSize: 3,
		Strategy:      partitions.RoundRobin,
	}).Project(target, orts)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(serial.Coeffs, parallel.Coeffs, 1e-13),
		"max difference %g", maxAbsDiff(serial.Coeffs, parallel.Coeffs))
	assert.Equal(t, serial.Computed, parallel.Computed)
}

// Two tets sharing a face, each with its own vertex numbering, must agree on
// every shared dof when the physical target lies in the basis space.
func TestSharedDofsAgreeAcrossCells(t *testing.T) {
	coords := [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.7, 0.8, 0.9}}
	first := []int{0, 1, 2, 3}
	// the same neighbor under different local vertex numberings
	neighbors := [][]int{{3, 2, 4, 1}, {4, 1, 3, 2}, {2, 4, 1, 3}}

	for order := 3; order <= 5; order++ {
		for _, second := range neighbors {
			t.Run(fmt.Sprintf("P%d/%v", order, second), func(t *testing.T) {
				fx := newFixture(t, element.Tet, order, 2*order)
				cells := [][]int{first, second}

				var (
					maps []*element.AffineTransform
					orts []element.Orientation
				)
				for _, cv := range cells {
					cc := make([][]float64, 4)
					for i, v := range cv {
						cc[i] = coords[v]
					}
					at, err := element.NewAffineTransform(fx.topo, cc)
					require.NoError(t, err)
					o, err := element.NewOrientation(fx.topo, cv)
					require.NoError(t, err)
					maps = append(maps, at)
					orts = append(orts, o)
				}
				target, err := SampleTarget(fx.cat, 2, physicalCubic{maps: maps})
				require.NoError(t, err)
				res, err := newProjector(t, fx, Config{Workers: 2, PartitionSize: 1}).Project(target, orts)
				require.NoError(t, err)

				shared, faceDofs := 0, 0
				for dim := 0; dim <= 2; dim++ {
					for ia := 0; ia < fx.topo.SubcellCount(dim); ia++ {
						for ib := 0; ib < fx.topo.SubcellCount(dim); ib++ {
							if !sameGlobal(fx.topo, dim, cells[0], ia, cells[1], ib) {
								continue
							}
							shared++
							for j := 0; j < fx.basis.DofCount(dim, ia); j++ {
								a := res.Coeffs.At(0, fx.basis.DofOrdinal(dim, ia, j))
								b := res.Coeffs.At(1, fx.basis.DofOrdinal(dim, ib, j))
								assert.InDelta(t, a, b, 1e-10, "dim %d subcells %d/%d dof %d", dim, ia, ib, j)
								if dim == 2 {
									faceDofs++
								}
							}
						}
					}
				}
				// 3 vertices, 3 edges, 1 face
				assert.Equal(t, 7, shared)
				assert.Equal(t, (order-1)*(order-2)/2, faceDofs)
			})
		}
	}
}

func sameGlobal(topo *element.Topology, dim int, ca []int, ia int, cb []int, ib int) bool {
	va, vb := topo.SubcellVertices(dim, ia), topo.SubcellVertices(dim, ib)
	if len(va) != len(vb) {
		return false
	}
	for _, x := range va {
		found := false
		for _, y := range vb {
			if ca[x] == cb[y] {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// physicalCubic is x³ - 2xyz + y²z + z, pulled back to each cell.
type physicalCubic struct {
	maps []*element.AffineTransform
}

func (p physicalCubic) Value(c int, xi []float64) float64 {
	x := make([]float64, 3)
	p.maps[c].Map(xi, x)
	return x[0]*x[0]*x[0] - 2*x[0]*x[1]*x[2] + x[1]*x[1]*x[2] + x[2]
}

func (p physicalCubic) Gradient(c int, xi, g []float64) {
	x := make([]float64, 3)
	p.maps[c].Map(xi, x)
	gx := []float64{
		3*x[0]*x[0] - 2*x[1]*x[2],
		-2*x[0]*x[2] + 2*x[1]*x[2],
		-2*x[0]*x[1] + x[1]*x[1] + 1,
	}
	p.maps[c].PullbackGradient(gx, g)
}

func TestProjectRejectsBadInput(t *testing.T) {
	fx := newFixture(t, element.Tri, 2, 4)
	p := newProjector(t, fx, Config{})
	orts := make([]element.Orientation, 3)
	target, err := SampleTarget(fx.cat, 3, linearTarget{a: []float64{1, 1}})
	require.NoError(t, err)

	_, err = p.Project(target, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = p.Project(target, orts[:2])
	assert.ErrorIs(t, err, ErrShapeMismatch)

	short := &TargetSamples{Values: target.Values, Grads: target.Grads[:1]}
	_, err = p.Project(short, orts)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = p.Project(nil, orts)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = SampleTarget(fx.cat, 0, linearTarget{a: []float64{1, 1}})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = NewProjector(fx.basis, fx.cat, Config{Strategy: partitions.PartitionStrategy(9)})
	assert.Error(t, err)
}

// zeroVertexBasis reports a zero value for vertex 1's basis function.
type zeroVertexBasis struct {
	BasisOracle
}

func (z zeroVertexBasis) Evaluate(points *mat.Dense, op element.Operator, orts []element.Orientation) ([][]*mat.Dense, error) {
	out, err := z.BasisOracle.Evaluate(points, op, orts)
	if err != nil || op != element.OpValue {
		return out, err
	}
	for c := range out {
		m := mat.DenseCopyOf(out[c][0])
		_, n := m.Dims()
		m.SetRow(1, make([]float64, n))
		out[c] = []*mat.Dense{m}
	}
	return out, nil
}

// flatBasis has vanishing gradients, so every local system is singular.
type flatBasis struct {
	BasisOracle
}

func (f flatBasis) Evaluate(points *mat.Dense, op element.Operator, orts []element.Orientation) ([][]*mat.Dense, error) {
	out, err := f.BasisOracle.Evaluate(points, op, orts)
	if err != nil || op != element.OpGrad {
		return out, err
	}
	for c := range out {
		comps := make([]*mat.Dense, len(out[c]))
		for k, m := range out[c] {
			r, n := m.Dims()
			comps[k] = mat.NewDense(r, n, nil)
		}
		out[c] = comps
	}
	return out, nil
}

// duplicateBasis tags edge 0's first dof with vertex 0's ordinal.
type duplicateBasis struct {
	BasisOracle
}

func (d duplicateBasis) DofOrdinal(dim, entity, j int) int {
	if dim == 1 && entity == 0 && j == 0 {
		return d.BasisOracle.DofOrdinal(0, 0, 0)
	}
	return d.BasisOracle.DofOrdinal(dim, entity, j)
}

func TestProjectNumericalFaults(t *testing.T) {
	fx := newFixture(t, element.Tri, 2, 4)
	orts := make([]element.Orientation, 4)
	target, err := SampleTarget(fx.cat, 4, linearTarget{a: []float64{1, 1}})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	p, err := NewProjector(zeroVertexBasis{fx.basis}, fx.cat, Config{Metrics: rec})
	require.NoError(t, err)
	_, err = p.Project(target, orts)
	assert.ErrorIs(t, err, ErrZeroVertexValue)

	p, err = NewProjector(flatBasis{fx.basis}, fx.cat, Config{Metrics: rec})
	require.NoError(t, err)
	_, err = p.Project(target, orts)
	assert.ErrorIs(t, err, ErrSingularSystem)

	_, err = NewProjector(duplicateBasis{fx.basis}, fx.cat, Config{})
	assert.ErrorIs(t, err, ErrDofReassigned)

	assert.Equal(t, 1.0, counterValue(t, reg, "hgrad_projection_faults_total", stageVertex))
	assert.Equal(t, 1.0, counterValue(t, reg, "hgrad_projection_faults_total", stageEdge))
}

func TestProjectLogsAndCounts(t *testing.T) {
	fx := newFixture(t, element.Tet, 2, 4)
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	orts := make([]element.Orientation, 5)
	target, err := SampleTarget(fx.cat, 5, linearTarget{b: 2, a: []float64{1, 0, -1}})
	require.NoError(t, err)
	p := newProjector(t, fx, Config{Logger: zap.New(core), Metrics: rec})
	_, err = p.Project(target, orts)
	require.NoError(t, err)

	// one entry per edge, no face or interior dofs at P2
	assert.Equal(t, 6, logs.FilterMessage("projecting subcell").Len())
	assert.Equal(t, 1, logs.FilterMessage("projecting batch").Len())
	assert.Equal(t, 5.0, counterValue(t, reg, "hgrad_projection_cells_total", ""))
	assert.Equal(t, 20.0, counterValue(t, reg, "hgrad_projection_local_systems_total", stageVertex))
	assert.Equal(t, 30.0, counterValue(t, reg, "hgrad_projection_local_systems_total", stageEdge))
	assert.Equal(t, 4, testutil.CollectAndCount(reg, "hgrad_projection_stage_duration_seconds"))
}

// counterValue reads a counter from reg, selecting the series whose stage
// label equals stage. An empty stage matches an unlabelled counter.
func counterValue(t *testing.T, reg *prometheus.Registry, name, stage string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			label := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "stage" {
					label = lp.GetValue()
				}
			}
			if label == stage {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
