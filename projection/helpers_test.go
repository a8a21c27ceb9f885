package projection

import (
	"math"
	"math/rand"
	"testing"

	"github.com/notargets/HGradProjection/basis"
	"github.com/notargets/HGradProjection/element"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type fixture struct {
	topo  *element.Topology
	basis *basis.Lagrange
	cat   *Catalog
}

func newFixture(t *testing.T, g element.ElementGeometry, order, targetDegree int) *fixture {
	t.Helper()
	topo, err := element.NewTopology(g)
	require.NoError(t, err)
	lb, err := basis.NewLagrange(topo, order)
	require.NoError(t, err)
	cat, err := NewCatalog(topo, order, targetDegree)
	require.NoError(t, err)
	return &fixture{topo: topo, basis: lb, cat: cat}
}

// randomOrientations numbers the vertices of every cell with distinct random
// global ids.
func randomOrientations(t *testing.T, topo *element.Topology, numCells int, rng *rand.Rand) []element.Orientation {
	t.Helper()
	orts := make([]element.Orientation, numCells)
	for c := range orts {
		ids := rng.Perm(2 * topo.NumVertices())[:topo.NumVertices()]
		o, err := element.NewOrientation(topo, ids)
		require.NoError(t, err)
		orts[c] = o
	}
	return orts
}

// expansionSamples samples u_c = Σ_k coeffs[c,k] φ̃_k, using the same
// oriented basis the projector sees.
func expansionSamples(t *testing.T, fx *fixture, coeffs *mat.Dense, orts []element.Orientation) *TargetSamples {
	t.Helper()
	numCells := len(orts)
	vals, err := fx.basis.Evaluate(fx.cat.ValuePoints(), element.OpValue, orts)
	require.NoError(t, err)
	grads, err := fx.basis.Evaluate(fx.cat.Points(TargetPoints), element.OpGrad, orts)
	require.NoError(t, err)

	dim := fx.topo.Dim
	nv, _ := fx.cat.ValuePoints().Dims()
	nt, _ := fx.cat.Points(TargetPoints).Dims()
	ts := &TargetSamples{Values: mat.NewDense(numCells, nv, nil)}
	for d := 0; d < dim; d++ {
		ts.Grads = append(ts.Grads, mat.NewDense(numCells, nt, nil))
	}
	for c := 0; c < numCells; c++ {
		row := coeffs.RawRowView(c)
		for i := 0; i < nv; i++ {
			ts.Values.Set(c, i, dotColumn(vals[c][0], row, i))
		}
		for d := 0; d < dim; d++ {
			for q := 0; q < nt; q++ {
				ts.Grads[d].Set(c, q, dotColumn(grads[c][d], row, q))
			}
		}
	}
	return ts
}

func dotColumn(m *mat.Dense, coeffs []float64, col int) float64 {
	var v float64
	for k, a := range coeffs {
		v += a * m.At(k, col)
	}
	return v
}

func randomCoefficients(numCells, card int, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(numCells, card, nil)
	for c := 0; c < numCells; c++ {
		for k := 0; k < card; k++ {
			m.Set(c, k, 2*rng.Float64()-1)
		}
	}
	return m
}

// smoothTarget is exp(a·ξ) + sin(ξ_0), the same on every cell.
type smoothTarget struct {
	a []float64
}

func (s smoothTarget) exp(xi []float64) float64 {
	var v float64
	for d, a := range s.a {
		v += a * xi[d]
	}
	return math.Exp(v)
}

func (s smoothTarget) Value(_ int, xi []float64) float64 {
	return s.exp(xi) + math.Sin(xi[0])
}

func (s smoothTarget) Gradient(_ int, xi, g []float64) {
	e := s.exp(xi)
	for d := range g {
		g[d] = s.a[d] * e
	}
	g[0] += math.Cos(xi[0])
}

// linearTarget is b + a·ξ.
type linearTarget struct {
	b float64
	a []float64
}

func (l linearTarget) Value(_ int, xi []float64) float64 {
	v := l.b
	for d, a := range l.a {
		v += a * xi[d]
	}
	return v
}

func (l linearTarget) Gradient(_ int, _, g []float64) {
	copy(g, l.a)
}
