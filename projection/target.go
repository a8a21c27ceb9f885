package projection

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TargetSamples is the target field sampled on a cell batch: values at the
// catalog's value points and reference gradients at its target points.
type TargetSamples struct {
	Values *mat.Dense   // [numCells × numValuePoints]
	Grads  []*mat.Dense // [dim] of [numCells × numTargetPoints]
}

// TargetFunc is a scalar field given in reference coordinates of each cell.
type TargetFunc interface {
	Value(cell int, xi []float64) float64
	Gradient(cell int, xi, grad []float64)
}

// SampleTarget evaluates fn on every cell at the catalog points.
func SampleTarget(cat EvaluationCatalog, numCells int, fn TargetFunc) (*TargetSamples, error) {
	if numCells <= 0 {
		return nil, ErrEmptyBatch
	}
	dim := cat.Dimension()
	vp := cat.ValuePoints()
	tp := cat.Points(TargetPoints)
	nv, _ := vp.Dims()
	nt, _ := tp.Dims()

	ts := &TargetSamples{
		Values: mat.NewDense(numCells, nv, nil),
		Grads:  make([]*mat.Dense, dim),
	}
	for d := range ts.Grads {
		ts.Grads[d] = mat.NewDense(numCells, nt, nil)
	}
	g := make([]float64, dim)
	for c := 0; c < numCells; c++ {
		for i := 0; i < nv; i++ {
			ts.Values.Set(c, i, fn.Value(c, vp.RawRowView(i)))
		}
		for q := 0; q < nt; q++ {
			fn.Gradient(c, tp.RawRowView(q), g)
			for d := 0; d < dim; d++ {
				ts.Grads[d].Set(c, q, g[d])
			}
		}
	}
	return ts, nil
}

// validate compares the sample extents against the catalog.
func (ts *TargetSamples) validate(cat EvaluationCatalog, numCells int) error {
	if ts == nil || ts.Values == nil {
		return fmt.Errorf("%w: no target values", ErrShapeMismatch)
	}
	nv, _ := cat.ValuePoints().Dims()
	nt, _ := cat.Points(TargetPoints).Dims()
	if r, c := ts.Values.Dims(); r != numCells || c != nv {
		return fmt.Errorf("%w: values are %d×%d, want %d×%d", ErrShapeMismatch, r, c, numCells, nv)
	}
	if len(ts.Grads) != cat.Dimension() {
		return fmt.Errorf("%w: %d gradient components, want %d", ErrShapeMismatch, len(ts.Grads), cat.Dimension())
	}
	for d, g := range ts.Grads {
		if g == nil {
			return fmt.Errorf("%w: gradient component %d missing", ErrShapeMismatch, d)
		}
		if r, c := g.Dims(); r != numCells || c != nt {
			return fmt.Errorf("%w: gradient component %d is %d×%d, want %d×%d",
				ErrShapeMismatch, d, r, c, numCells, nt)
		}
	}
	return nil
}
