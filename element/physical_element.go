package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// AffineTransform maps reference coordinates of a simplex to physical space
//
//	x = X0 + J (ξ + 1)
//
// where column k of J is (X_{k+1} - X0)/2. The metric is constant over the
// cell, so it is stored once per cell.
type AffineTransform struct {
	Origin []float64  // physical coordinates of vertex 0
	J      *mat.Dense // ∂x/∂ξ [dim × dim]
	Det    float64    // det(J), negative for left-handed vertex orderings
}

// NewAffineTransform builds the map for one cell from its physical vertex
// coordinates, given in local vertex order.
func NewAffineTransform(topo *Topology, coords [][]float64) (*AffineTransform, error) {
	dim := topo.Dim
	if len(coords) != topo.NumVertices() {
		return nil, fmt.Errorf("%s needs %d vertices, got %d", topo.Name, topo.NumVertices(), len(coords))
	}
	for i, c := range coords {
		if len(c) < dim {
			return nil, fmt.Errorf("vertex %d has %d coordinates, need %d", i, len(c), dim)
		}
	}
	at := &AffineTransform{
		Origin: append([]float64(nil), coords[0][:dim]...),
		J:      mat.NewDense(dim, dim, nil),
	}
	for k := 0; k < dim; k++ {
		for d := 0; d < dim; d++ {
			at.J.Set(d, k, 0.5*(coords[k+1][d]-coords[0][d]))
		}
	}
	at.Det = mat.Det(at.J)
	var scale float64
	for _, c := range coords {
		for d := 0; d < dim; d++ {
			scale = math.Max(scale, math.Abs(c[d]-coords[0][d]))
		}
	}
	if scale == 0 || math.Abs(at.Det) <= 1e-14*math.Pow(scale, float64(dim)) {
		return nil, fmt.Errorf("degenerate %s: Jacobian determinant %g", topo.Name, at.Det)
	}
	return at, nil
}

// Map writes the physical image of reference point xi into x.
func (at *AffineTransform) Map(xi, x []float64) {
	dim := len(at.Origin)
	for d := 0; d < dim; d++ {
		v := at.Origin[d]
		for k := 0; k < dim; k++ {
			v += at.J.At(d, k) * (xi[k] + 1)
		}
		x[d] = v
	}
}

// PullbackGradient converts a physical gradient to reference coordinates,
// ∇ξ = Jᵀ ∇x.
func (at *AffineTransform) PullbackGradient(gx, gxi []float64) {
	dim := len(at.Origin)
	for k := 0; k < dim; k++ {
		var v float64
		for d := 0; d < dim; d++ {
			v += at.J.At(d, k) * gx[d]
		}
		gxi[k] = v
	}
}
