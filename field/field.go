// Package field provides scalar target fields with exact gradients, in
// physical or reference coordinates.
package field

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/HGradProjection/element"
)

var ErrBadExponent = errors.New("invalid monomial exponent")

// Field is a scalar function of position with its gradient.
type Field interface {
	Value(x []float64) float64
	Gradient(x, grad []float64)
}

// Term is Coeff · x^Exp[0] · y^Exp[1] · z^Exp[2].
type Term struct {
	Coeff float64 `yaml:"coeff"`
	Exp   [3]int  `yaml:"exp,flow"`
}

// Polynomial is a sum of monomials in Dim variables.
type Polynomial struct {
	Dim   int
	Terms []Term
}

func NewPolynomial(dim int, terms ...Term) (*Polynomial, error) {
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("polynomial dimension %d outside 1..3", dim)
	}
	for i, t := range terms {
		for d, e := range t.Exp {
			if e < 0 || (d >= dim && e != 0) {
				return nil, fmt.Errorf("%w: term %d has exponent %v in %d dimensions", ErrBadExponent, i, t.Exp, dim)
			}
		}
	}
	return &Polynomial{Dim: dim, Terms: terms}, nil
}

// Degree is the largest total degree of any term with a nonzero coefficient.
func (p *Polynomial) Degree() int {
	deg := 0
	for _, t := range p.Terms {
		if t.Coeff == 0 {
			continue
		}
		if d := t.Exp[0] + t.Exp[1] + t.Exp[2]; d > deg {
			deg = d
		}
	}
	return deg
}

func ipow(x float64, n int) float64 {
	v := 1.0
	for ; n > 0; n-- {
		v *= x
	}
	return v
}

func (p *Polynomial) Value(x []float64) float64 {
	var v float64
	for _, t := range p.Terms {
		m := t.Coeff
		for d := 0; d < p.Dim; d++ {
			m *= ipow(x[d], t.Exp[d])
		}
		v += m
	}
	return v
}

func (p *Polynomial) Gradient(x, grad []float64) {
	for k := 0; k < p.Dim; k++ {
		grad[k] = 0
	}
	for _, t := range p.Terms {
		for k := 0; k < p.Dim; k++ {
			if t.Exp[k] == 0 {
				continue
			}
			m := t.Coeff * float64(t.Exp[k])
			for d := 0; d < p.Dim; d++ {
				if d == k {
					m *= ipow(x[d], t.Exp[d]-1)
				} else {
					m *= ipow(x[d], t.Exp[d])
				}
			}
			grad[k] += m
		}
	}
}

func (p *Polynomial) String() string {
	if len(p.Terms) == 0 {
		return "0"
	}
	vars := "xyz"
	var sb strings.Builder
	for i, t := range p.Terms {
		if i > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%g", t.Coeff)
		for d := 0; d < p.Dim; d++ {
			switch e := t.Exp[d]; {
			case e == 1:
				sb.WriteByte(vars[d])
			case e > 1:
				fmt.Fprintf(&sb, "%c^%d", vars[d], e)
			}
		}
	}
	return sb.String()
}

// Func adapts a pair of closures to Field.
type Func struct {
	ValueFn    func(x []float64) float64
	GradientFn func(x, grad []float64)
}

func (f Func) Value(x []float64) float64 { return f.ValueFn(x) }

func (f Func) Gradient(x, grad []float64) { f.GradientFn(x, grad) }

// Uniform evaluates F directly in the reference coordinates of every cell.
type Uniform struct {
	F Field
}

func (u Uniform) Value(_ int, xi []float64) float64 { return u.F.Value(xi) }

func (u Uniform) Gradient(_ int, xi, grad []float64) { u.F.Gradient(xi, grad) }

// AffinePullback evaluates a physical field F on the reference cell of each
// cell c through Maps[c]. Gradients are returned in reference coordinates.
type AffinePullback struct {
	Maps []*element.AffineTransform
	F    Field
}

// NewAffinePullback builds one affine map per cell from physical vertex
// coordinates, coords[cell][localVertex].
func NewAffinePullback(topo *element.Topology, coords [][][]float64, f Field) (*AffinePullback, error) {
	ap := &AffinePullback{Maps: make([]*element.AffineTransform, len(coords)), F: f}
	for c, cc := range coords {
		at, err := element.NewAffineTransform(topo, cc)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", c, err)
		}
		ap.Maps[c] = at
	}
	return ap, nil
}

func (ap *AffinePullback) Value(c int, xi []float64) float64 {
	x := make([]float64, len(xi))
	ap.Maps[c].Map(xi, x)
	return ap.F.Value(x)
}

func (ap *AffinePullback) Gradient(c int, xi, grad []float64) {
	x := make([]float64, len(xi))
	gx := make([]float64, len(xi))
	ap.Maps[c].Map(xi, x)
	ap.F.Gradient(x, gx)
	ap.Maps[c].PullbackGradient(gx, grad)
}
