package gonudg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Cubature is a quadrature rule on a reference simplex in [-1,1]^d.
// Points has one row per point; Weights integrate against dr ds dt.
type Cubature struct {
	Points  *mat.Dense
	Weights []float64
}

func (c Cubature) Len() int { return len(c.Weights) }

// SimplexCubature returns a collapsed-coordinate Gauss rule on the reference
// simplex of dimension dim that is exact for polynomials of total degree
// `degree`. Each collapsed direction uses degree/2+1 Gauss-Jacobi points.
func SimplexCubature(dim, degree int) (Cubature, error) {
	if degree < 0 {
		return Cubature{}, fmt.Errorf("negative cubature degree %d", degree)
	}
	switch dim {
	case 1:
		return LineCubature(degree), nil
	case 2:
		return TriCubature(degree), nil
	case 3:
		return TetCubature(degree), nil
	}
	return Cubature{}, fmt.Errorf("no simplex cubature in dimension %d", dim)
}

func LineCubature(degree int) Cubature {
	x, w := JacobiGQ(0, 0, degree/2)
	return Cubature{
		Points:  mat.NewDense(len(x), 1, x),
		Weights: w,
	}
}

// TriCubature collapses the square [-1,1]^2 onto the triangle
//
//	r = (1+a)(1-b)/2 - 1,  s = b
//
// absorbing the (1-b)/2 Jacobian into a Gauss-Jacobi(1,0) rule in b.
func TriCubature(degree int) Cubature {
	N := degree / 2
	a, wa := JacobiGQ(0, 0, N)
	b, wb := JacobiGQ(1, 0, N)
	n := len(a) * len(b)
	pts := mat.NewDense(n, 2, nil)
	w := make([]float64, 0, n)
	for j := range b {
		for i := range a {
			k := len(w)
			pts.Set(k, 0, 0.5*(1+a[i])*(1-b[j])-1)
			pts.Set(k, 1, b[j])
			w = append(w, 0.5*wa[i]*wb[j])
		}
	}
	return Cubature{Points: pts, Weights: w}
}

// TetCubature collapses the cube onto the tetrahedron
//
//	r = (1+a)(1-b)(1-c)/4 - 1,  s = (1+b)(1-c)/2 - 1,  t = c
//
// with Gauss-Jacobi(1,0) in b and Gauss-Jacobi(2,0) in c.
func TetCubature(degree int) Cubature {
	N := degree / 2
	a, wa := JacobiGQ(0, 0, N)
	b, wb := JacobiGQ(1, 0, N)
	c, wc := JacobiGQ(2, 0, N)
	n := len(a) * len(b) * len(c)
	pts := mat.NewDense(n, 3, nil)
	w := make([]float64, 0, n)
	for k := range c {
		for j := range b {
			for i := range a {
				row := len(w)
				pts.Set(row, 0, 0.25*(1+a[i])*(1-b[j])*(1-c[k])-1)
				pts.Set(row, 1, 0.5*(1+b[j])*(1-c[k])-1)
				pts.Set(row, 2, c[k])
				w = append(w, 0.125*wa[i]*wb[j]*wc[k])
			}
		}
	}
	return Cubature{Points: pts, Weights: w}
}
