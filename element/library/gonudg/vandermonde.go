package gonudg

import "gonum.org/v1/gonum/mat"

// MonomialExponents lists the exponents of all monomials r^i s^j t^k with
// i+j+k <= N in dimension dim, ordered by total degree. Unused axes carry a
// zero exponent.
func MonomialExponents(dim, N int) [][3]int {
	var exps [][3]int
	for deg := 0; deg <= N; deg++ {
		switch dim {
		case 1:
			exps = append(exps, [3]int{deg, 0, 0})
		case 2:
			for i := deg; i >= 0; i-- {
				exps = append(exps, [3]int{i, deg - i, 0})
			}
		case 3:
			for i := deg; i >= 0; i-- {
				for j := deg - i; j >= 0; j-- {
					exps = append(exps, [3]int{i, j, deg - i - j})
				}
			}
		}
	}
	return exps
}

func ipow(x float64, n int) float64 {
	v := 1.
	for ; n > 0; n-- {
		v *= x
	}
	return v
}

func monomial(x []float64, e [3]int) float64 {
	v := 1.
	for d := range x {
		v *= ipow(x[d], e[d])
	}
	return v
}

func monomialDerivative(x []float64, e [3]int, deriv int) float64 {
	if e[deriv] == 0 {
		return 0
	}
	v := float64(e[deriv])
	for d := range x {
		if d == deriv {
			v *= ipow(x[d], e[d]-1)
		} else {
			v *= ipow(x[d], e[d])
		}
	}
	return v
}

// MonomialVandermonde builds V_{ij} = m_j(x_i) for the points in the rows
// of points.
func MonomialVandermonde(N int, points *mat.Dense) *mat.Dense {
	np, dim := points.Dims()
	exps := MonomialExponents(dim, N)
	V := mat.NewDense(np, len(exps), nil)
	for i := 0; i < np; i++ {
		x := points.RawRowView(i)
		for j, e := range exps {
			V.Set(i, j, monomial(x, e))
		}
	}
	return V
}

// GradMonomialVandermonde returns one matrix per reference direction with
// (V_d)_{ij} = ∂m_j/∂ξ_d (x_i).
func GradMonomialVandermonde(N int, points *mat.Dense) []*mat.Dense {
	np, dim := points.Dims()
	exps := MonomialExponents(dim, N)
	Vd := make([]*mat.Dense, dim)
	for d := range Vd {
		Vd[d] = mat.NewDense(np, len(exps), nil)
	}
	for i := 0; i < np; i++ {
		x := points.RawRowView(i)
		for j, e := range exps {
			for d := 0; d < dim; d++ {
				Vd[d].Set(i, j, monomialDerivative(x, e, d))
			}
		}
	}
	return Vd
}
