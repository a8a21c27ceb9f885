package gonudg

import "gonum.org/v1/gonum/mat"

// EquispacedLattice enumerates every tuple of dim+1 non-negative integers
// summing to N. Entry k of a tuple is N times the barycentric coordinate of
// reference vertex k.
func EquispacedLattice(dim, N int) [][]int {
	var (
		out []int
		res [][]int
	)
	var recurse func(k, remaining int)
	recurse = func(k, remaining int) {
		if k == dim {
			tuple := make([]int, dim+1)
			copy(tuple[1:], out)
			tuple[0] = remaining
			res = append(res, tuple)
			return
		}
		for l := 0; l <= remaining; l++ {
			out = append(out, l)
			recurse(k+1, remaining-l)
			out = out[:len(out)-1]
		}
	}
	recurse(0, N)
	return res
}

// LatticePoints converts lattice tuples to reference coordinates,
// ξ_k = -1 + 2 l_k / N for k = 1..dim.
func LatticePoints(lattice [][]int, N int) *mat.Dense {
	dim := len(lattice[0]) - 1
	pts := mat.NewDense(len(lattice), dim, nil)
	for i, l := range lattice {
		for k := 1; k <= dim; k++ {
			pts.Set(i, k-1, -1+2*float64(l[k])/float64(N))
		}
	}
	return pts
}
