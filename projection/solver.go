package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultMinRCond is the smallest reciprocal condition number DenseSolver
// accepts.
const DefaultMinRCond = 1e-14

// DenseSolver factors each mass matrix with Cholesky, falling back to LU
// when the matrix is not numerically positive definite.
type DenseSolver struct {
	MinRCond float64
}

func NewDenseSolver() *DenseSolver {
	return &DenseSolver{MinRCond: DefaultMinRCond}
}

func (s *DenseSolver) Solve(coeffs *mat.Dense, batch *SystemBatch, dofs []int) error {
	if len(dofs) == 0 || len(batch.Cells) == 0 {
		return nil
	}
	minRCond := s.MinRCond
	if minRCond <= 0 {
		minRCond = DefaultMinRCond
	}
	var (
		f factorization
		x = mat.NewVecDense(len(dofs), nil)
	)
	for i, c := range batch.Cells {
		if i == 0 || !batch.MatrixIndependentOfCell {
			if err := f.factorize(batch.Mass[i], minRCond); err != nil {
				return fmt.Errorf("cell %d: %w", c, err)
			}
		}
		if err := f.solve(x, batch.RHS[i]); err != nil {
			return fmt.Errorf("cell %d: %w", c, err)
		}
		for j, d := range dofs {
			coeffs.Set(c, d, x.AtVec(j))
		}
	}
	return nil
}

type factorization struct {
	chol  mat.Cholesky
	lu    mat.LU
	useLU bool
}

func (f *factorization) factorize(a *mat.SymDense, minRCond float64) error {
	f.useLU = false
	if f.chol.Factorize(a) {
		if rc := 1 / f.chol.Cond(); rc < minRCond {
			return fmt.Errorf("%w: reciprocal condition %.3g", ErrSingularSystem, rc)
		}
		return nil
	}
	f.useLU = true
	f.lu.Factorize(a)
	if rc := 1 / f.lu.Cond(); rc < minRCond || math.IsNaN(rc) {
		return fmt.Errorf("%w: reciprocal condition %.3g", ErrSingularSystem, rc)
	}
	return nil
}

func (f *factorization) solve(x, b *mat.VecDense) error {
	var err error
	if f.useLU {
		err = f.lu.SolveVecTo(x, false, b)
	} else {
		err = f.chol.SolveVecTo(x, b)
	}
	var cond mat.Condition
	if errors.As(err, &cond) {
		return fmt.Errorf("%w: condition number %.3g", ErrSingularSystem, float64(cond))
	}
	return err
}
