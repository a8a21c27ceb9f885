package projection

import (
	"gonum.org/v1/gonum/mat"
)

// IntegrateMatrix computes out = Σ_k left[k] · right[k]ᵀ, adding to the
// current contents of out when accumulate is set. Each left/right pair is a
// [rows × points] matrix with the quadrature weights folded into one side.
// out must already have its final shape.
func IntegrateMatrix(out *mat.Dense, left, right []*mat.Dense, accumulate bool) {
	if !accumulate {
		out.Zero()
	}
	var tmp mat.Dense
	for k := range left {
		tmp.Mul(left[k], right[k].T())
		out.Add(out, &tmp)
	}
}

// IntegrateVector computes out = Σ_k right[k] · left[k], adding to out when
// accumulate is set.
func IntegrateVector(out *mat.VecDense, left []*mat.VecDense, right []*mat.Dense, accumulate bool) {
	if !accumulate {
		out.Zero()
	}
	var tmp mat.VecDense
	for k := range left {
		tmp.MulVec(right[k], left[k])
		out.AddVec(out, &tmp)
	}
}

// gradMap projects a reference gradient g onto the components a stage works
// with: the tangential derivative on edges, the surface gradient on faces,
// the full gradient in the interior.
type gradMap func(g, out []float64)

// entityProblem describes the local problem of one subcell, shared by every
// cell of the batch.
type entityProblem struct {
	stage       string
	dim, entity int
	dofs        []int
	deflate     []int // dofs of completed stages subtracted from the target
	ncomp       int

	basisRange, targetRange Range
	basisW, targetW         []float64

	matrixIndependentOfCell bool
	mapFor                  func(cell int) gradMap
}

// entityScratch is reused across the cells of one partition.
type entityScratch struct {
	proj   []*mat.Dense // projected basis gradients at basis points
	wProj  []*mat.Dense // same, weighted
	wProjT []*mat.Dense // projected basis gradients at target points, weighted
	target []*mat.VecDense
	resid  []*mat.VecDense
	full   *mat.Dense
	g, p   []float64
}

func newEntityScratch(ep *entityProblem, dim int) *entityScratch {
	J := len(ep.dofs)
	nB, nT := ep.basisRange.Len(), ep.targetRange.Len()
	s := &entityScratch{
		full: mat.NewDense(J, J, nil),
		g:    make([]float64, dim),
		p:    make([]float64, ep.ncomp),
	}
	for k := 0; k < ep.ncomp; k++ {
		s.proj = append(s.proj, mat.NewDense(J, nB, nil))
		s.wProj = append(s.wProj, mat.NewDense(J, nB, nil))
		s.wProjT = append(s.wProjT, mat.NewDense(J, nT, nil))
		s.target = append(s.target, mat.NewVecDense(nT, nil))
		s.resid = append(s.resid, mat.NewVecDense(nB, nil))
	}
	return s
}

func gather(g []float64, grads []*mat.Dense, row, col int) {
	for d := range g {
		g[d] = grads[d].At(row, col)
	}
}

// assemble builds the mass matrix and right-hand side of cell c. gB and gT
// are the cell's basis gradients at basis and target points, one matrix per
// reference direction.
func (ep *entityProblem) assemble(c int, gB, gT []*mat.Dense, tgt *TargetSamples, coeffs *mat.Dense,
	s *entityScratch, mass *mat.SymDense, rhs *mat.VecDense) {
	var (
		m      = ep.mapFor(c)
		b0, t0 = ep.basisRange.Start, ep.targetRange.Start
		nB, nT = ep.basisRange.Len(), ep.targetRange.Len()
	)

	for j, dof := range ep.dofs {
		for q := 0; q < nB; q++ {
			gather(s.g, gB, dof, b0+q)
			m(s.g, s.p)
			for k, v := range s.p {
				s.proj[k].Set(j, q, v)
				s.wProj[k].Set(j, q, v*ep.basisW[q])
			}
		}
		for q := 0; q < nT; q++ {
			gather(s.g, gT, dof, t0+q)
			m(s.g, s.p)
			for k, v := range s.p {
				s.wProjT[k].Set(j, q, v*ep.targetW[q])
			}
		}
	}

	for q := 0; q < nT; q++ {
		gather(s.g, tgt.Grads, c, t0+q)
		m(s.g, s.p)
		for k, v := range s.p {
			s.target[k].SetVec(q, v)
		}
	}

	for k := range s.resid {
		s.resid[k].Zero()
	}
	for _, dof := range ep.deflate {
		a := coeffs.At(c, dof)
		if a == 0 {
			continue
		}
		for q := 0; q < nB; q++ {
			gather(s.g, gB, dof, b0+q)
			m(s.g, s.p)
			for k, v := range s.p {
				s.resid[k].SetVec(q, s.resid[k].AtVec(q)-a*v)
			}
		}
	}

	IntegrateMatrix(s.full, s.proj, s.wProj, false)
	J := len(ep.dofs)
	for i := 0; i < J; i++ {
		for j := i; j < J; j++ {
			mass.SetSym(i, j, 0.5*(s.full.At(i, j)+s.full.At(j, i)))
		}
	}
	IntegrateVector(rhs, s.target, s.wProjT, false)
	IntegrateVector(rhs, s.resid, s.wProj, true)
}
