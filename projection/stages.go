package projection

import (
	"fmt"
	"math"
)

const (
	stageVertex   = "vertex"
	stageEdge     = "edge"
	stageFace     = "face"
	stageInterior = "interior"
)

// run executes the stages in dimension order. Every stage finishes on all
// cells before the next one starts.
func (r *projectionRun) run() error {
	if err := r.timed(stageVertex, r.vertexStage); err != nil {
		return err
	}
	numVertexDofs := r.computed.Len()

	// Edges and faces are separate stages only below the cell dimension.
	numEdges, numFaces := 0, 0
	if r.dim > 1 {
		numEdges = r.p.cat.NumSubcells(1)
	}
	if r.dim > 2 {
		numFaces = r.p.cat.NumSubcells(2)
	}

	err := r.timed(stageEdge, func() error {
		order, err := r.p.entityOrder(1, numEdges)
		if err != nil {
			return err
		}
		deflate := r.computed.Prefix(numVertexDofs)
		for _, ie := range order {
			if err := r.edgeStage(ie, deflate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	numVertexEdgeDofs := r.computed.Len()

	err = r.timed(stageFace, func() error {
		order, err := r.p.entityOrder(2, numFaces)
		if err != nil {
			return err
		}
		deflate := r.computed.Prefix(numVertexEdgeDofs)
		for _, iface := range order {
			if err := r.faceStage(iface, deflate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return r.timed(stageInterior, func() error {
		return r.interiorStage(r.computed.Prefix(r.computed.Len()))
	})
}

func (r *projectionRun) vertexStage() error {
	var (
		basis = r.p.basis
		cat   = r.p.cat
		nv    = cat.NumSubcells(0)
		dofs  []int
	)
	for iv := 0; iv < nv; iv++ {
		if basis.DofCount(0, iv) > 0 {
			dofs = append(dofs, basis.DofOrdinal(0, iv, 0))
		}
	}
	if err := r.computed.Check(dofs); err != nil {
		return fmt.Errorf("%s: %w", stageVertex, err)
	}

	err := r.forEachPartition(func(cells []int) error {
		for _, c := range cells {
			vals := r.values[c][0]
			for iv := 0; iv < nv; iv++ {
				if basis.DofCount(0, iv) == 0 {
					continue
				}
				idof := basis.DofOrdinal(0, iv, 0)
				pt := cat.ValuePointRange(0, iv).Start
				bv := vals.At(idof, pt)
				coeff := r.target.Values.At(c, pt) / bv
				if bv == 0 || math.IsNaN(coeff) || math.IsInf(coeff, 0) {
					return fmt.Errorf("%s %d, cell %d: %w", stageVertex, iv, c, ErrZeroVertexValue)
				}
				r.coeffs.Set(c, idof, coeff)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.p.cfg.Metrics.AddSystems(stageVertex, len(r.orts)*len(dofs))
	return r.computed.Append(dofs...)
}

// entityDofs lists the dof ordinals of subcell (dim, id).
func (r *projectionRun) entityDofs(dim, id int) []int {
	n := r.p.basis.DofCount(dim, id)
	dofs := make([]int, n)
	for j := range dofs {
		dofs[j] = r.p.basis.DofOrdinal(dim, id, j)
	}
	return dofs
}

func (r *projectionRun) newProblem(stage string, dim, id int, dofs, deflate []int, ncomp int) *entityProblem {
	cat := r.p.cat
	return &entityProblem{
		stage:       stage,
		dim:         dim,
		entity:      id,
		dofs:        dofs,
		deflate:     deflate,
		ncomp:       ncomp,
		basisRange:  cat.PointRange(dim, id, BasisPoints),
		targetRange: cat.PointRange(dim, id, TargetPoints),
		basisW:      cat.Weights(dim, id, BasisPoints),
		targetW:     cat.Weights(dim, id, TargetPoints),
	}
}

// edgeStage fits the tangential derivative along edge ie. Edge orientation
// only reorders dofs, which the basis already did, so the reference tangent
// serves every cell.
func (r *projectionRun) edgeStage(ie int, deflate []int) error {
	dofs := r.entityDofs(1, ie)
	if len(dofs) == 0 {
		return nil
	}
	ep := r.newProblem(stageEdge, 1, ie, dofs, deflate, 1)
	tan := r.p.cat.EdgeTangent(ie)
	m := func(g, out []float64) {
		var v float64
		for d, t := range tan {
			v += g[d] * t
		}
		out[0] = v
	}
	ep.mapFor = func(int) gradMap { return m }
	return r.solveEntity(ep)
}

// faceStage fits the surface gradient n × ∇u on face iface, with the normal
// of each cell taken from its face orientation.
func (r *projectionRun) faceStage(iface int, deflate []int) error {
	dofs := r.entityDofs(2, iface)
	if len(dofs) == 0 {
		return nil
	}
	ep := r.newProblem(stageFace, 2, iface, dofs, deflate, 3)
	ep.mapFor = func(c int) gradMap {
		n := r.p.cat.FaceNormal(iface, r.orts[c].FaceOrientation(iface))
		return func(g, out []float64) {
			for d := 0; d < 3; d++ {
				dp1, dp2 := (d+1)%3, (d+2)%3
				out[d] = g[dp1]*n[dp2] - g[dp2]*n[dp1]
			}
		}
	}
	return r.solveEntity(ep)
}

// interiorStage fits the full gradient on the cell interior. Interior dofs
// are never reindexed, so the mass matrix is the same on every cell.
func (r *projectionRun) interiorStage(deflate []int) error {
	dofs := r.entityDofs(r.dim, 0)
	if len(dofs) == 0 {
		return nil
	}
	ep := r.newProblem(stageInterior, r.dim, 0, dofs, deflate, r.dim)
	ep.matrixIndependentOfCell = true
	m := func(g, out []float64) { copy(out, g) }
	ep.mapFor = func(int) gradMap { return m }
	return r.solveEntity(ep)
}
