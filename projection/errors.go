package projection

import "errors"

var (
	ErrZeroVertexValue = errors.New("basis value at vertex point is zero")
	ErrSingularSystem  = errors.New("local system is singular or ill-conditioned")
	ErrDofReassigned   = errors.New("dof slot assigned twice")
	ErrShapeMismatch   = errors.New("sample extents do not match the evaluation catalog")
	ErrEmptyBatch      = errors.New("empty cell batch")
	ErrEntityOrder     = errors.New("entity order is not a permutation")
)
