package projection

import (
	"github.com/notargets/HGradProjection/element"
	"gonum.org/v1/gonum/mat"
)

// PointKind selects one of the two gradient point sets of a catalog.
type PointKind uint8

const (
	BasisPoints  PointKind = iota // integrate basis against basis
	TargetPoints                  // integrate target against basis
)

func (k PointKind) String() string {
	if k == TargetPoints {
		return "target"
	}
	return "basis"
}

// Range is a half-open interval [Start, End) of point indices.
type Range struct {
	Start, End int
}

func (r Range) Len() int { return r.End - r.Start }

// EvaluationCatalog supplies the reference points, weights and subcell
// geometry the stages integrate with. Gradient points of every subcell of
// dimension >= 1 live in one matrix per PointKind; value points, used only by
// the vertex stage, live in another.
type EvaluationCatalog interface {
	Dimension() int
	NumSubcells(dim int) int
	PointRange(dim, entity int, kind PointKind) Range
	Weights(dim, entity int, kind PointKind) []float64
	Points(kind PointKind) *mat.Dense
	ValuePointRange(dim, entity int) Range
	ValuePoints() *mat.Dense
	EdgeTangent(edge int) []float64
	FaceNormal(face, ort int) [3]float64
}

// BasisOracle evaluates an orientation-aware basis and exposes its dof
// tags. Evaluate returns result[cell][component] as a
// [Cardinality × numPoints] matrix.
type BasisOracle interface {
	Cardinality() int
	DofCount(dim, entity int) int
	DofOrdinal(dim, entity, j int) int
	Evaluate(points *mat.Dense, op element.Operator, orts []element.Orientation) ([][]*mat.Dense, error)
}

// SystemBatch holds one small symmetric system per cell of a partition.
// When MatrixIndependentOfCell is set every Mass entry is the same matrix
// and a solver may factor it once.
type SystemBatch struct {
	Cells                   []int
	Mass                    []*mat.SymDense
	RHS                     []*mat.VecDense
	MatrixIndependentOfCell bool
}

// LocalSolver solves a batch of systems and writes solution j of cell c
// into coeffs[c, dofs[j]].
type LocalSolver interface {
	Solve(coeffs *mat.Dense, batch *SystemBatch, dofs []int) error
}
