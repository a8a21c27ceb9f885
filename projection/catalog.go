package projection

import (
	"fmt"

	"github.com/notargets/HGradProjection/element"
	"github.com/notargets/HGradProjection/element/library/gonudg"
	"gonum.org/v1/gonum/mat"
)

// Catalog is the EvaluationCatalog of a reference simplex. Gradient points
// are collapsed Gauss rules mapped onto every edge, face and the interior;
// the only value points are the reference vertices.
type Catalog struct {
	topo         *element.Topology
	basisDegree  int
	targetDegree int

	points  [2]*mat.Dense
	ranges  [2][4][]Range
	weights [2][4][][]float64

	valuePoints *mat.Dense
	valueRanges []Range
}

// NewCatalog builds the catalog for a basis of the given order. Basis pairs
// are integrated exactly (degree 2(order-1), at least 1); targetDegree sets
// the exactness of the target-against-basis rules.
func NewCatalog(topo *element.Topology, basisOrder, targetDegree int) (*Catalog, error) {
	if basisOrder < 1 {
		return nil, fmt.Errorf("catalog needs basis order >= 1, got %d", basisOrder)
	}
	if targetDegree < 0 {
		return nil, fmt.Errorf("negative target cubature degree %d", targetDegree)
	}
	bdeg := 2 * (basisOrder - 1)
	if bdeg < 1 {
		bdeg = 1
	}
	cat := &Catalog{
		topo:         topo,
		basisDegree:  bdeg,
		targetDegree: targetDegree,
	}
	for kind, deg := range [2]int{bdeg, targetDegree} {
		if err := cat.buildGradientPoints(PointKind(kind), deg); err != nil {
			return nil, err
		}
	}

	nv := topo.NumVertices()
	cat.valuePoints = mat.NewDense(nv, topo.Dim, nil)
	cat.valueRanges = make([]Range, nv)
	for v := 0; v < nv; v++ {
		cat.valuePoints.SetRow(v, topo.Vertices[v])
		cat.valueRanges[v] = Range{Start: v, End: v + 1}
	}
	return cat, nil
}

func (cat *Catalog) buildGradientPoints(kind PointKind, degree int) error {
	dim := cat.topo.Dim
	var data []float64
	n := 0
	cat.ranges[kind][0] = make([]Range, cat.topo.NumVertices())
	cat.weights[kind][0] = make([][]float64, cat.topo.NumVertices())
	for d := 1; d <= dim; d++ {
		cub, err := gonudg.SimplexCubature(d, degree)
		if err != nil {
			return fmt.Errorf("%s cubature for dimension %d: %w", kind, d, err)
		}
		count := cat.topo.SubcellCount(d)
		cat.ranges[kind][d] = make([]Range, count)
		cat.weights[kind][d] = make([][]float64, count)
		x := make([]float64, dim)
		for id := 0; id < count; id++ {
			start := n
			for q := 0; q < cub.Len(); q++ {
				cat.topo.MapSubcellPoint(d, id, cub.Points.RawRowView(q), x)
				data = append(data, x...)
				n++
			}
			cat.ranges[kind][d][id] = Range{Start: start, End: n}
			cat.weights[kind][d][id] = append([]float64(nil), cub.Weights...)
		}
	}
	cat.points[kind] = mat.NewDense(n, dim, data)
	return nil
}

func (cat *Catalog) Topology() *element.Topology { return cat.topo }

func (cat *Catalog) Dimension() int { return cat.topo.Dim }

func (cat *Catalog) NumSubcells(dim int) int { return cat.topo.SubcellCount(dim) }

// Degree returns the polynomial exactness of the rules behind kind.
func (cat *Catalog) Degree(kind PointKind) int {
	if kind == TargetPoints {
		return cat.targetDegree
	}
	return cat.basisDegree
}

func (cat *Catalog) PointRange(dim, entity int, kind PointKind) Range {
	if dim < 0 || dim > cat.topo.Dim || entity < 0 || entity >= len(cat.ranges[kind][dim]) {
		return Range{}
	}
	return cat.ranges[kind][dim][entity]
}

func (cat *Catalog) Weights(dim, entity int, kind PointKind) []float64 {
	if dim < 0 || dim > cat.topo.Dim || entity < 0 || entity >= len(cat.weights[kind][dim]) {
		return nil
	}
	return cat.weights[kind][dim][entity]
}

func (cat *Catalog) Points(kind PointKind) *mat.Dense { return cat.points[kind] }

func (cat *Catalog) ValuePointRange(dim, entity int) Range {
	if dim != 0 || entity < 0 || entity >= len(cat.valueRanges) {
		return Range{}
	}
	return cat.valueRanges[entity]
}

func (cat *Catalog) ValuePoints() *mat.Dense { return cat.valuePoints }

func (cat *Catalog) EdgeTangent(edge int) []float64 { return cat.topo.EdgeTangent(edge) }

func (cat *Catalog) FaceNormal(face, ort int) [3]float64 {
	_, _, n := cat.topo.FaceTangentsAndNormal(face, ort)
	return n
}
