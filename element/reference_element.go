package element

import "fmt"

// Topology describes a reference simplex in [-1,1]^d together with the
// subcell tables (edges, faces) that the projection stages iterate over.
// Vertex coordinates follow the collapsed-coordinate convention:
//
//	Line: v0=-1, v1=1
//	Tri:  v0=(-1,-1), v1=(1,-1), v2=(-1,1)
//	Tet:  v0=(-1,-1,-1), v1=(1,-1,-1), v2=(-1,1,-1), v3=(-1,-1,1)
//
// Tet faces are wound so that cross(t0, t1) of the parametrization tangents
// points out of the cell.
type Topology struct {
	Name     string
	Type     ElementGeometry
	Dim      int
	Vertices [][]float64 // [vertex][dim]
	Edges    [][2]int    // empty for Line cells
	Faces    [][3]int    // empty unless Dim == 3
}

var (
	lineTopology = &Topology{
		Name:     "Line",
		Type:     Line,
		Dim:      1,
		Vertices: [][]float64{{-1}, {1}},
	}
	triTopology = &Topology{
		Name:     "Triangle",
		Type:     Tri,
		Dim:      2,
		Vertices: [][]float64{{-1, -1}, {1, -1}, {-1, 1}},
		Edges:    [][2]int{{0, 1}, {1, 2}, {2, 0}},
	}
	tetTopology = &Topology{
		Name:     "Tetrahedron",
		Type:     Tet,
		Dim:      3,
		Vertices: [][]float64{{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1}},
		Edges:    [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}},
		Faces:    [][3]int{{0, 1, 3}, {1, 2, 3}, {0, 3, 2}, {0, 2, 1}},
	}
)

// NewTopology returns the shared reference topology for a geometry. The
// returned value must be treated as read-only.
func NewTopology(g ElementGeometry) (*Topology, error) {
	switch g {
	case Line:
		return lineTopology, nil
	case Tri:
		return triTopology, nil
	case Tet:
		return tetTopology, nil
	}
	return nil, fmt.Errorf("unsupported cell geometry %v", g)
}

func (t *Topology) NumVertices() int { return len(t.Vertices) }

// SubcellCount returns the number of subcells of dimension dim. The cell
// itself is the single subcell of dimension Dim.
func (t *Topology) SubcellCount(dim int) int {
	switch {
	case dim < 0 || dim > t.Dim:
		return 0
	case dim == t.Dim:
		return 1
	case dim == 0:
		return len(t.Vertices)
	case dim == 1:
		return len(t.Edges)
	case dim == 2:
		return len(t.Faces)
	}
	return 0
}

// SubcellVertices returns the cell vertex ids of subcell (dim, id) in the
// subcell's own reference order.
func (t *Topology) SubcellVertices(dim, id int) []int {
	switch {
	case dim == t.Dim:
		vs := make([]int, len(t.Vertices))
		for i := range vs {
			vs[i] = i
		}
		return vs
	case dim == 0:
		return []int{id}
	case dim == 1:
		return []int{t.Edges[id][0], t.Edges[id][1]}
	case dim == 2:
		return []int{t.Faces[id][0], t.Faces[id][1], t.Faces[id][2]}
	}
	panic(fmt.Sprintf("no subcell of dimension %d on %s", dim, t.Name))
}

// FindSubcell returns the subcell of dimension dim spanned by exactly the
// vertex set verts, in any order.
func (t *Topology) FindSubcell(dim int, verts []int) (int, bool) {
	for id := 0; id < t.SubcellCount(dim); id++ {
		sv := t.SubcellVertices(dim, id)
		if len(sv) != len(verts) {
			continue
		}
		match := true
		for _, v := range verts {
			found := false
			for _, w := range sv {
				if v == w {
					found = true
					break
				}
			}
			if !found {
				match = false
				break
			}
		}
		if match {
			return id, true
		}
	}
	return 0, false
}

// SideDim is the dimension of the codimension-one subcells shared between
// neighboring cells.
func (t *Topology) SideDim() int { return t.Dim - 1 }

// MapSubcellPoint maps a point given in the reference parametrization of
// subcell (dim, id) into cell reference coordinates. Edges are parametrized
// on [-1,1], faces on the reference triangle.
func (t *Topology) MapSubcellPoint(dim, id int, param, out []float64) {
	switch {
	case dim == t.Dim:
		copy(out, param[:t.Dim])
	case dim == 0:
		copy(out, t.Vertices[id])
	case dim == 1:
		va, vb := t.Vertices[t.Edges[id][0]], t.Vertices[t.Edges[id][1]]
		u := param[0]
		for d := 0; d < t.Dim; d++ {
			out[d] = 0.5*(va[d]+vb[d]) + 0.5*u*(vb[d]-va[d])
		}
	case dim == 2:
		f := t.Faces[id]
		va, vb, vc := t.Vertices[f[0]], t.Vertices[f[1]], t.Vertices[f[2]]
		a, b := 0.5*(param[0]+1), 0.5*(param[1]+1)
		for d := 0; d < t.Dim; d++ {
			out[d] = va[d] + a*(vb[d]-va[d]) + b*(vc[d]-va[d])
		}
	}
}

// EdgeTangent is the derivative of the edge parametrization, (vb-va)/2.
func (t *Topology) EdgeTangent(edge int) []float64 {
	va, vb := t.Vertices[t.Edges[edge][0]], t.Vertices[t.Edges[edge][1]]
	tan := make([]float64, t.Dim)
	for d := range tan {
		tan[d] = 0.5 * (vb[d] - va[d])
	}
	return tan
}

// FaceParamTangents returns the derivatives of the face parametrization with
// respect to its two parameters.
func (t *Topology) FaceParamTangents(face int) (t0, t1 [3]float64) {
	f := t.Faces[face]
	va, vb, vc := t.Vertices[f[0]], t.Vertices[f[1]], t.Vertices[f[2]]
	for d := 0; d < 3; d++ {
		t0[d] = 0.5 * (vb[d] - va[d])
		t1[d] = 0.5 * (vc[d] - va[d])
	}
	return
}

// FaceTangentsAndNormal composes the face parametrization tangents with the
// Jacobian of the face orientation map and returns the resulting tangents
// and their cross product.
func (t *Topology) FaceTangentsAndNormal(face, ort int) (t0, t1, n [3]float64) {
	p0, p1 := t.FaceParamTangents(face)
	jac := OrientationJacobian(ort)
	for d := 0; d < 3; d++ {
		t0[d] = p0[d]*jac[0][0] + p1[d]*jac[1][0]
		t1[d] = p0[d]*jac[0][1] + p1[d]*jac[1][1]
	}
	n = Cross(t0, t1)
	return
}

func Cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
