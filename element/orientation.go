package element

import (
	"errors"
	"fmt"
)

const (
	MaxEdges = 6
	MaxFaces = 4
)

var ErrDuplicateVertex = errors.New("cell references the same global vertex twice")

// Orientation records, for every edge and face of one cell, how the local
// reference parametrization relates to the canonical one shared by all cells
// touching that subcell. Edge codes are 0 or 1, triangle face codes 0..5.
// Orientation is comparable and can key maps.
type Orientation struct {
	edges  [MaxEdges]uint8
	faces  [MaxFaces]uint8
	nEdges uint8
	nFaces uint8
}

// NewOrientation derives the orientation of a cell from the global ids of its
// vertices, given in local vertex order.
func NewOrientation(topo *Topology, globalVerts []int) (o Orientation, err error) {
	if len(globalVerts) != topo.NumVertices() {
		err = fmt.Errorf("%s needs %d vertex ids, got %d",
			topo.Name, topo.NumVertices(), len(globalVerts))
		return
	}
	for i := range globalVerts {
		for j := i + 1; j < len(globalVerts); j++ {
			if globalVerts[i] == globalVerts[j] {
				err = fmt.Errorf("%w: vertex %d", ErrDuplicateVertex, globalVerts[i])
				return
			}
		}
	}
	o.nEdges = uint8(len(topo.Edges))
	for ie, e := range topo.Edges {
		o.edges[ie] = uint8(EdgeOrientationOf(globalVerts[e[0]], globalVerts[e[1]]))
	}
	o.nFaces = uint8(len(topo.Faces))
	for iface, f := range topo.Faces {
		ids := [3]int{globalVerts[f[0]], globalVerts[f[1]], globalVerts[f[2]]}
		o.faces[iface] = uint8(TriangleOrientationOf(ids))
	}
	return
}

// NewOrientationFromCodes builds an orientation directly from edge and face
// codes.
func NewOrientationFromCodes(edges, faces []int) (o Orientation, err error) {
	if len(edges) > MaxEdges || len(faces) > MaxFaces {
		err = fmt.Errorf("too many subcells: %d edges, %d faces", len(edges), len(faces))
		return
	}
	for i, c := range edges {
		if c < 0 || c > 1 {
			err = fmt.Errorf("edge %d: invalid orientation code %d", i, c)
			return
		}
		o.edges[i] = uint8(c)
	}
	for i, c := range faces {
		if c < 0 || c > 5 {
			err = fmt.Errorf("face %d: invalid orientation code %d", i, c)
			return
		}
		o.faces[i] = uint8(c)
	}
	o.nEdges, o.nFaces = uint8(len(edges)), uint8(len(faces))
	return
}

func (o Orientation) NumEdges() int { return int(o.nEdges) }

func (o Orientation) NumFaces() int { return int(o.nFaces) }

func (o Orientation) EdgeOrientation(edge int) int { return int(o.edges[edge]) }

func (o Orientation) FaceOrientation(face int) int { return int(o.faces[face]) }

// Code returns the orientation code of subcell (dim, id); vertices and the
// cell interior always report 0.
func (o Orientation) Code(dim, id int) int {
	switch dim {
	case 1:
		if id < int(o.nEdges) {
			return int(o.edges[id])
		}
	case 2:
		if id < int(o.nFaces) {
			return int(o.faces[id])
		}
	}
	return 0
}

// IsAligned reports whether every subcell code is zero.
func (o Orientation) IsAligned() bool {
	for i := 0; i < int(o.nEdges); i++ {
		if o.edges[i] != 0 {
			return false
		}
	}
	for i := 0; i < int(o.nFaces); i++ {
		if o.faces[i] != 0 {
			return false
		}
	}
	return true
}

func (o Orientation) String() string {
	return fmt.Sprintf("edges%v faces%v", o.edges[:o.nEdges], o.faces[:o.nFaces])
}

// EdgeOrientationOf is 1 when the edge runs from the larger to the smaller
// global vertex id.
func EdgeOrientationOf(a, b int) int {
	if a > b {
		return 1
	}
	return 0
}

// TriangleOrientationOf encodes a triangle face as minPos + 3*flip, where
// minPos is the local position of the smallest global id and flip is set when
// the vertex following minPos carries a smaller id than the one preceding it.
func TriangleOrientationOf(ids [3]int) int {
	m := 0
	for i := 1; i < 3; i++ {
		if ids[i] < ids[m] {
			m = i
		}
	}
	next, prev := (m+1)%3, (m+2)%3
	if ids[prev] > ids[next] {
		return m + 3
	}
	return m
}

// CanonicalOrder lists the local vertex positions of a subcell in canonical
// order. Cells sharing the subcell list the same global vertices in the same
// sequence; code 0 is the identity.
func CanonicalOrder(numVerts, ort int) []int {
	switch numVerts {
	case 1:
		return []int{0}
	case 2:
		if ort == 1 {
			return []int{1, 0}
		}
		return []int{0, 1}
	case 3:
		m := ort % 3
		next, prev := (m+1)%3, (m+2)%3
		if ort >= 3 {
			return []int{m, prev, next}
		}
		return []int{m, next, prev}
	}
	panic(fmt.Sprintf("no canonical order for a subcell with %d vertices", numVerts))
}

var triangleOrientationJacobians = [6][2][2]float64{
	{{1, 0}, {0, 1}},
	{{-1, -1}, {1, 0}},
	{{0, 1}, {-1, -1}},
	{{0, 1}, {1, 0}},
	{{-1, -1}, {0, 1}},
	{{1, 0}, {-1, -1}},
}

// OrientationJacobian is the constant Jacobian of the map taking canonical
// face parameters to local ones. Codes 0..2 are rotations (det +1), 3..5
// reflections (det -1).
func OrientationJacobian(ort int) [2][2]float64 {
	return triangleOrientationJacobians[ort]
}
