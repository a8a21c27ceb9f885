package utils

import (
	"fmt"
	"sort"

	"github.com/notargets/HGradProjection/element"
)

// Connectivity links the sides (codimension-one subcells) of a cell batch.
// Sides on the boundary are connected to themselves:
// EToE[k][s] == k and EToF[k][s] == s.
type Connectivity struct {
	K        int // number of cells
	NumSides int // sides per cell
	EToV     [][]int
	EToE     [][]int // [cell][side] -> neighbor cell
	EToF     [][]int // [cell][side] -> neighbor's local side

	topo *element.Topology
}

// SidePair is one interior side seen from both cells, CellA < CellB.
type SidePair struct {
	CellA, SideA int
	CellB, SideB int
}

// SharedEntity is a subcell lying on a shared side, with its local id in
// both cells of the pair.
type SharedEntity struct {
	Dim            int
	LocalA, LocalB int
}

type sideKey [3]int

type sideRef struct {
	cell, side int
}

// BuildConnectivity matches cell sides by their sorted global vertex ids.
// EToV[k] lists the global vertices of cell k in local vertex order.
func BuildConnectivity(topo *element.Topology, EToV [][]int) (*Connectivity, error) {
	// Validate inputs
	K := len(EToV)
	if K == 0 {
		return nil, fmt.Errorf("no cells")
	}
	nv := topo.NumVertices()
	sideDim := topo.SideDim()
	nSides := topo.SubcellCount(sideDim)
	for k, verts := range EToV {
		if len(verts) != nv {
			return nil, fmt.Errorf("cell %d has %d vertices, %s needs %d", k, len(verts), topo.Name, nv)
		}
		for i := range verts {
			for j := i + 1; j < nv; j++ {
				if verts[i] == verts[j] {
					return nil, fmt.Errorf("cell %d: %w: %d", k, element.ErrDuplicateVertex, verts[i])
				}
			}
		}
	}

	conn := &Connectivity{
		K:        K,
		NumSides: nSides,
		EToV:     EToV,
		EToE:     make([][]int, K),
		EToF:     make([][]int, K),
		topo:     topo,
	}
	for k := 0; k < K; k++ {
		conn.EToE[k] = make([]int, nSides)
		conn.EToF[k] = make([]int, nSides)
		for s := 0; s < nSides; s++ {
			conn.EToE[k][s] = k
			conn.EToF[k][s] = s
		}
	}

	seen := make(map[sideKey]sideRef, K*nSides)
	for k := 0; k < K; k++ {
		for s := 0; s < nSides; s++ {
			key := conn.signature(k, sideDim, s)
			other, ok := seen[key]
			if !ok {
				seen[key] = sideRef{cell: k, side: s}
				continue
			}
			if conn.EToE[other.cell][other.side] != other.cell || other.cell == k {
				return nil, fmt.Errorf("side %v is shared by more than two cells", key)
			}
			conn.EToE[k][s], conn.EToF[k][s] = other.cell, other.side
			conn.EToE[other.cell][other.side], conn.EToF[other.cell][other.side] = k, s
		}
	}
	return conn, nil
}

// signature returns the sorted global vertex ids of subcell (dim, id) of
// cell k, padded with -1.
func (conn *Connectivity) signature(k, dim, id int) sideKey {
	key := sideKey{-1, -1, -1}
	verts := conn.topo.SubcellVertices(dim, id)
	ids := make([]int, len(verts))
	for i, v := range verts {
		ids[i] = conn.EToV[k][v]
	}
	sort.Ints(ids)
	copy(key[:], ids)
	return key
}

// IsBoundary reports whether side s of cell k has no neighbor.
func (conn *Connectivity) IsBoundary(k, s int) bool {
	return conn.EToE[k][s] == k && conn.EToF[k][s] == s
}

// SharedSides lists every interior side once, ordered by (CellA, SideA).
func (conn *Connectivity) SharedSides() []SidePair {
	var pairs []SidePair
	for k := 0; k < conn.K; k++ {
		for s := 0; s < conn.NumSides; s++ {
			if nb := conn.EToE[k][s]; nb > k {
				pairs = append(pairs, SidePair{CellA: k, SideA: s, CellB: nb, SideB: conn.EToF[k][s]})
			}
		}
	}
	return pairs
}

// SharedEntities lists every subcell of the shared side, the side itself
// included, with its local id in both cells. Entities are ordered by
// dimension, then by their local id in CellA.
func (conn *Connectivity) SharedEntities(p SidePair) []SharedEntity {
	topo := conn.topo
	sideDim := topo.SideDim()
	onSide := topo.SubcellVertices(sideDim, p.SideA)

	var out []SharedEntity
	for dim := 0; dim <= sideDim; dim++ {
		for id := 0; id < topo.SubcellCount(dim); id++ {
			verts := topo.SubcellVertices(dim, id)
			if !subset(verts, onSide) {
				continue
			}
			local, ok := conn.localIn(p.CellB, p.CellA, verts)
			if !ok {
				continue
			}
			idB, ok := topo.FindSubcell(dim, local)
			if !ok {
				continue
			}
			out = append(out, SharedEntity{Dim: dim, LocalA: id, LocalB: idB})
		}
	}
	return out
}

// localIn maps local vertices of cell a to the local vertices of cell b that
// carry the same global ids.
func (conn *Connectivity) localIn(b, a int, verts []int) ([]int, bool) {
	out := make([]int, len(verts))
	for i, v := range verts {
		g := conn.EToV[a][v]
		found := false
		for j, w := range conn.EToV[b] {
			if w == g {
				out[i] = j
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}

func subset(vs, of []int) bool {
	for _, v := range vs {
		found := false
		for _, w := range of {
			if v == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
