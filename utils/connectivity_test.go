package utils

import (
	"testing"

	"github.com/notargets/HGradProjection/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topology(t *testing.T, g element.ElementGeometry) *element.Topology {
	t.Helper()
	topo, err := element.NewTopology(g)
	require.NoError(t, err)
	return topo
}

func TestTwoTetConnectivity(t *testing.T) {
	topo := topology(t, element.Tet)
	conn, err := BuildConnectivity(topo, [][]int{{0, 1, 2, 3}, {3, 2, 4, 1}})
	require.NoError(t, err)

	// global face {1,2,3} is local face 1 of cell 0 and face 0 of cell 1
	assert.Equal(t, []int{0, 1, 0, 0}, conn.EToE[0])
	assert.Equal(t, []int{0, 0, 2, 3}, conn.EToF[0])
	assert.Equal(t, []int{0, 1, 1, 1}, conn.EToE[1])
	assert.Equal(t, []int{1, 1, 2, 3}, conn.EToF[1])
	assert.True(t, conn.IsBoundary(0, 0))
	assert.False(t, conn.IsBoundary(1, 0))

	pairs := conn.SharedSides()
	require.Equal(t, []SidePair{{CellA: 0, SideA: 1, CellB: 1, SideB: 0}}, pairs)

	want := []SharedEntity{
		{Dim: 0, LocalA: 1, LocalB: 3},
		{Dim: 0, LocalA: 2, LocalB: 1},
		{Dim: 0, LocalA: 3, LocalB: 0},
		{Dim: 1, LocalA: 1, LocalB: 4},
		{Dim: 1, LocalA: 4, LocalB: 3},
		{Dim: 1, LocalA: 5, LocalB: 0},
		{Dim: 2, LocalA: 1, LocalB: 0},
	}
	assert.Equal(t, want, conn.SharedEntities(pairs[0]))
}

func TestTriangleConnectivity(t *testing.T) {
	topo := topology(t, element.Tri)
	conn, err := BuildConnectivity(topo, [][]int{{0, 1, 2}, {2, 1, 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, conn.NumSides)

	pairs := conn.SharedSides()
	require.Len(t, pairs, 1)
	assert.Equal(t, SidePair{CellA: 0, SideA: 1, CellB: 1, SideB: 0}, pairs[0])
	assert.Equal(t, []SharedEntity{
		{Dim: 0, LocalA: 1, LocalB: 1},
		{Dim: 0, LocalA: 2, LocalB: 0},
		{Dim: 1, LocalA: 1, LocalB: 0},
	}, conn.SharedEntities(pairs[0]))

	_, err = BuildConnectivity(topo, [][]int{{0, 1, 2}, {2, 1, 3}, {1, 2, 4}})
	assert.ErrorContains(t, err, "more than two cells")
	_, err = BuildConnectivity(topo, [][]int{{0, 1, 1}})
	assert.ErrorIs(t, err, element.ErrDuplicateVertex)
	_, err = BuildConnectivity(topo, [][]int{{0, 1}})
	assert.Error(t, err)
	_, err = BuildConnectivity(topo, nil)
	assert.Error(t, err)
}

func TestLineConnectivity(t *testing.T) {
	topo := topology(t, element.Line)
	conn, err := BuildConnectivity(topo, [][]int{{0, 1}, {1, 2}, {3, 2}})
	require.NoError(t, err)
	pairs := conn.SharedSides()
	assert.Equal(t, []SidePair{
		{CellA: 0, SideA: 1, CellB: 1, SideB: 0},
		{CellA: 1, SideA: 1, CellB: 2, SideB: 1},
	}, pairs)
	assert.Equal(t, []SharedEntity{{Dim: 0, LocalA: 1, LocalB: 1}}, conn.SharedEntities(pairs[1]))
}
