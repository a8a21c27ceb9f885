package main

import (
	"fmt"
	"io"
	"math"

	"github.com/notargets/HGradProjection/element"
	"github.com/notargets/HGradProjection/field"
	"github.com/notargets/HGradProjection/utils"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"go.uber.org/zap"
)

// tetCells returns the tetrahedra of a mesh file and their physical vertex
// coordinates. Other element types are skipped.
func tetCells(path string) (EToV [][]int, coords [][][]float64, err error) {
	msh, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading mesh %s: %w", path, err)
	}
	skipped := 0
	for _, verts := range msh.EtoV {
		if len(verts) != 4 {
			skipped++
			continue
		}
		cc := make([][]float64, 4)
		for i, v := range verts {
			x := msh.Vertices[v]
			cc[i] = []float64{x[0], x[1], x[2]}
		}
		EToV = append(EToV, verts)
		coords = append(coords, cc)
	}
	if skipped > 0 {
		logger.Warn("skipping non-tetrahedral elements", zap.Int("count", skipped))
	}
	if len(EToV) == 0 {
		return nil, nil, fmt.Errorf("mesh %s has no tetrahedra", path)
	}
	return EToV, coords, nil
}

func runMesh(out io.Writer, path string) error {
	if g, _ := cfg.Geometry(); g != element.Tet {
		logger.Info("mesh runs use tetrahedral cells", zap.String("configured", cfg.Cell))
	}
	EToV, coords, err := tetCells(path)
	if err != nil {
		return err
	}
	s, err := newSession(element.Tet)
	if err != nil {
		return err
	}

	orts := make([]element.Orientation, len(EToV))
	for c, verts := range EToV {
		if orts[c], err = element.NewOrientation(s.topo, verts); err != nil {
			return fmt.Errorf("cell %d: %w", c, err)
		}
	}
	target, err := field.NewAffinePullback(s.topo, coords, s.poly)
	if err != nil {
		return err
	}
	res, err := s.project(target, orts)
	if err != nil {
		return err
	}

	conn, err := utils.BuildConnectivity(s.topo, EToV)
	if err != nil {
		return err
	}
	pairs := conn.SharedSides()
	var maxJump float64
	compared := 0
	for _, p := range pairs {
		for _, e := range conn.SharedEntities(p) {
			for j := 0; j < s.lb.DofCount(e.Dim, e.LocalA); j++ {
				a := res.Coeffs.At(p.CellA, s.lb.DofOrdinal(e.Dim, e.LocalA, j))
				b := res.Coeffs.At(p.CellB, s.lb.DofOrdinal(e.Dim, e.LocalB, j))
				maxJump = math.Max(maxJump, math.Abs(a-b))
				compared++
			}
		}
	}
	logger.Info("conformity checked",
		zap.Int("sharedFaces", len(pairs)),
		zap.Int("comparedDofs", compared),
		zap.Float64("maxJump", maxJump))

	fmt.Fprintf(out, "%s, %d cells from %s, target %s\n", s.lb, len(EToV), path, s.poly)
	fmt.Fprintf(out, "shared faces: %d, shared dofs compared: %d\n", len(pairs), compared)
	fmt.Fprintf(out, "max coefficient jump across shared faces: %.3e\n", maxJump)
	return nil
}
