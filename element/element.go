package element

import (
	"fmt"
	"strings"
)

type ElementGeometry uint8

const (
	Tet ElementGeometry = iota
	Tri
	Line
)

func (g ElementGeometry) String() string {
	switch g {
	case Tet:
		return "Tet"
	case Tri:
		return "Tri"
	case Line:
		return "Line"
	}
	return fmt.Sprintf("ElementGeometry(%d)", uint8(g))
}

// ParseGeometry accepts the short names used on the command line and in
// configuration files ("tet", "tri", "line"), case insensitive.
func ParseGeometry(name string) (ElementGeometry, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tet", "tetrahedron":
		return Tet, nil
	case "tri", "triangle":
		return Tri, nil
	case "line", "segment":
		return Line, nil
	}
	return 0, fmt.Errorf("unknown cell geometry %q", name)
}
