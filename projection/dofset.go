package projection

import "fmt"

// DofSet is the ordered, append-only list of dofs solved so far. The first n
// entries are always the dofs of the stages that completed before the n+1'th
// was added, so a prefix is a valid deflation set.
type DofSet struct {
	dofs []int
	seen []bool
}

func NewDofSet(cardinality int) *DofSet {
	return &DofSet{
		dofs: make([]int, 0, cardinality),
		seen: make([]bool, cardinality),
	}
}

func (s *DofSet) Len() int { return len(s.dofs) }

// Prefix returns the first n dofs. The result must not be modified.
func (s *DofSet) Prefix(n int) []int { return s.dofs[:n:n] }

func (s *DofSet) Dofs() []int { return append([]int(nil), s.dofs...) }

func (s *DofSet) Contains(dof int) bool {
	return dof >= 0 && dof < len(s.seen) && s.seen[dof]
}

// Check reports whether dofs could be appended.
func (s *DofSet) Check(dofs []int) error {
	for i, d := range dofs {
		if d < 0 || d >= len(s.seen) {
			return fmt.Errorf("%w: dof %d outside [0,%d)", ErrDofReassigned, d, len(s.seen))
		}
		if s.seen[d] {
			return fmt.Errorf("%w: dof %d", ErrDofReassigned, d)
		}
		for _, e := range dofs[:i] {
			if e == d {
				return fmt.Errorf("%w: dof %d listed twice", ErrDofReassigned, d)
			}
		}
	}
	return nil
}

func (s *DofSet) Append(dofs ...int) error {
	if err := s.Check(dofs); err != nil {
		return err
	}
	for _, d := range dofs {
		s.seen[d] = true
	}
	s.dofs = append(s.dofs, dofs...)
	return nil
}
