package basis

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/notargets/HGradProjection/element"
	"github.com/notargets/HGradProjection/element/library/gonudg"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnsupportedOperator = errors.New("unsupported basis operator")
	ErrPointDimension      = errors.New("evaluation points have the wrong dimension")
)

// Tag locates a degree of freedom on its subcell.
type Tag struct {
	Dim, Entity, Local int
}

// Lagrange is the nodal H(grad) basis of total degree Order on a simplex,
// with nodes on the equispaced barycentric lattice. Dofs are numbered
// vertices first, then edges, faces and the interior; within a subcell they
// follow the lattice read along the subcell's own vertex order.
type Lagrange struct {
	topo    *element.Topology
	order   int
	lattice [][]int    // [dof][vertex] lattice coordinates
	nodes   *mat.Dense // [dof × dim]
	tags    []Tag
	ordinal [4][][]int // [dim][entity][local] -> dof
	coef    *mat.Dense // inverse Vandermonde, [monomial × dof]

	mu    sync.Mutex
	perms map[element.Orientation][]int
}

func NewLagrange(topo *element.Topology, order int) (*Lagrange, error) {
	if order < 1 {
		return nil, fmt.Errorf("H(grad) basis needs order >= 1, got %d", order)
	}
	lb := &Lagrange{
		topo:  topo,
		order: order,
		perms: make(map[element.Orientation][]int),
	}
	for d := 0; d <= topo.Dim; d++ {
		lb.ordinal[d] = make([][]int, topo.SubcellCount(d))
	}

	type entry struct {
		tag Tag
		key []int
		lat []int
	}
	var entries []entry
	for _, l := range gonudg.EquispacedLattice(topo.Dim, order) {
		var support []int
		for v, c := range l {
			if c > 0 {
				support = append(support, v)
			}
		}
		dim := len(support) - 1
		id, ok := topo.FindSubcell(dim, support)
		if !ok {
			return nil, fmt.Errorf("lattice point %v has no carrier subcell on %s", l, topo.Name)
		}
		vs := topo.SubcellVertices(dim, id)
		key := make([]int, 0, len(vs))
		for i := len(vs) - 1; i >= 1; i-- {
			key = append(key, l[vs[i]])
		}
		entries = append(entries, entry{tag: Tag{Dim: dim, Entity: id}, key: key, lat: l})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.tag.Dim != b.tag.Dim {
			return a.tag.Dim < b.tag.Dim
		}
		if a.tag.Entity != b.tag.Entity {
			return a.tag.Entity < b.tag.Entity
		}
		for k := range a.key {
			if a.key[k] != b.key[k] {
				return a.key[k] < b.key[k]
			}
		}
		return false
	})

	for i := range entries {
		e := &entries[i]
		e.tag.Local = len(lb.ordinal[e.tag.Dim][e.tag.Entity])
		lb.ordinal[e.tag.Dim][e.tag.Entity] = append(lb.ordinal[e.tag.Dim][e.tag.Entity], i)
		lb.tags = append(lb.tags, e.tag)
		lb.lattice = append(lb.lattice, e.lat)
	}
	lb.nodes = gonudg.LatticePoints(lb.lattice, order)

	V := gonudg.MonomialVandermonde(order, lb.nodes)
	lb.coef = mat.NewDense(len(lb.tags), len(lb.tags), nil)
	if err := lb.coef.Inverse(V); err != nil {
		return nil, fmt.Errorf("inverting %s order %d Vandermonde: %w", topo.Name, order, err)
	}
	return lb, nil
}

func (lb *Lagrange) Topology() *element.Topology { return lb.topo }

// Degree is the total polynomial degree of the basis.
func (lb *Lagrange) Degree() int { return lb.order }

func (lb *Lagrange) String() string {
	return fmt.Sprintf("Lagrange %s P%d (%d dofs)", lb.topo.Name, lb.order, len(lb.tags))
}

func (lb *Lagrange) Cardinality() int { return len(lb.tags) }

func (lb *Lagrange) DofCount(dim, entity int) int {
	if dim < 0 || dim > lb.topo.Dim || entity < 0 || entity >= len(lb.ordinal[dim]) {
		return 0
	}
	return len(lb.ordinal[dim][entity])
}

func (lb *Lagrange) DofOrdinal(dim, entity, j int) int {
	return lb.ordinal[dim][entity][j]
}

func (lb *Lagrange) DofTag(dof int) Tag { return lb.tags[dof] }

// Node returns the reference coordinates of the node carried by dof.
func (lb *Lagrange) Node(dof int) []float64 {
	return lb.nodes.RawRowView(dof)
}

// NodeCoordinates returns all nodes, one row per dof of the reference basis.
func (lb *Lagrange) NodeCoordinates() *mat.Dense {
	return mat.DenseCopyOf(lb.nodes)
}

// RawValues evaluates the reference basis, without orientation, at points:
// a [cardinality × numPoints] matrix.
func (lb *Lagrange) RawValues(points *mat.Dense) *mat.Dense {
	return lb.evaluateReference(points, element.OpValue)[0]
}

// RawGradients evaluates the reference-coordinate gradient of the reference
// basis, one [cardinality × numPoints] matrix per direction.
func (lb *Lagrange) RawGradients(points *mat.Dense) []*mat.Dense {
	return lb.evaluateReference(points, element.OpGrad)
}

// Permutation returns, for every dof of a cell with orientation ort, the
// dof of the reference basis it is taken from. Subcell dofs are reindexed so
// that neighbors sharing a subcell agree on their meaning.
func (lb *Lagrange) Permutation(ort element.Orientation) []int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if p, ok := lb.perms[ort]; ok {
		return p
	}
	perm := make([]int, len(lb.tags))
	for i := range perm {
		perm[i] = i
	}
	for dim := 1; dim < lb.topo.Dim; dim++ {
		for id := 0; id < lb.topo.SubcellCount(dim); id++ {
			lb.permuteSubcell(perm, dim, id, ort.Code(dim, id))
		}
	}
	lb.perms[ort] = perm
	return perm
}

func (lb *Lagrange) permuteSubcell(perm []int, dim, id, code int) {
	dofs := lb.ordinal[dim][id]
	if code == 0 || len(dofs) == 0 {
		return
	}
	vs := lb.topo.SubcellVertices(dim, id)
	cs := element.CanonicalOrder(len(vs), code)
	byLattice := make(map[[4]int]int, len(dofs))
	for _, k := range dofs {
		var key [4]int
		for i, v := range vs {
			key[i] = lb.lattice[k][v]
		}
		byLattice[key] = k
	}
	for _, j := range dofs {
		var key [4]int
		for i, v := range vs {
			key[cs[i]] = lb.lattice[j][v]
		}
		perm[j] = byLattice[key]
	}
}

// Evaluate returns op applied to every basis function at every point for
// each cell: result[cell][component] is a [cardinality × numPoints] matrix.
// Cells sharing an orientation share the returned matrices.
func (lb *Lagrange) Evaluate(points *mat.Dense, op element.Operator, orts []element.Orientation) ([][]*mat.Dense, error) {
	if op != element.OpValue && op != element.OpGrad {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedOperator, op)
	}
	np, dim := points.Dims()
	if dim != lb.topo.Dim {
		return nil, fmt.Errorf("%w: got %d, %s needs %d", ErrPointDimension, dim, lb.topo.Name, lb.topo.Dim)
	}
	if np == 0 {
		return nil, fmt.Errorf("%w: no points", ErrPointDimension)
	}
	raw := lb.evaluateReference(points, op)

	card := lb.Cardinality()
	out := make([][]*mat.Dense, len(orts))
	shared := make(map[element.Orientation][]*mat.Dense)
	for c, ort := range orts {
		if m, ok := shared[ort]; ok {
			out[c] = m
			continue
		}
		perm := lb.Permutation(ort)
		comps := make([]*mat.Dense, len(raw))
		for k, r := range raw {
			m := mat.NewDense(card, np, nil)
			for j := 0; j < card; j++ {
				m.SetRow(j, r.RawRowView(perm[j]))
			}
			comps[k] = m
		}
		shared[ort] = comps
		out[c] = comps
	}
	return out, nil
}

// evaluateReference evaluates the unpermuted basis, one [card × np] matrix
// per component.
func (lb *Lagrange) evaluateReference(points *mat.Dense, op element.Operator) []*mat.Dense {
	card := lb.Cardinality()
	np, _ := points.Dims()
	var modal []*mat.Dense
	if op == element.OpGrad {
		modal = gonudg.GradMonomialVandermonde(lb.order, points)
	} else {
		modal = []*mat.Dense{gonudg.MonomialVandermonde(lb.order, points)}
	}
	raw := make([]*mat.Dense, len(modal))
	for k, V := range modal {
		raw[k] = mat.NewDense(card, np, nil)
		raw[k].Mul(lb.coef.T(), V.T())
	}
	return raw
}
