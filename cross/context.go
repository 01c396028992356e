package cross

import "fmt"

// Relation is the pedigree distance between the founders behind two
// homozygous genotypes.
type Relation uint8

const (
	Identical Relation = iota
	Sibling
	NonSibling
)

func (r Relation) String() string {
	switch r {
	case Identical:
		return "identical"
	case Sibling:
		return "sibling"
	case NonSibling:
		return "non-sibling"
	}
	return fmt.Sprintf("Relation(%d)", uint8(r))
}

// Topology is the founder pairing implied by one row of cross information.
// Founders that sit in the same slot pair (positions 2k and 2k+1 of the cross
// order) were crossed directly to each other.
type Topology struct {
	n     int
	index []int // founder -> position in the cross order
	class []Relation
}

// NewTopology inverts crossInfo, which must be a permutation of 1..n, and
// tabulates the relation of every ordered founder pair.
func NewTopology(crossInfo []int) (*Topology, error) {
	n := len(crossInfo)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty", ErrCrossInfo)
	}

	index := make([]int, n)
	seen := make([]bool, n)
	for pos, f := range crossInfo {
		if f < 1 || f > n || seen[f-1] {
			return nil, fmt.Errorf("%w: %v is not a permutation of 1..%d", ErrCrossInfo, crossInfo, n)
		}
		seen[f-1] = true
		index[f-1] = pos
	}

	class := make([]Relation, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			switch {
			case i == j:
				class[i*n+j] = Identical
			case index[i]/2 == index[j]/2:
				class[i*n+j] = Sibling
			default:
				class[i*n+j] = NonSibling
			}
		}
	}

	return &Topology{n: n, index: index, class: class}, nil
}

// N is the number of founders.
func (t *Topology) N() int {
	return t.n
}

// Position returns the 0-based slot of founder f (1-based) in the cross order.
func (t *Topology) Position(f int) int {
	return t.index[f-1]
}

// Relation classifies two 1-based founder (or homozygous genotype) codes.
func (t *Topology) Relation(gl, gr int) Relation {
	return t.class[(gl-1)*t.n+gr-1]
}

// Context carries the per-individual arguments of every model call: the
// chromosome type, the sex, and the cross order with its cached topology.
// A nil *Context is an autosome in an individual without cross information.
type Context struct {
	IsXChr    bool
	IsFemale  bool
	CrossInfo []int

	topo *Topology
}

// NewContext builds a Context. The topology is computed once here when
// crossInfo is non-empty.
func NewContext(isXChr, isFemale bool, crossInfo []int) (*Context, error) {
	c := &Context{IsXChr: isXChr, IsFemale: isFemale, CrossInfo: crossInfo}
	if len(crossInfo) > 0 {
		topo, err := NewTopology(crossInfo)
		if err != nil {
			return nil, err
		}
		c.topo = topo
	}
	return c, nil
}

// NewContexts builds one Context per row of crossInfo. isFemale may be nil
// (all female); crossInfo may be nil when the design takes none, in which case
// nInd contexts are created.
func NewContexts(isXChr bool, isFemale []bool, crossInfo [][]int, nInd int) ([]*Context, error) {
	if crossInfo != nil && len(crossInfo) != nInd {
		return nil, fmt.Errorf("%w: %d cross_info rows for %d individuals", ErrDimension, len(crossInfo), nInd)
	}
	if isFemale != nil && len(isFemale) != nInd {
		return nil, fmt.Errorf("%w: %d sexes for %d individuals", ErrDimension, len(isFemale), nInd)
	}
	out := make([]*Context, nInd)
	for i := range out {
		female := true
		if isFemale != nil {
			female = isFemale[i]
		}
		var info []int
		if crossInfo != nil {
			info = crossInfo[i]
		}
		c, err := NewContext(isXChr, female, info)
		if err != nil {
			return nil, fmt.Errorf("individual %d: %w", i+1, err)
		}
		out[i] = c
	}
	return out, nil
}

// Topology returns the cached founder topology, or nil.
func (c *Context) Topology() *Topology {
	if c == nil {
		return nil
	}
	return c.topo
}

func (c *Context) xchr() bool {
	return c != nil && c.IsXChr
}

func (c *Context) female() bool {
	return c == nil || c.IsFemale
}

// topology returns the cached topology and checks that it covers n founders.
func (c *Context) topology(n int) (*Topology, error) {
	t := c.Topology()
	if t == nil {
		return nil, fmt.Errorf("%w: missing", ErrCrossInfo)
	}
	if t.n != n {
		return nil, fmt.Errorf("%w: %d founders, want %d", ErrCrossInfo, t.n, n)
	}
	return t, nil
}
