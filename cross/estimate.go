package cross

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// checkGamma verifies that there is one square posterior per individual and
// that each has the design's state-space size.
func checkGamma(c Cross, gamma []*mat.Dense, inds []*Context) error {
	if len(gamma) == 0 {
		return fmt.Errorf("%w: no individuals", ErrDimension)
	}
	if len(gamma) != len(inds) {
		return fmt.Errorf("%w: %d gamma matrices for %d individuals", ErrDimension, len(gamma), len(inds))
	}
	for i, g := range gamma {
		n := c.NGen(inds[i].xchr())
		r, k := g.Dims()
		if r != n || k != n {
			return fmt.Errorf("%w: individual %d gamma is %dx%d, want %dx%d", ErrDimension, i+1, r, k, n, n)
		}
	}
	return nil
}

// diagTally splits the posterior mass into the diagonal (no recombination)
// and everything else.
func diagTally(gamma []*mat.Dense) (u, w float64) {
	for _, g := range gamma {
		n, _ := g.Dims()
		for gl := 0; gl < n; gl++ {
			for gr := 0; gr < n; gr++ {
				if gl == gr {
					u += g.At(gl, gr)
				} else {
					w += g.At(gl, gr)
				}
			}
		}
	}
	return u, w
}

// topologyTally splits the posterior mass by founder relation, using each
// individual's cached topology.
func topologyTally(gamma []*mat.Dense, inds []*Context, nFounders int) (u, v, w float64, err error) {
	for i, g := range gamma {
		topo, err := inds[i].topology(nFounders)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("individual %d: %w", i+1, err)
		}
		for gl := 0; gl < nFounders; gl++ {
			u += g.At(gl, gl)
			for gr := gl + 1; gr < nFounders; gr++ {
				pair := g.At(gl, gr) + g.At(gr, gl)
				if topo.Relation(gl+1, gr+1) == Sibling {
					v += pair
				} else {
					w += pair
				}
			}
		}
	}
	return u, v, w, nil
}
