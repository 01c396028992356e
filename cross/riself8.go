package cross

import (
	"fmt"
	"math"

	"github.com/hhcho/crosshmm/design"
	"github.com/hhcho/crosshmm/diag"
	"github.com/hhcho/crosshmm/geno"
	"gonum.org/v1/gonum/mat"
)

// riSelf8 is the 8-way RIL by selfing. Latent genotype g is homozygous for
// founder g.
type riSelf8 struct{ options }

const riself8Founders = 8

func (c *riSelf8) CheckGeno(gen int, isObserved bool, ctx *Context) bool {
	if isObserved {
		return geno.IsObserved(gen)
	}
	return gen >= 1 && gen <= riself8Founders
}

func (c *riSelf8) Init(trueGen int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	return -math.Log(riself8Founders), nil
}

func (c *riSelf8) Emit(obsGen, trueGen int, errorProb float64, founderGeno []int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	if err := c.checkEmit(c, obsGen, errorProb, ctx); err != nil {
		return 0, err
	}
	return emitFounder(obsGen, trueGen, errorProb, founderGeno, riself8Founders, c.level)
}

// emitFounder is the emission shared by the multi-founder RILs: the observed
// call is compared to the allele of the founder behind the true genotype.
func emitFounder(obsGen, trueGen int, errorProb float64, founderGeno []int, nFounders int, level ValidationLevel) (float64, error) {
	if obsGen == geno.Missing {
		return 0, nil
	}
	if level == ValidateFull && len(founderGeno) != nFounders {
		return 0, fmt.Errorf("%w: founder genotypes for %d founders, want %d", ErrDimension, len(founderGeno), nFounders)
	}

	f := founderGeno[trueGen-1]
	if !geno.IsFounderAllele(f) {
		return 0, nil // founder missing, no information
	}
	if geno.Consistent(obsGen, f) {
		return math.Log(1 - errorProb), nil
	}
	return math.Log(errorProb), nil
}

// Step follows Teuscher & Broman (2007) eqn 1 and Broman (2005) table 2,
// multiplied by 8 to give conditional probabilities.
func (c *riSelf8) Step(genLeft, genRight int, recFrac float64, ctx *Context) (float64, error) {
	if err := c.checkStep(c, genLeft, genRight, recFrac, ctx); err != nil {
		return 0, err
	}
	r := recFrac
	if genLeft == genRight {
		return 2*math.Log(1-r) - math.Log(1+2*r), nil
	}

	topo, err := ctx.topology(riself8Founders)
	if err != nil {
		return 0, err
	}
	if topo.Relation(genLeft, genRight) == Sibling {
		return math.Log(r) + math.Log(1-r) - math.Log(1+2*r), nil
	}
	return math.Log(r) - math.Ln2 - math.Log(1+2*r), nil
}

func (c *riSelf8) PossibleGen(ctx *Context) []int {
	return seq(1, riself8Founders)
}

func (c *riSelf8) NGen(isXChr bool) int { return riself8Founders }
func (c *riSelf8) NAlleles() int        { return riself8Founders }
func (c *riSelf8) NFounders() int       { return riself8Founders }
func (c *riSelf8) NeedFounderGeno() bool {
	return true
}

func (c *riSelf8) NRec(genLeft, genRight int, ctx *Context) (int, error) {
	if err := c.checkTrue(c, genLeft, ctx); err != nil {
		return 0, err
	}
	if err := c.checkTrue(c, genRight, ctx); err != nil {
		return 0, err
	}
	if genLeft == genRight {
		return 0, nil
	}
	return 1, nil
}

func (c *riSelf8) GenoNames(alleles []string, isXChr bool) ([]string, error) {
	return homozygousNames(alleles, riself8Founders)
}

func homozygousNames(alleles []string, n int) ([]string, error) {
	if len(alleles) < n {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrAlleles, len(alleles), n)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = alleles[i] + alleles[i]
	}
	return out, nil
}

func (c *riSelf8) CheckHandleXChr(anyXChr bool) bool {
	return c.noXChr(anyXChr, "RIL by selfing")
}

func (c *riSelf8) CheckCrossInfo(crossInfo [][]int, anyXChr bool) bool {
	return design.CrossInfo(crossInfo, riself8Founders).Emit(c.sink)
}

func (c *riSelf8) CheckFounderGenoSize(founderGeno [][]int, nMarkers int) bool {
	return design.FounderGenoSize(founderGeno, riself8Founders, nMarkers).Emit(c.sink)
}

func (c *riSelf8) CheckFounderGenoValues(founderGeno [][]int) bool {
	return design.FounderGenoValues(founderGeno, geno.FounderCodes).Emit(c.sink)
}

// EstRecFrac solves the likelihood equation of the three-category
// multinomial (identical, sibling, non-sibling founder pairs) in closed form.
func (c *riSelf8) EstRecFrac(gamma []*mat.Dense, inds []*Context) (float64, error) {
	if err := checkGamma(c, gamma, inds); err != nil {
		return 0, err
	}
	u, v, w, err := topologyTally(gamma, inds, riself8Founders)
	if err != nil {
		return 0, err
	}
	n := u + v + w

	// all mass off the block diagonal: the equation has no interior root
	if u+v <= 0 {
		diag.Messagef(c.sink, "no non-recombinant mass in interval; rec_frac set to 0.5")
		return 0.5, nil
	}

	A := math.Sqrt(4*n*n + 4*n*(2*u-2*v-3*w) + 9*w*w + 12*w*(u+2*v) +
		16*v*v + 16*u*v + 4*u*u)
	result := (2*n + 2*u - w - A) / 4 / (n - w - 2*v - 2*u)

	if result < 0 {
		result = 0
	}
	return result, nil
}
