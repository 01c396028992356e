package cross

import (
	"math"

	"github.com/hhcho/crosshmm/design"
	"github.com/hhcho/crosshmm/geno"
	"gonum.org/v1/gonum/mat"
)

// riSelf4 is the 4-way RIL by selfing, (AxB)x(CxD) then selfed. In this
// design a recombinant interval is equally likely to land on any other
// founder, so the kernel has only two branches even though the cross order
// still pairs the founders.
type riSelf4 struct{ options }

const riself4Founders = 4

func (c *riSelf4) CheckGeno(gen int, isObserved bool, ctx *Context) bool {
	if isObserved {
		return geno.IsObserved(gen)
	}
	return gen >= 1 && gen <= riself4Founders
}

func (c *riSelf4) Init(trueGen int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	return -math.Log(riself4Founders), nil
}

func (c *riSelf4) Emit(obsGen, trueGen int, errorProb float64, founderGeno []int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	if err := c.checkEmit(c, obsGen, errorProb, ctx); err != nil {
		return 0, err
	}
	return emitFounder(obsGen, trueGen, errorProb, founderGeno, riself4Founders, c.level)
}

// Step: (1-r)/(1+2r) to stay on a founder, r/(1+2r) to each of the other three.
func (c *riSelf4) Step(genLeft, genRight int, recFrac float64, ctx *Context) (float64, error) {
	if err := c.checkStep(c, genLeft, genRight, recFrac, ctx); err != nil {
		return 0, err
	}
	if genLeft == genRight {
		return math.Log(1-recFrac) - math.Log(1+2*recFrac), nil
	}
	return math.Log(recFrac) - math.Log(1+2*recFrac), nil
}

func (c *riSelf4) PossibleGen(ctx *Context) []int {
	return seq(1, riself4Founders)
}

func (c *riSelf4) NGen(isXChr bool) int  { return riself4Founders }
func (c *riSelf4) NAlleles() int         { return riself4Founders }
func (c *riSelf4) NFounders() int        { return riself4Founders }
func (c *riSelf4) NeedFounderGeno() bool { return true }

func (c *riSelf4) NRec(genLeft, genRight int, ctx *Context) (int, error) {
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

func (c *riSelf4) GenoNames(alleles []string, isXChr bool) ([]string, error) {
	return homozygousNames(alleles, riself4Founders)
}

func (c *riSelf4) CheckHandleXChr(anyXChr bool) bool {
	return c.noXChr(anyXChr, "RIL by selfing")
}

func (c *riSelf4) CheckCrossInfo(crossInfo [][]int, anyXChr bool) bool {
	return design.CrossInfo(crossInfo, riself4Founders).Emit(c.sink)
}

func (c *riSelf4) CheckFounderGenoSize(founderGeno [][]int, nMarkers int) bool {
	return design.FounderGenoSize(founderGeno, riself4Founders, nMarkers).Emit(c.sink)
}

func (c *riSelf4) CheckFounderGenoValues(founderGeno [][]int) bool {
	return design.FounderGenoValues(founderGeno, geno.FounderCodes).Emit(c.sink)
}

// EstRecFrac: with u on the diagonal and w off it, the score equation
// -u/(1-r) + w/r - 2n/(1+2r) = 0 is linear in r.
func (c *riSelf4) EstRecFrac(gamma []*mat.Dense, inds []*Context) (float64, error) {
	if err := checkGamma(c, gamma, inds); err != nil {
		return 0, err
	}
	u, w := diagTally(gamma)
	if u <= 0 {
		return 0.5, nil
	}
	return nonNegative(w / (3*u + w)), nil
}

func nonNegative(r float64) float64 {
	if r < 0 {
		return 0
	}
	return r
}
