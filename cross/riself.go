package cross

import (
	"math"

	"github.com/hhcho/crosshmm/geno"
	"gonum.org/v1/gonum/mat"
)

// riSelf is the two-way RIL by selfing: genotypes 1=AA and 2=BB, observed
// as A or B.
type riSelf struct{ options }

func (c *riSelf) CheckGeno(gen int, isObserved bool, ctx *Context) bool {
	if isObserved {
		return gen == geno.Missing || gen == geno.A || gen == geno.B
	}
	return gen == 1 || gen == 2
}

func (c *riSelf) Init(trueGen int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	return -math.Ln2, nil
}

func (c *riSelf) Emit(obsGen, trueGen int, errorProb float64, founderGeno []int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	if err := c.checkEmit(c, obsGen, errorProb, ctx); err != nil {
		return 0, err
	}
	return emitExpected(obsGen, inbredCall(trueGen), errorProb), nil
}

// inbredCall maps the genotypes of a two-founder inbred line to their call.
func inbredCall(trueGen int) int {
	if trueGen == 1 {
		return geno.A
	}
	return geno.B
}

// emitExpected compares an observed call to the one the true genotype implies.
func emitExpected(obsGen, expected int, errorProb float64) float64 {
	if obsGen == geno.Missing {
		return 0
	}
	if obsGen == expected {
		return math.Log(1 - errorProb)
	}
	return math.Log(errorProb)
}

// Step: the RIL recombination fraction is R = 2r/(1+2r) (Haldane & Waddington 1931).
func (c *riSelf) Step(genLeft, genRight int, recFrac float64, ctx *Context) (float64, error) {
	if err := c.checkStep(c, genLeft, genRight, recFrac, ctx); err != nil {
		return 0, err
	}
	if genLeft == genRight {
		return -math.Log(1 + 2*recFrac), nil
	}
	return math.Ln2 + math.Log(recFrac) - math.Log(1+2*recFrac), nil
}

func (c *riSelf) PossibleGen(ctx *Context) []int { return []int{1, 2} }
func (c *riSelf) NGen(isXChr bool) int           { return 2 }
func (c *riSelf) NAlleles() int                  { return 2 }
func (c *riSelf) NFounders() int                 { return 0 }
func (c *riSelf) NeedFounderGeno() bool          { return false }

func (c *riSelf) NRec(genLeft, genRight int, ctx *Context) (int, error) {
	return twoStateNRec(c, c.options, genLeft, genRight, ctx)
}

func twoStateNRec(c Cross, o options, genLeft, genRight int, ctx *Context) (int, error) {
	if err := o.checkTrue(c, genLeft, ctx); err != nil {
		return 0, err
	}
	if err := o.checkTrue(c, genRight, ctx); err != nil {
		return 0, err
	}
	if genLeft == genRight {
		return 0, nil
	}
	return 1, nil
}

func (c *riSelf) GenoNames(alleles []string, isXChr bool) ([]string, error) {
	return homozygousNames(alleles, 2)
}

func (c *riSelf) CheckHandleXChr(anyXChr bool) bool {
	return c.noXChr(anyXChr, "RIL by selfing")
}

func (c *riSelf) CheckCrossInfo(crossInfo [][]int, anyXChr bool) bool {
	return c.ignoreCrossInfo(crossInfo)
}

func (c *riSelf) CheckFounderGenoSize(founderGeno [][]int, nMarkers int) bool { return true }
func (c *riSelf) CheckFounderGenoValues(founderGeno [][]int) bool             { return true }

// EstRecFrac: the score equation w/r - 2n/(1+2r) = 0 gives r = w/(2u).
func (c *riSelf) EstRecFrac(gamma []*mat.Dense, inds []*Context) (float64, error) {
	if err := checkGamma(c, gamma, inds); err != nil {
		return 0, err
	}
	u, w := diagTally(gamma)
	if u <= 0 {
		return 0.5, nil
	}
	return nonNegative(w / (2 * u)), nil
}
