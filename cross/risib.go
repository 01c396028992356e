package cross

import (
	"math"

	"github.com/hhcho/crosshmm/geno"
	"gonum.org/v1/gonum/mat"
)

// riSib is the two-way RIL by sib mating, autosomes only.
type riSib struct{ options }

func (c *riSib) CheckGeno(gen int, isObserved bool, ctx *Context) bool {
	if isObserved {
		return gen == geno.Missing || gen == geno.A || gen == geno.B
	}
	return gen == 1 || gen == 2
}

func (c *riSib) Init(trueGen int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	return -math.Ln2, nil
}

func (c *riSib) Emit(obsGen, trueGen int, errorProb float64, founderGeno []int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	if err := c.checkEmit(c, obsGen, errorProb, ctx); err != nil {
		return 0, err
	}
	return emitExpected(obsGen, inbredCall(trueGen), errorProb), nil
}

// Step: R = 4r/(1+6r) for sib mating.
func (c *riSib) Step(genLeft, genRight int, recFrac float64, ctx *Context) (float64, error) {
	if err := c.checkStep(c, genLeft, genRight, recFrac, ctx); err != nil {
		return 0, err
	}
	if genLeft == genRight {
		return math.Log(1+2*recFrac) - math.Log(1+6*recFrac), nil
	}
	return math.Log(4) + math.Log(recFrac) - math.Log(1+6*recFrac), nil
}

func (c *riSib) PossibleGen(ctx *Context) []int { return []int{1, 2} }
func (c *riSib) NGen(isXChr bool) int           { return 2 }
func (c *riSib) NAlleles() int                  { return 2 }
func (c *riSib) NFounders() int                 { return 0 }
func (c *riSib) NeedFounderGeno() bool          { return false }

func (c *riSib) NRec(genLeft, genRight int, ctx *Context) (int, error) {
	return twoStateNRec(c, c.options, genLeft, genRight, ctx)
}

func (c *riSib) GenoNames(alleles []string, isXChr bool) ([]string, error) {
	return homozygousNames(alleles, 2)
}

func (c *riSib) CheckHandleXChr(anyXChr bool) bool {
	return c.noXChr(anyXChr, "RIL by sib mating")
}

func (c *riSib) CheckCrossInfo(crossInfo [][]int, anyXChr bool) bool {
	return c.ignoreCrossInfo(crossInfo)
}

func (c *riSib) CheckFounderGenoSize(founderGeno [][]int, nMarkers int) bool { return true }
func (c *riSib) CheckFounderGenoValues(founderGeno [][]int) bool             { return true }

// EstRecFrac: 2u/(1+2r) + w/r - 6n/(1+6r) = 0 reduces to r = w/(4u - 2w).
// With w >= 2u the likelihood increases all the way to 0.5.
func (c *riSib) EstRecFrac(gamma []*mat.Dense, inds []*Context) (float64, error) {
	if err := checkGamma(c, gamma, inds); err != nil {
		return 0, err
	}
	u, w := diagTally(gamma)
	den := 4*u - 2*w
	if den <= 0 {
		return 0.5, nil
	}
	return nonNegative(w / den), nil
}
