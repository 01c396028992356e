package cross

import (
	"math"

	"github.com/hhcho/crosshmm/geno"
	"gonum.org/v1/gonum/mat"
)

// doubledHaploid: genotypes 1=AA and 2=BB with a single meiosis between
// adjacent markers, autosomes only.
type doubledHaploid struct{ options }

func (c *doubledHaploid) CheckGeno(gen int, isObserved bool, ctx *Context) bool {
	if isObserved {
		return gen == geno.Missing || gen == geno.A || gen == geno.B
	}
	return gen == 1 || gen == 2
}

func (c *doubledHaploid) Init(trueGen int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	return -math.Ln2, nil
}

func (c *doubledHaploid) Emit(obsGen, trueGen int, errorProb float64, founderGeno []int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	if err := c.checkEmit(c, obsGen, errorProb, ctx); err != nil {
		return 0, err
	}
	return emitExpected(obsGen, inbredCall(trueGen), errorProb), nil
}

func (c *doubledHaploid) Step(genLeft, genRight int, recFrac float64, ctx *Context) (float64, error) {
	if err := c.checkStep(c, genLeft, genRight, recFrac, ctx); err != nil {
		return 0, err
	}
	if genLeft == genRight {
		return math.Log(1 - recFrac), nil
	}
	return math.Log(recFrac), nil
}

func (c *doubledHaploid) PossibleGen(ctx *Context) []int { return []int{1, 2} }
func (c *doubledHaploid) NGen(isXChr bool) int           { return 2 }
func (c *doubledHaploid) NAlleles() int                  { return 2 }
func (c *doubledHaploid) NFounders() int                 { return 0 }
func (c *doubledHaploid) NeedFounderGeno() bool          { return false }

func (c *doubledHaploid) NRec(genLeft, genRight int, ctx *Context) (int, error) {
	return twoStateNRec(c, c.options, genLeft, genRight, ctx)
}

func (c *doubledHaploid) GenoNames(alleles []string, isXChr bool) ([]string, error) {
	return homozygousNames(alleles, 2)
}

func (c *doubledHaploid) CheckHandleXChr(anyXChr bool) bool {
	return c.noXChr(anyXChr, "doubled haploids")
}

func (c *doubledHaploid) CheckCrossInfo(crossInfo [][]int, anyXChr bool) bool {
	return c.ignoreCrossInfo(crossInfo)
}

func (c *doubledHaploid) CheckFounderGenoSize(founderGeno [][]int, nMarkers int) bool { return true }
func (c *doubledHaploid) CheckFounderGenoValues(founderGeno [][]int) bool             { return true }

func (c *doubledHaploid) EstRecFrac(gamma []*mat.Dense, inds []*Context) (float64, error) {
	if err := checkGamma(c, gamma, inds); err != nil {
		return 0, err
	}
	u, w := diagTally(gamma)
	if u+w <= 0 {
		return 0.5, nil
	}
	return nonNegative(w / (u + w)), nil
}
