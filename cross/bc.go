package cross

import (
	"fmt"
	"math"

	"github.com/hhcho/crosshmm/geno"
	"gonum.org/v1/gonum/mat"
)

// backcross is (AxB)xA. Autosomal genotypes are 1=AA and 2=AB. On the X,
// females keep AA/AB and males are hemizygous, 3=AY and 4=BY, so the state
// space depends on sex.
type backcross struct{ options }

func (c *backcross) hemizygous(ctx *Context) bool {
	return ctx.xchr() && !ctx.female()
}

func (c *backcross) CheckGeno(gen int, isObserved bool, ctx *Context) bool {
	if isObserved {
		if gen == geno.Missing || gen == geno.A {
			return true
		}
		if c.hemizygous(ctx) {
			return gen == geno.B
		}
		return gen == geno.H
	}
	if c.hemizygous(ctx) {
		return gen == 3 || gen == 4
	}
	return gen == 1 || gen == 2
}

func (c *backcross) Init(trueGen int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	return -math.Ln2, nil
}

func (c *backcross) Emit(obsGen, trueGen int, errorProb float64, founderGeno []int, ctx *Context) (float64, error) {
	if err := c.checkTrue(c, trueGen, ctx); err != nil {
		return 0, err
	}
	if err := c.checkEmit(c, obsGen, errorProb, ctx); err != nil {
		return 0, err
	}
	var expected int
	switch trueGen {
	case 1, 3:
		expected = geno.A
	case 2:
		expected = geno.H
	default:
		expected = geno.B
	}
	return emitExpected(obsGen, expected, errorProb), nil
}

func (c *backcross) Step(genLeft, genRight int, recFrac float64, ctx *Context) (float64, error) {
	if err := c.checkStep(c, genLeft, genRight, recFrac, ctx); err != nil {
		return 0, err
	}
	if genLeft == genRight {
		return math.Log(1 - recFrac), nil
	}
	return math.Log(recFrac), nil
}

func (c *backcross) PossibleGen(ctx *Context) []int {
	if c.hemizygous(ctx) {
		return []int{3, 4}
	}
	return []int{1, 2}
}

func (c *backcross) NGen(isXChr bool) int {
	if isXChr {
		return 4
	}
	return 2
}

func (c *backcross) NAlleles() int         { return 2 }
func (c *backcross) NFounders() int        { return 0 }
func (c *backcross) NeedFounderGeno() bool { return false }

func (c *backcross) NRec(genLeft, genRight int, ctx *Context) (int, error) {
	return twoStateNRec(c, c.options, genLeft, genRight, ctx)
}

func (c *backcross) GenoNames(alleles []string, isXChr bool) ([]string, error) {
	if len(alleles) < 2 {
		return nil, fmt.Errorf("%w: have %d, need 2", ErrAlleles, len(alleles))
	}
	a, b := alleles[0], alleles[1]
	out := []string{a + a, a + b}
	if isXChr {
		out = append(out, a+"Y", b+"Y")
	}
	return out, nil
}

func (c *backcross) CheckHandleXChr(anyXChr bool) bool { return true }

func (c *backcross) CheckCrossInfo(crossInfo [][]int, anyXChr bool) bool {
	return c.ignoreCrossInfo(crossInfo)
}

func (c *backcross) CheckFounderGenoSize(founderGeno [][]int, nMarkers int) bool { return true }
func (c *backcross) CheckFounderGenoValues(founderGeno [][]int) bool             { return true }

// EstRecFrac is the expected proportion of recombinant intervals.
func (c *backcross) EstRecFrac(gamma []*mat.Dense, inds []*Context) (float64, error) {
	if err := checkGamma(c, gamma, inds); err != nil {
		return 0, err
	}
	u, w := diagTally(gamma)
	if u+w <= 0 {
		return 0.5, nil
	}
	return nonNegative(w / (u + w)), nil
}
