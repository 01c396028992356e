// Package sim draws experimental-cross populations from a cross model: a
// founder panel, per-individual cross orders and sexes, true genotype paths
// along a chromosome and the genotype calls observed at each marker.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/hhcho/crosshmm/cross"
	"github.com/hhcho/crosshmm/geno"
	"github.com/hhcho/crosshmm/hmm"
	"golang.org/x/sync/errgroup"
)

var ErrParams = errors.New("sim: invalid parameters")

type Params struct {
	NumInd int
	// RecFrac holds one recombination fraction per marker interval.
	RecFrac     []float64
	ErrorProb   float64
	MissingRate float64
	IsXChr      bool
	// FemaleRate is the share of females; only used on the X chromosome.
	FemaleRate float64
	Seed       uint64
	Threads    int
}

func (p Params) validate() error {
	if p.NumInd <= 0 {
		return fmt.Errorf("%w: %d individuals", ErrParams, p.NumInd)
	}
	for i, r := range p.RecFrac {
		if !(r >= 0 && r <= 0.5) {
			return fmt.Errorf("%w: interval %d: rec_frac %g", cross.ErrProbability, i+1, r)
		}
	}
	if !(p.ErrorProb >= 0 && p.ErrorProb < 1) {
		return fmt.Errorf("%w: error_prob %g", cross.ErrProbability, p.ErrorProb)
	}
	if !(p.MissingRate >= 0 && p.MissingRate <= 1) {
		return fmt.Errorf("%w: missing rate %g", cross.ErrProbability, p.MissingRate)
	}
	if !(p.FemaleRate >= 0 && p.FemaleRate <= 1) {
		return fmt.Errorf("%w: female rate %g", cross.ErrProbability, p.FemaleRate)
	}
	return nil
}

// Population is one simulated chromosome.
type Population struct {
	Geno        [][]int // observed calls, individuals x markers
	TrueGeno    [][]int // latent genotypes, individuals x markers
	FounderGeno [][]int // founders x markers; nil when the design has no panel
	CrossInfo   [][]int // nil when the design takes none
	IsFemale    []bool
	Inds        []*cross.Context

	// IsXChr is false when the design treated a requested X as an autosome.
	IsXChr bool
}

// Data returns the population in the decoder's input form.
func (p *Population) Data() *hmm.Data {
	return &hmm.Data{Geno: p.Geno, FounderGeno: p.FounderGeno, Inds: p.Inds}
}

// Partial calls are never simulated, and lines built from inbred founders
// are never called H.
var fullCalls = []int{geno.A, geno.H, geno.B}

// Simulate draws a population under c.
func Simulate(ctx context.Context, c cross.Cross, p Params) (*Population, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	// designs without X handling report it to their sink and get an autosome
	if p.IsXChr && !c.CheckHandleXChr(true) {
		p.IsXChr = false
	}
	threads := p.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	nMar := len(p.RecFrac) + 1
	nFounders := c.NFounders()
	rand := InitializePRG(p.Seed)

	pop := &Population{
		Geno:     make([][]int, p.NumInd),
		TrueGeno: make([][]int, p.NumInd),
		IsFemale: make([]bool, p.NumInd),
		Inds:     make([]*cross.Context, p.NumInd),
		IsXChr:   p.IsXChr,
	}
	fgCols := make([][]int, nMar)
	if c.NeedFounderGeno() {
		pop.FounderGeno = founderPanel(rand, nFounders, nMar)
		for mar := range fgCols {
			col := make([]int, nFounders)
			for f := range col {
				col[f] = pop.FounderGeno[f][mar]
			}
			fgCols[mar] = col
		}
	}
	if nFounders > 0 {
		pop.CrossInfo = make([][]int, p.NumInd)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for ind := 0; ind < p.NumInd; ind++ {
		ind := ind
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := simulateInd(c, p, rand, pop, fgCols, ind); err != nil {
				return fmt.Errorf("individual %d: %w", ind+1, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pop, nil
}

// founderPanel draws an A/B panel in which every marker is polymorphic
// whenever there are at least two founders.
func founderPanel(rand *Random, nFounders, nMar int) [][]int {
	rng := rand.PRG(GlobalPRG)
	fg := make([][]int, nFounders)
	for f := range fg {
		fg[f] = make([]int, nMar)
	}
	for mar := 0; mar < nMar; mar++ {
		for {
			nA := 0
			for f := range fg {
				if rng.Intn(2) == 0 {
					fg[f][mar] = geno.A
					nA++
				} else {
					fg[f][mar] = geno.B
				}
			}
			if nFounders < 2 || (nA > 0 && nA < nFounders) {
				break
			}
		}
	}
	return fg
}

// simulateInd fills row ind of pop. Rows are disjoint, so individuals can be
// drawn concurrently.
func simulateInd(c cross.Cross, p Params, rand *Random, pop *Population, fgCols [][]int, ind int) error {
	rng := rand.PRG(ind)

	female := true
	if p.IsXChr {
		female = bernoulli(rng, p.FemaleRate)
	}
	var info []int
	if n := c.NFounders(); n > 0 {
		info = permutation(rng, n)
		pop.CrossInfo[ind] = info
	}
	ctx, err := cross.NewContext(p.IsXChr, female, info)
	if err != nil {
		return err
	}
	pop.IsFemale[ind] = female
	pop.Inds[ind] = ctx

	gens := c.PossibleGen(ctx)
	nMar := len(fgCols)
	truth := make([]int, nMar)
	logw := make([]float64, len(gens))

	for a, gen := range gens {
		if logw[a], err = c.Init(gen, ctx); err != nil {
			return err
		}
	}
	truth[0] = gens[categorical(rng, logw)]
	for mar := 1; mar < nMar; mar++ {
		for a, gen := range gens {
			if logw[a], err = c.Step(truth[mar-1], gen, p.RecFrac[mar-1], ctx); err != nil {
				return err
			}
		}
		k := categorical(rng, logw)
		if k < 0 {
			return fmt.Errorf("marker %d: no reachable genotype from %d", mar+1, truth[mar-1])
		}
		truth[mar] = gens[k]
	}

	obs := make([]int, nMar)
	var calls []int
	for _, call := range fullCalls {
		if call == geno.H && c.NeedFounderGeno() {
			continue
		}
		if c.CheckGeno(call, true, ctx) {
			calls = append(calls, call)
		}
	}
	callw := make([]float64, len(calls))
	for mar := range obs {
		if bernoulli(rng, p.MissingRate) {
			obs[mar] = geno.Missing
			continue
		}
		for k, call := range calls {
			if callw[k], err = c.Emit(call, truth[mar], p.ErrorProb, fgCols[mar], ctx); err != nil {
				return err
			}
		}
		if k := categorical(rng, callw); k >= 0 {
			obs[mar] = calls[k]
		}
	}

	pop.TrueGeno[ind] = truth
	pop.Geno[ind] = obs
	return nil
}

// ObservedRate is the share of non-missing calls.
func (p *Population) ObservedRate() float64 {
	var n, obs int
	for _, row := range p.Geno {
		for _, g := range row {
			n++
			if g != geno.Missing {
				obs++
			}
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return float64(obs) / float64(n)
}
