// Package hmm is the forward-backward and Viterbi machinery that turns a
// cross model's Init/Step/Emit into genotype probabilities, most likely
// genotype paths and the two-locus posteriors used for map estimation.
//
// Everything is computed in log space, one chromosome at a time, with the
// individuals decoded in parallel.
package hmm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/hhcho/crosshmm/cross"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimension      = errors.New("hmm: dimension mismatch")
	ErrFounderGeno    = errors.New("hmm: invalid founder genotypes")
	ErrZeroLikelihood = errors.New("hmm: data have zero likelihood under the model")
)

// Data is the input for one chromosome.
type Data struct {
	// Geno holds the observed calls, individuals x markers.
	Geno [][]int
	// FounderGeno is founders x markers; only used by designs that need it.
	FounderGeno [][]int
	// Inds holds one context per individual.
	Inds []*cross.Context
}

// NumInd returns the number of individuals.
func (d *Data) NumInd() int { return len(d.Geno) }

// NumMarkers returns the number of markers.
func (d *Data) NumMarkers() int {
	if len(d.Geno) == 0 {
		return 0
	}
	return len(d.Geno[0])
}

// Model binds a cross model to one chromosome of data.
type Model struct {
	cross     cross.Cross
	data      *Data
	errorProb float64
	threads   int

	fgCols [][]int // marker -> founder alleles at that marker
}

// Option configures a Model.
type Option func(*Model)

// WithThreads bounds the number of individuals decoded concurrently.
func WithThreads(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.threads = n
		}
	}
}

// New checks the data against the cross design and returns a Model.
func New(c cross.Cross, data *Data, errorProb float64, opts ...Option) (*Model, error) {
	if len(data.Geno) == 0 {
		return nil, fmt.Errorf("%w: no individuals", ErrDimension)
	}
	if len(data.Inds) != len(data.Geno) {
		return nil, fmt.Errorf("%w: %d contexts for %d individuals", ErrDimension, len(data.Inds), len(data.Geno))
	}
	nMar := data.NumMarkers()
	if nMar == 0 {
		return nil, fmt.Errorf("%w: no markers", ErrDimension)
	}
	for i, row := range data.Geno {
		if len(row) != nMar {
			return nil, fmt.Errorf("%w: individual %d has %d markers, want %d", ErrDimension, i+1, len(row), nMar)
		}
	}
	if !(errorProb >= 0 && errorProb < 1) {
		return nil, fmt.Errorf("%w: error_prob %g", cross.ErrProbability, errorProb)
	}

	m := &Model{
		cross:     c,
		data:      data,
		errorProb: errorProb,
		threads:   runtime.NumCPU(),
		fgCols:    make([][]int, nMar),
	}
	for _, opt := range opts {
		opt(m)
	}

	if c.NeedFounderGeno() {
		if !c.CheckFounderGenoSize(data.FounderGeno, nMar) || !c.CheckFounderGenoValues(data.FounderGeno) {
			return nil, ErrFounderGeno
		}
		for mar := range m.fgCols {
			col := make([]int, len(data.FounderGeno))
			for f := range col {
				col[f] = data.FounderGeno[f][mar]
			}
			m.fgCols[mar] = col
		}
	}
	return m, nil
}

// Cross returns the model's cross design.
func (m *Model) Cross() cross.Cross { return m.cross }

// Data returns the model's data.
func (m *Model) Data() *Data { return m.data }

func isXChr(c *cross.Context) bool { return c != nil && c.IsXChr }

// chain holds one individual's HMM in log space over its possible genotypes.
type chain struct {
	gens []int
	init []float64
	emit [][]float64 // marker -> genotype
	step [][]float64 // interval -> k*k, row = left genotype

	alpha, beta [][]float64
	loglik      float64
}

func (m *Model) checkMap(recFrac []float64) error {
	if want := m.data.NumMarkers() - 1; len(recFrac) != want {
		return fmt.Errorf("%w: %d recombination fractions for %d intervals", ErrDimension, len(recFrac), want)
	}
	return nil
}

func (m *Model) buildChain(ind int, recFrac []float64) (*chain, error) {
	c := m.cross
	ctx := m.data.Inds[ind]
	obs := m.data.Geno[ind]
	gens := c.PossibleGen(ctx)
	k := len(gens)

	ch := &chain{
		gens: gens,
		init: make([]float64, k),
		emit: make([][]float64, len(obs)),
		step: make([][]float64, len(recFrac)),
	}
	for a, g := range gens {
		lp, err := c.Init(g, ctx)
		if err != nil {
			return nil, err
		}
		ch.init[a] = lp
	}
	for mar := range obs {
		row := make([]float64, k)
		for a, g := range gens {
			lp, err := c.Emit(obs[mar], g, m.errorProb, m.fgCols[mar], ctx)
			if err != nil {
				return nil, fmt.Errorf("marker %d: %w", mar+1, err)
			}
			row[a] = lp
		}
		ch.emit[mar] = row
	}
	for iv, r := range recFrac {
		tm := make([]float64, k*k)
		for a, gl := range gens {
			for b, gr := range gens {
				lp, err := c.Step(gl, gr, r, ctx)
				if err != nil {
					return nil, fmt.Errorf("interval %d: %w", iv+1, err)
				}
				tm[a*k+b] = lp
			}
		}
		ch.step[iv] = tm
	}
	return ch, nil
}

func (ch *chain) forward() {
	k := len(ch.gens)
	nMar := len(ch.emit)
	ch.alpha = make([][]float64, nMar)
	ch.alpha[0] = make([]float64, k)
	for a := range ch.gens {
		ch.alpha[0][a] = ch.init[a] + ch.emit[0][a]
	}

	terms := make([]float64, k)
	for mar := 1; mar < nMar; mar++ {
		cur := make([]float64, k)
		prev := ch.alpha[mar-1]
		tm := ch.step[mar-1]
		for b := 0; b < k; b++ {
			for a := 0; a < k; a++ {
				terms[a] = prev[a] + tm[a*k+b]
			}
			cur[b] = floats.LogSumExp(terms) + ch.emit[mar][b]
		}
		ch.alpha[mar] = cur
	}
	ch.loglik = floats.LogSumExp(ch.alpha[nMar-1])
}

func (ch *chain) backward() {
	k := len(ch.gens)
	nMar := len(ch.emit)
	ch.beta = make([][]float64, nMar)
	ch.beta[nMar-1] = make([]float64, k)

	terms := make([]float64, k)
	for mar := nMar - 2; mar >= 0; mar-- {
		cur := make([]float64, k)
		next := ch.beta[mar+1]
		tm := ch.step[mar]
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				terms[b] = tm[a*k+b] + ch.emit[mar+1][b] + next[b]
			}
			cur[a] = floats.LogSumExp(terms)
		}
		ch.beta[mar] = cur
	}
}

// run builds and decodes every individual, at most m.threads at a time, and
// hands each finished chain to fn. fn is called concurrently for distinct
// individuals.
func (m *Model) run(ctx context.Context, recFrac []float64, backward bool, fn func(ind int, ch *chain) error) error {
	if err := m.checkMap(recFrac); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.threads)
	for ind := range m.data.Geno {
		ind := ind
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ch, err := m.buildChain(ind, recFrac)
			if err != nil {
				return fmt.Errorf("individual %d: %w", ind+1, err)
			}
			ch.forward()
			if math.IsInf(ch.loglik, -1) || math.IsNaN(ch.loglik) {
				return fmt.Errorf("individual %d: %w", ind+1, ErrZeroLikelihood)
			}
			if backward {
				ch.backward()
			}
			return fn(ind, ch)
		})
	}
	return g.Wait()
}

// LogLik returns the log-likelihood of the data for the given map.
func (m *Model) LogLik(ctx context.Context, recFrac []float64) (float64, error) {
	ll := make([]float64, m.data.NumInd())
	err := m.run(ctx, recFrac, false, func(ind int, ch *chain) error {
		ll[ind] = ch.loglik
		return nil
	})
	if err != nil {
		return 0, err
	}
	return floats.Sum(ll), nil
}

// GenoProb returns, per individual, the NGen x markers matrix of marginal
// genotype probabilities. Row g-1 holds genotype g.
func (m *Model) GenoProb(ctx context.Context, recFrac []float64) ([]*mat.Dense, error) {
	out := make([]*mat.Dense, m.data.NumInd())
	nMar := m.data.NumMarkers()
	err := m.run(ctx, recFrac, true, func(ind int, ch *chain) error {
		n := m.cross.NGen(isXChr(m.data.Inds[ind]))
		p := mat.NewDense(n, nMar, nil)
		for mar := 0; mar < nMar; mar++ {
			for a, g := range ch.gens {
				p.Set(g-1, mar, math.Exp(ch.alpha[mar][a]+ch.beta[mar][a]-ch.loglik))
			}
		}
		out[ind] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PairPosteriors returns gamma[interval][individual], the NGen x NGen joint
// posterior of the genotypes at the interval's two markers, together with the
// total log-likelihood.
func (m *Model) PairPosteriors(ctx context.Context, recFrac []float64) ([][]*mat.Dense, float64, error) {
	nInd := m.data.NumInd()
	gamma := make([][]*mat.Dense, len(recFrac))
	for iv := range gamma {
		gamma[iv] = make([]*mat.Dense, nInd)
	}
	ll := make([]float64, nInd)

	err := m.run(ctx, recFrac, true, func(ind int, ch *chain) error {
		n := m.cross.NGen(isXChr(m.data.Inds[ind]))
		k := len(ch.gens)
		for iv := range recFrac {
			p := mat.NewDense(n, n, nil)
			tm := ch.step[iv]
			for a, gl := range ch.gens {
				for b, gr := range ch.gens {
					lp := ch.alpha[iv][a] + tm[a*k+b] + ch.emit[iv+1][b] + ch.beta[iv+1][b] - ch.loglik
					p.Set(gl-1, gr-1, math.Exp(lp))
				}
			}
			gamma[iv][ind] = p
		}
		ll[ind] = ch.loglik
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return gamma, floats.Sum(ll), nil
}

// Viterbi returns the most likely genotype path of every individual, as
// genotype codes.
func (m *Model) Viterbi(ctx context.Context, recFrac []float64) ([][]int, error) {
	if err := m.checkMap(recFrac); err != nil {
		return nil, err
	}
	out := make([][]int, m.data.NumInd())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.threads)
	for ind := range m.data.Geno {
		ind := ind
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ch, err := m.buildChain(ind, recFrac)
			if err != nil {
				return fmt.Errorf("individual %d: %w", ind+1, err)
			}
			out[ind] = ch.viterbi()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (ch *chain) viterbi() []int {
	k := len(ch.gens)
	nMar := len(ch.emit)

	delta := make([]float64, k)
	for a := range delta {
		delta[a] = ch.init[a] + ch.emit[0][a]
	}
	back := make([][]int, nMar)
	next := make([]float64, k)
	for mar := 1; mar < nMar; mar++ {
		back[mar] = make([]int, k)
		tm := ch.step[mar-1]
		for b := 0; b < k; b++ {
			best, arg := math.Inf(-1), 0
			for a := 0; a < k; a++ {
				if v := delta[a] + tm[a*k+b]; v > best {
					best, arg = v, a
				}
			}
			next[b] = best + ch.emit[mar][b]
			back[mar][b] = arg
		}
		delta, next = next, delta
	}

	path := make([]int, nMar)
	state := floats.MaxIdx(delta)
	for mar := nMar - 1; mar >= 0; mar-- {
		path[mar] = ch.gens[state]
		if mar > 0 {
			state = back[mar][state]
		}
	}
	return path
}
