// Package mapest refines a genetic map by EM: decode with the current map,
// re-estimate every interval's recombination fraction from the two-locus
// posteriors, and repeat until the log-likelihood settles.
package mapest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/hhcho/crosshmm/cross"
	"github.com/hhcho/crosshmm/diag"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var ErrNoIntervals = errors.New("mapest: need at least two markers")

// Decoder computes the two-locus posteriors gamma[interval][individual] and
// the data log-likelihood for a map. *hmm.Model implements it.
type Decoder interface {
	PairPosteriors(ctx context.Context, recFrac []float64) ([][]*mat.Dense, float64, error)
}

// Estimator turns one interval's posteriors into a recombination fraction.
// Every cross.Cross implements it.
type Estimator interface {
	EstRecFrac(gamma []*mat.Dense, inds []*cross.Context) (float64, error)
}

type Options struct {
	MaxIterations int
	// Tol bounds the log-likelihood change that counts as converged. It also
	// sets the margin, Tol/1000, kept between the estimates and 0 or 1/2.
	Tol     float64
	Threads int
	Sink    diag.Sink
}

// DefaultOptions returns the settings used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 10000,
		Tol:           1e-6,
		Threads:       runtime.NumCPU(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tol <= 0 {
		o.Tol = d.Tol
	}
	if o.Threads <= 0 {
		o.Threads = d.Threads
	}
	return o
}

// Result is the best map seen, by log-likelihood.
type Result struct {
	RecFrac    []float64
	LogLik     float64
	Iterations int
	Converged  bool
}

// Positions returns the cumulative marker positions of the map in cM.
func (r *Result) Positions(f MapFunction) []float64 {
	return Positions(r.RecFrac, f)
}

// Refine runs EM from init. It stops when two consecutive log-likelihoods
// differ by less than opts.Tol, or after opts.MaxIterations decoder calls, in
// which case a warning goes to opts.Sink and the best map so far is returned
// without error.
//
// ctx is checked once per iteration, between decoding and estimation. On
// cancellation, or if the decoder fails, the best map so far is returned
// together with the error; it is nil only if no iteration completed.
func Refine(ctx context.Context, dec Decoder, est Estimator, inds []*cross.Context, init []float64, opts Options) (*Result, error) {
	if len(init) == 0 {
		return nil, ErrNoIntervals
	}
	opts = opts.withDefaults()
	lo, hi := opts.Tol/1000, 0.5-opts.Tol/1000

	cur := make([]float64, len(init))
	for i, r := range init {
		cur[i] = clamp(r, lo, hi)
	}

	var best *Result
	prevLL := math.Inf(-1)
	start := time.Now()
	for it := 1; it <= opts.MaxIterations; it++ {
		gamma, ll, err := dec.PairPosteriors(ctx, cur)
		if err != nil {
			return best, fmt.Errorf("iteration %d: %w", it, err)
		}
		if len(gamma) != len(cur) {
			return best, fmt.Errorf("%w: decoder returned %d intervals, want %d", cross.ErrDimension, len(gamma), len(cur))
		}
		if best == nil || ll > best.LogLik {
			best = &Result{RecFrac: append([]float64(nil), cur...), LogLik: ll}
		}
		best.Iterations = it
		log.Lvl2(time.Now().Format(time.StampMilli), "Iteration", it, "loglik", ll)

		if it > 1 && math.Abs(ll-prevLL) < opts.Tol {
			best.Converged = true
			log.Lvl1(time.Now().Format(time.StampMilli), "Map converged after", it, "iterations, loglik", ll, time.Since(start))
			return best, nil
		}
		prevLL = ll

		if err := ctx.Err(); err != nil {
			return best, err
		}

		next, err := estimate(ctx, est, gamma, inds, opts.Threads)
		if err != nil {
			return best, fmt.Errorf("iteration %d: %w", it, err)
		}
		for i := range next {
			next[i] = clamp(next[i], lo, hi)
		}
		cur = next
	}

	diag.Warningf(opts.Sink, "Didn't converge after %d iterations; returning best map (loglik %g)", opts.MaxIterations, best.LogLik)
	return best, nil
}

// estimate runs the estimator on every interval. The intervals are
// independent, so they are spread over up to threads goroutines.
func estimate(ctx context.Context, est Estimator, gamma [][]*mat.Dense, inds []*cross.Context, threads int) ([]float64, error) {
	out := make([]float64, len(gamma))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for iv := range gamma {
		iv := iv
		g.Go(func() error {
			r, err := est.EstRecFrac(gamma[iv], inds)
			if err != nil {
				return fmt.Errorf("interval %d: %w", iv+1, err)
			}
			out[iv] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
