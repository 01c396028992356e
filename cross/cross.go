// Package cross implements the genotype models of experimental crosses.
//
// Each mating design is a value implementing Cross. The forward-backward
// decoder calls Init, Step and Emit to fill its per-individual matrices; map
// estimation calls EstRecFrac with the two-locus posteriors the decoder
// returns. Designs are selected by Type through New and are immutable once
// built, so a single value may be shared by any number of goroutines.
//
// All probabilities are natural-log probabilities.
package cross

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hhcho/crosshmm/diag"
	"gonum.org/v1/gonum/mat"
)

// Cross is the operation set every design implements.
type Cross interface {
	Type() Type

	// CheckGeno reports whether gen is legal. Observed values additionally
	// allow the missing and partial-call codes of package geno.
	CheckGeno(gen int, isObserved bool, c *Context) bool

	Init(trueGen int, c *Context) (float64, error)
	Emit(obsGen, trueGen int, errorProb float64, founderGeno []int, c *Context) (float64, error)
	Step(genLeft, genRight int, recFrac float64, c *Context) (float64, error)

	// PossibleGen lists the genotypes an individual may carry, in order.
	PossibleGen(c *Context) []int
	NGen(isXChr bool) int
	NAlleles() int
	NRec(genLeft, genRight int, c *Context) (int, error)

	NeedFounderGeno() bool
	// NFounders is the width of a cross-info row and the height of a founder
	// panel; zero for designs that use neither.
	NFounders() int
	GenoNames(alleles []string, isXChr bool) ([]string, error)

	// CheckHandleXChr reports whether X-specific handling is available. A
	// design without it still works, treating the X as an autosome, and says
	// so through its diagnostic sink.
	CheckHandleXChr(anyXChr bool) bool
	CheckCrossInfo(crossInfo [][]int, anyXChr bool) bool
	CheckFounderGenoSize(founderGeno [][]int, nMarkers int) bool
	CheckFounderGenoValues(founderGeno [][]int) bool

	// EstRecFrac is the closed-form M-step for one marker interval. gamma[i]
	// is the NGen x NGen joint posterior of individual i, rows indexing the
	// left genotype. The result is never negative; it is not capped at 0.5.
	EstRecFrac(gamma []*mat.Dense, inds []*Context) (float64, error)
}

// Type tags a mating design.
type Type string

const (
	BC      Type = "bc"
	DH      Type = "dh"
	RISelf  Type = "riself"
	RISib   Type = "risib"
	RISelf4 Type = "riself4"
	RISelf8 Type = "riself8"
)

func (t Type) String() string { return string(t) }

type constructor func(o options) Cross

var registry = map[Type]constructor{
	BC:      func(o options) Cross { return &backcross{o} },
	DH:      func(o options) Cross { return &doubledHaploid{o} },
	RISelf:  func(o options) Cross { return &riSelf{o} },
	RISib:   func(o options) Cross { return &riSib{o} },
	RISelf4: func(o options) Cross { return &riSelf4{o} },
	RISelf8: func(o options) Cross { return &riSelf8{o} },
}

// Types lists the registered designs in sorted order.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseType maps a name such as "riself8" to its Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// New builds the model for design t.
func New(t Type, opts ...Option) (Cross, error) {
	ctor, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
	o := options{level: ValidateFull, sink: diag.Default}
	for _, opt := range opts {
		opt(&o)
	}
	o.crossType = t
	return ctor(o), nil
}

// ValidationLevel controls how much checking the probability functions do.
type ValidationLevel int

const (
	// ValidateOff trusts the caller completely.
	ValidateOff ValidationLevel = iota
	// ValidateAssert checks latent genotype codes.
	ValidateAssert
	// ValidateFull also checks observed codes, probabilities and founder
	// column lengths.
	ValidateFull
)

func (l ValidationLevel) String() string {
	switch l {
	case ValidateOff:
		return "off"
	case ValidateAssert:
		return "assert"
	case ValidateFull:
		return "full"
	}
	return fmt.Sprintf("ValidationLevel(%d)", int(l))
}

// ParseValidationLevel accepts "off", "assert" (or "assertOnly") and "full".
func ParseValidationLevel(s string) (ValidationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return ValidateOff, nil
	case "assert", "assertonly", "assert_only":
		return ValidateAssert, nil
	case "full", "":
		return ValidateFull, nil
	}
	return ValidateFull, fmt.Errorf("cross: unknown validation level %q", s)
}

// Option configures New.
type Option func(*options)

// WithValidation sets the validation level (default ValidateFull).
func WithValidation(l ValidationLevel) Option {
	return func(o *options) { o.level = l }
}

// WithSink routes diagnostics to s instead of diag.Default.
func WithSink(s diag.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

type options struct {
	crossType Type
	level     ValidationLevel
	sink      diag.Sink
}

func (o options) Type() Type { return o.crossType }

// checkTrue validates a latent genotype unless validation is off.
func (o options) checkTrue(c Cross, gen int, ctx *Context) error {
	if o.level == ValidateOff || c.CheckGeno(gen, false, ctx) {
		return nil
	}
	return &GenotypeError{Cross: o.crossType, Gen: gen}
}

// checkEmit runs the extra checks of ValidateFull for Emit.
func (o options) checkEmit(c Cross, obsGen int, errorProb float64, ctx *Context) error {
	if o.level < ValidateFull {
		return nil
	}
	if !c.CheckGeno(obsGen, true, ctx) {
		return &GenotypeError{Cross: o.crossType, Gen: obsGen, Observed: true}
	}
	if !(errorProb >= 0 && errorProb < 1) {
		return fmt.Errorf("%w: error_prob %g", ErrProbability, errorProb)
	}
	return nil
}

func (o options) checkRecFrac(recFrac float64) error {
	if o.level < ValidateFull || (recFrac >= 0 && recFrac <= 0.5) {
		return nil
	}
	return fmt.Errorf("%w: rec_frac %g", ErrProbability, recFrac)
}

func (o options) checkStep(c Cross, genLeft, genRight int, recFrac float64, ctx *Context) error {
	if err := o.checkTrue(c, genLeft, ctx); err != nil {
		return err
	}
	if err := o.checkTrue(c, genRight, ctx); err != nil {
		return err
	}
	return o.checkRecFrac(recFrac)
}

// ignoreCrossInfo is the cross-info check for designs that take none.
func (o options) ignoreCrossInfo(crossInfo [][]int) bool {
	for _, row := range crossInfo {
		if len(row) > 0 {
			diag.Messagef(o.sink, "cross_info provided but ignored for %s", o.crossType)
			break
		}
	}
	return true
}

// noXChr is CheckHandleXChr for designs without X chromosome support.
func (o options) noXChr(anyXChr bool, what string) bool {
	if anyXChr {
		diag.Messagef(o.sink, "X chr ignored for %s.", what)
		return false
	}
	return true
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for g := from; g <= to; g++ {
		out = append(out, g)
	}
	return out
}
