package cross

import (
	"errors"
	"math"
	"testing"

	"github.com/hhcho/crosshmm/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var identityOrder = []int{1, 2, 3, 4, 5, 6, 7, 8}

func newCross(t *testing.T, typ Type, opts ...Option) Cross {
	t.Helper()
	c, err := New(typ, opts...)
	require.NoError(t, err)
	return c
}

// contextFor returns a context suited to the design: a cross order when the
// design has founders, nothing otherwise.
func contextFor(t *testing.T, c Cross, isXChr, isFemale bool) *Context {
	t.Helper()
	var info []int
	if n := c.NFounders(); n > 0 {
		info = seq(1, n)
	}
	ctx, err := NewContext(isXChr, isFemale, info)
	require.NoError(t, err)
	return ctx
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(" " + string(typ) + " ")
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("f2")
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = New(Type("do"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestParseValidationLevel(t *testing.T) {
	tests := map[string]ValidationLevel{
		"off":        ValidateOff,
		"assertOnly": ValidateAssert,
		"assert":     ValidateAssert,
		"FULL":       ValidateFull,
		"":           ValidateFull,
	}
	for in, want := range tests {
		got, err := ParseValidationLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseValidationLevel("paranoid")
	assert.Error(t, err)
}

func TestTopology(t *testing.T) {
	topo, err := NewTopology(identityOrder)
	require.NoError(t, err)
	assert.Equal(t, 8, topo.N())
	assert.Equal(t, Identical, topo.Relation(3, 3))
	assert.Equal(t, Sibling, topo.Relation(1, 2))
	assert.Equal(t, Sibling, topo.Relation(8, 7))
	assert.Equal(t, NonSibling, topo.Relation(2, 3))
	assert.Equal(t, NonSibling, topo.Relation(1, 8))

	// founders 3 and 1 were crossed first, then 8 and 2
	topo, err = NewTopology([]int{3, 1, 8, 2, 4, 5, 7, 6})
	require.NoError(t, err)
	assert.Equal(t, 0, topo.Position(3))
	assert.Equal(t, Sibling, topo.Relation(1, 3))
	assert.Equal(t, Sibling, topo.Relation(2, 8))
	assert.Equal(t, NonSibling, topo.Relation(1, 2))
	assert.Equal(t, Sibling, topo.Relation(6, 7))

	_, err = NewTopology([]int{1, 1, 3, 4, 5, 6, 7, 8})
	assert.ErrorIs(t, err, ErrCrossInfo)
	_, err = NewTopology(nil)
	assert.ErrorIs(t, err, ErrCrossInfo)

	_, err = NewContexts(false, nil, [][]int{identityOrder, {0, 2, 3, 4, 5, 6, 7, 8}}, 2)
	assert.ErrorIs(t, err, ErrCrossInfo)
	_, err = NewContexts(false, nil, [][]int{identityOrder}, 2)
	assert.ErrorIs(t, err, ErrDimension)
}

// Every row of the transition matrix must sum to one, for every design,
// chromosome type and sex the design supports.
func TestStepRowsSumToOne(t *testing.T) {
	for _, typ := range Types() {
		c := newCross(t, typ)
		for _, isX := range []bool{false, true} {
			if isX && typ != BC {
				continue
			}
			for _, female := range []bool{true, false} {
				ctx := contextFor(t, c, isX, female)
				gens := c.PossibleGen(ctx)

				initSum := 0.0
				for _, g := range gens {
					lp, err := c.Init(g, ctx)
					require.NoError(t, err)
					initSum += math.Exp(lp)
				}
				assert.InDeltaf(t, 1.0, initSum, 1e-12, "%s init", typ)

				for _, r := range []float64{0.001, 0.1, 0.25, 0.5} {
					for _, gl := range gens {
						sum := 0.0
						for _, gr := range gens {
							lp, err := c.Step(gl, gr, r, ctx)
							require.NoError(t, err)
							sum += math.Exp(lp)
						}
						assert.InDeltaf(t, 1.0, sum, 1e-12, "%s x=%v female=%v r=%g gl=%d", typ, isX, female, r, gl)
					}
				}
			}
		}
	}
}

func TestNRec(t *testing.T) {
	for _, typ := range Types() {
		c := newCross(t, typ)
		ctx := contextFor(t, c, false, true)
		for _, gl := range c.PossibleGen(ctx) {
			for _, gr := range c.PossibleGen(ctx) {
				n, err := c.NRec(gl, gr, ctx)
				require.NoError(t, err)
				if gl == gr {
					assert.Equal(t, 0, n)
				} else {
					assert.Greater(t, n, 0)
				}
			}
		}
	}
}

func TestEmitMissingIsUninformative(t *testing.T) {
	for _, typ := range Types() {
		c := newCross(t, typ)
		ctx := contextFor(t, c, false, true)
		var fg []int
		if c.NeedFounderGeno() {
			fg = make([]int, c.NFounders())
			for i := range fg {
				fg[i] = 1 + 2*(i%2)
			}
		}
		for _, g := range c.PossibleGen(ctx) {
			for _, e := range []float64{0, 0.002, 0.1, 0.9} {
				lp, err := c.Emit(0, g, e, fg, ctx)
				require.NoError(t, err)
				assert.Equal(t, 0.0, lp)
			}
		}
	}
}

// The model's own two-locus distribution at r must give back r.
func TestEstRecFracRecoversTruth(t *testing.T) {
	for _, typ := range Types() {
		c := newCross(t, typ)
		for _, r := range []float64{0.01, 0.1, 0.3, 0.45} {
			ctx := contextFor(t, c, false, true)
			g := jointGamma(t, c, r, ctx)
			est, err := c.EstRecFrac([]*mat.Dense{g, g}, []*Context{ctx, ctx})
			require.NoError(t, err)
			assert.InDeltaf(t, r, est, 1e-9, "%s r=%g", typ, r)
		}
	}
}

func TestEstRecFracBackcrossX(t *testing.T) {
	c := newCross(t, BC)
	female := contextFor(t, c, true, true)
	male := contextFor(t, c, true, false)
	r := 0.2
	est, err := c.EstRecFrac(
		[]*mat.Dense{jointGamma(t, c, r, female), jointGamma(t, c, r, male)},
		[]*Context{female, male})
	require.NoError(t, err)
	assert.InDelta(t, r, est, 1e-12)
}

func TestEstRecFracDimensions(t *testing.T) {
	c := newCross(t, RISelf8)
	ctx := contextFor(t, c, false, true)

	_, err := c.EstRecFrac(nil, nil)
	assert.ErrorIs(t, err, ErrDimension)

	_, err = c.EstRecFrac([]*mat.Dense{mat.NewDense(4, 4, nil)}, []*Context{ctx})
	assert.ErrorIs(t, err, ErrDimension)

	g := jointGamma(t, c, 0.1, ctx)
	_, err = c.EstRecFrac([]*mat.Dense{g}, []*Context{ctx, ctx})
	assert.ErrorIs(t, err, ErrDimension)

	_, err = c.EstRecFrac([]*mat.Dense{g}, []*Context{{}})
	assert.ErrorIs(t, err, ErrCrossInfo)
}

// jointGamma fills the NGen x NGen joint probability exp(init + step).
func jointGamma(t *testing.T, c Cross, r float64, ctx *Context) *mat.Dense {
	t.Helper()
	n := c.NGen(ctx.xchr())
	g := mat.NewDense(n, n, nil)
	for _, gl := range c.PossibleGen(ctx) {
		li, err := c.Init(gl, ctx)
		require.NoError(t, err)
		for _, gr := range c.PossibleGen(ctx) {
			ls, err := c.Step(gl, gr, r, ctx)
			require.NoError(t, err)
			g.Set(gl-1, gr-1, math.Exp(li+ls))
		}
	}
	return g
}

func TestValidationLevels(t *testing.T) {
	full := newCross(t, RISelf8, WithValidation(ValidateFull))
	assertOnly := newCross(t, RISelf8, WithValidation(ValidateAssert))
	off := newCross(t, RISelf8, WithValidation(ValidateOff))
	ctx := contextFor(t, full, false, true)
	fg := []int{1, 1, 1, 1, 3, 3, 3, 3}

	_, err := full.Init(9, ctx)
	var gerr *GenotypeError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, 9, gerr.Gen)
	assert.False(t, gerr.Observed)
	assert.ErrorIs(t, err, ErrInvalidGenotype)

	_, err = assertOnly.Step(0, 1, 0.1, ctx)
	assert.ErrorIs(t, err, ErrInvalidGenotype)
	_, err = assertOnly.NRec(1, 9, ctx)
	assert.ErrorIs(t, err, ErrInvalidGenotype)

	lp, err := off.Init(9, ctx)
	assert.NoError(t, err)
	assert.Equal(t, -math.Log(8), lp)

	// observed codes and probabilities are only checked at full
	_, err = full.Emit(7, 1, 0.01, fg, ctx)
	require.True(t, errors.As(err, &gerr))
	assert.True(t, gerr.Observed)
	_, err = assertOnly.Emit(7, 1, 0.01, fg, ctx)
	assert.NoError(t, err)

	_, err = full.Emit(1, 1, 1.0, fg, ctx)
	assert.ErrorIs(t, err, ErrProbability)
	_, err = full.Step(1, 2, 0.7, ctx)
	assert.ErrorIs(t, err, ErrProbability)
	_, err = assertOnly.Step(1, 2, 0.7, ctx)
	assert.NoError(t, err)

	_, err = full.Emit(1, 1, 0.01, fg[:4], ctx)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestNoXChrIsDiagnosticOnly(t *testing.T) {
	for _, typ := range []Type{DH, RISelf, RISib, RISelf4, RISelf8} {
		rec := &diag.Recorder{}
		c := newCross(t, typ, WithSink(rec))
		assert.True(t, c.CheckHandleXChr(false))
		assert.Empty(t, rec.Messages())
		assert.False(t, c.CheckHandleXChr(true))
		require.Len(t, rec.Messages(), 1, typ)
		assert.Contains(t, rec.Messages()[0], "X chr ignored")
	}
	assert.True(t, newCross(t, BC).CheckHandleXChr(true))
}

func TestIgnoredCrossInfo(t *testing.T) {
	rec := &diag.Recorder{}
	c := newCross(t, RISib, WithSink(rec))
	assert.True(t, c.CheckCrossInfo(nil, false))
	assert.Empty(t, rec.Messages())
	assert.True(t, c.CheckCrossInfo([][]int{{1, 2}}, false))
	assert.Len(t, rec.Messages(), 1)
}

func TestBackcrossStateSpace(t *testing.T) {
	c := newCross(t, BC)
	auto := contextFor(t, c, false, false)
	female := contextFor(t, c, true, true)
	male := contextFor(t, c, true, false)

	assert.Equal(t, 2, c.NGen(false))
	assert.Equal(t, 4, c.NGen(true))
	assert.Equal(t, []int{1, 2}, c.PossibleGen(auto))
	assert.Equal(t, []int{1, 2}, c.PossibleGen(female))
	assert.Equal(t, []int{3, 4}, c.PossibleGen(male))
	assert.False(t, c.NeedFounderGeno())

	_, err := c.Init(1, male)
	assert.ErrorIs(t, err, ErrInvalidGenotype)

	lp, err := c.Emit(3, 4, 0.01, nil, male)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.99), lp, 1e-15)
	lp, err = c.Emit(2, 1, 0.01, nil, female)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.01), lp, 1e-15)

	_, err = c.Emit(2, 3, 0.01, nil, male)
	assert.ErrorIs(t, err, ErrInvalidGenotype)

	names, err := c.GenoNames([]string{"B", "R"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"BB", "BR", "BY", "RY"}, names)
}

func TestGenoNames(t *testing.T) {
	c := newCross(t, RISelf4)
	names, err := c.GenoNames([]string{"A", "B", "C", "D"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "BB", "CC", "DD"}, names)

	_, err = c.GenoNames([]string{"A", "B"}, false)
	assert.ErrorIs(t, err, ErrAlleles)
}

func TestRISelf4EmitMatchesFounderCall(t *testing.T) {
	c := newCross(t, RISelf4)
	ctx := contextFor(t, c, false, true)
	fg := []int{1, 3, 0, 1}
	e := 0.02

	tests := []struct {
		obs, gen int
		want     float64
	}{
		{1, 1, math.Log(1 - e)},
		{3, 2, math.Log(1 - e)},
		{3, 1, math.Log(e)},
		{4, 1, math.Log(e)}, // not B against founder A
		{5, 2, math.Log(e)}, // not A against founder B
		{2, 4, math.Log(e)},
		{4, 3, 0}, // founder missing
		{0, 2, 0},
	}
	for _, tc := range tests {
		lp, err := c.Emit(tc.obs, tc.gen, e, fg, ctx)
		require.NoError(t, err)
		assert.InDeltaf(t, tc.want, lp, 1e-15, "Emit(%d, %d)", tc.obs, tc.gen)
	}
}
