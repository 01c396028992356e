package hmm

import (
	"context"
	"math"
	"testing"

	"github.com/hhcho/crosshmm/cross"
	"github.com/hhcho/crosshmm/geno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func newModel(t *testing.T, typ cross.Type, data *Data, errorProb float64) *Model {
	t.Helper()
	c, err := cross.New(typ)
	require.NoError(t, err)
	m, err := New(c, data, errorProb, WithThreads(2))
	require.NoError(t, err)
	return m
}

func riselfData(t *testing.T) *Data {
	t.Helper()
	g := [][]int{
		{geno.A, geno.A, geno.B, geno.B},
		{geno.B, geno.Missing, geno.B, geno.A},
		{geno.A, geno.B, geno.Missing, geno.A},
	}
	inds, err := cross.NewContexts(false, nil, nil, len(g))
	require.NoError(t, err)
	return &Data{Geno: g, Inds: inds}
}

// bruteLogLik sums over every genotype path of one individual.
func bruteLogLik(t *testing.T, m *Model, ind int, recFrac []float64) float64 {
	t.Helper()
	c := m.cross
	ctx := m.data.Inds[ind]
	obs := m.data.Geno[ind]
	gens := c.PossibleGen(ctx)

	var terms []float64
	path := make([]int, len(obs))
	var walk func(mar int, lp float64)
	walk = func(mar int, lp float64) {
		if mar == len(obs) {
			terms = append(terms, lp)
			return
		}
		for _, g := range gens {
			path[mar] = g
			var step float64
			var err error
			if mar == 0 {
				step, err = c.Init(g, ctx)
			} else {
				step, err = c.Step(path[mar-1], g, recFrac[mar-1], ctx)
			}
			require.NoError(t, err)
			e, err := c.Emit(obs[mar], g, m.errorProb, m.fgCols[mar], ctx)
			require.NoError(t, err)
			walk(mar+1, lp+step+e)
		}
	}
	walk(0, 0)
	return floats.LogSumExp(terms)
}

func TestLogLikMatchesEnumeration(t *testing.T) {
	m := newModel(t, cross.RISelf, riselfData(t), 0.02)
	rf := []float64{0.05, 0.2, 0.1}

	ll, err := m.LogLik(context.Background(), rf)
	require.NoError(t, err)

	var want float64
	for i := range m.data.Geno {
		want += bruteLogLik(t, m, i, rf)
	}
	assert.InDelta(t, want, ll, 1e-10)
}

func TestGenoProbColumnsSumToOne(t *testing.T) {
	m := newModel(t, cross.RISelf, riselfData(t), 0.02)
	probs, err := m.GenoProb(context.Background(), []float64{0.05, 0.2, 0.1})
	require.NoError(t, err)
	require.Len(t, probs, 3)

	for _, p := range probs {
		r, c := p.Dims()
		assert.Equal(t, 2, r)
		assert.Equal(t, 4, c)
		for mar := 0; mar < c; mar++ {
			assert.InDelta(t, 1, mat.Sum(p.ColView(mar)), 1e-12)
		}
	}
	// first individual is AA at marker 1 with high confidence
	assert.Greater(t, probs[0].At(0, 0), 0.95)
}

func TestPairPosteriorsMarginals(t *testing.T) {
	m := newModel(t, cross.RISelf, riselfData(t), 0.02)
	rf := []float64{0.05, 0.2, 0.1}
	ctx := context.Background()

	gamma, ll, err := m.PairPosteriors(ctx, rf)
	require.NoError(t, err)
	probs, err := m.GenoProb(ctx, rf)
	require.NoError(t, err)
	wantLL, err := m.LogLik(ctx, rf)
	require.NoError(t, err)
	assert.InDelta(t, wantLL, ll, 1e-12)

	require.Len(t, gamma, 3)
	for iv := range gamma {
		require.Len(t, gamma[iv], 3)
		for ind, g := range gamma[iv] {
			assert.InDelta(t, 1, mat.Sum(g), 1e-12)
			for a := 0; a < 2; a++ {
				left := mat.Sum(g.RowView(a))
				right := mat.Sum(g.ColView(a))
				assert.InDelta(t, probs[ind].At(a, iv), left, 1e-12)
				assert.InDelta(t, probs[ind].At(a, iv+1), right, 1e-12)
			}
		}
	}
}

func TestViterbiFollowsCleanData(t *testing.T) {
	g := [][]int{{geno.A, geno.A, geno.B, geno.B, geno.B}}
	inds, err := cross.NewContexts(false, nil, nil, 1)
	require.NoError(t, err)
	m := newModel(t, cross.DH, &Data{Geno: g, Inds: inds}, 0.001)

	paths, err := m.Viterbi(context.Background(), []float64{0.1, 0.1, 0.1, 0.1})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 1, 2, 2, 2}}, paths)
}

func TestViterbiSmoothsSingleError(t *testing.T) {
	g := [][]int{{geno.A, geno.A, geno.B, geno.A, geno.A}}
	inds, err := cross.NewContexts(false, nil, nil, 1)
	require.NoError(t, err)
	m := newModel(t, cross.DH, &Data{Geno: g, Inds: inds}, 0.01)

	// tightly linked markers: a lone B is a genotyping error
	paths, err := m.Viterbi(context.Background(), []float64{1e-4, 1e-4, 1e-4, 1e-4})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 1, 1}, paths[0])
}

func TestBackcrossXMales(t *testing.T) {
	g := [][]int{
		{geno.A, geno.H, geno.H},
		{geno.A, geno.B, geno.B},
	}
	inds, err := cross.NewContexts(true, []bool{true, false}, nil, 2)
	require.NoError(t, err)
	m := newModel(t, cross.BC, &Data{Geno: g, Inds: inds}, 0.01)
	rf := []float64{0.1, 0.1}

	probs, err := m.GenoProb(context.Background(), rf)
	require.NoError(t, err)
	for _, p := range probs {
		r, _ := p.Dims()
		assert.Equal(t, 4, r)
	}
	// the female never occupies the male states and vice versa
	assert.Zero(t, probs[0].At(2, 0))
	assert.Zero(t, probs[1].At(0, 0))
	assert.InDelta(t, 1, probs[1].At(2, 0)+probs[1].At(3, 0), 1e-12)

	paths, err := m.Viterbi(context.Background(), rf)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, paths[0])
	assert.Equal(t, []int{3, 4, 4}, paths[1])
}

func TestRISelf8UsesFounderPanel(t *testing.T) {
	fg := [][]int{
		{1, 1, 3},
		{3, 3, 1},
		{1, 3, 1},
		{3, 1, 3},
		{1, 1, 1},
		{3, 3, 3},
		{1, 3, 3},
		{3, 1, 1},
	}
	g := [][]int{{geno.A, geno.A, geno.B}}
	inds, err := cross.NewContexts(false, nil, [][]int{{1, 2, 3, 4, 5, 6, 7, 8}}, 1)
	require.NoError(t, err)
	m := newModel(t, cross.RISelf8, &Data{Geno: g, FounderGeno: fg, Inds: inds}, 0.001)

	probs, err := m.GenoProb(context.Background(), []float64{0.01, 0.01})
	require.NoError(t, err)
	// founder 1 alone carries A, A, B
	assert.Greater(t, probs[0].At(0, 1), 0.9)
}

func TestNewChecksInput(t *testing.T) {
	c, err := cross.New(cross.RISelf8)
	require.NoError(t, err)
	inds, err := cross.NewContexts(false, nil, [][]int{{1, 2, 3, 4, 5, 6, 7, 8}}, 1)
	require.NoError(t, err)

	_, err = New(c, &Data{Geno: [][]int{{1, 3}}, Inds: inds}, 0.01)
	assert.ErrorIs(t, err, ErrFounderGeno)

	_, err = New(c, &Data{}, 0.01)
	assert.ErrorIs(t, err, ErrDimension)

	_, err = New(c, &Data{Geno: [][]int{{1, 3}, {1}}, Inds: append(inds, inds...)}, 0.01)
	assert.ErrorIs(t, err, ErrDimension)

	_, err = New(c, &Data{Geno: [][]int{{1, 3}}, Inds: inds}, 1)
	assert.ErrorIs(t, err, cross.ErrProbability)
}

func TestMapLengthChecked(t *testing.T) {
	m := newModel(t, cross.RISelf, riselfData(t), 0.02)
	_, err := m.LogLik(context.Background(), []float64{0.1})
	assert.ErrorIs(t, err, ErrDimension)
	_, _, err = m.PairPosteriors(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestInvalidObservationSurfaces(t *testing.T) {
	data := riselfData(t)
	data.Geno[1][2] = geno.H
	m := newModel(t, cross.RISelf, data, 0.02)
	_, err := m.LogLik(context.Background(), []float64{0.1, 0.1, 0.1})
	assert.ErrorIs(t, err, cross.ErrInvalidGenotype)
}

func TestZeroLikelihood(t *testing.T) {
	g := [][]int{{geno.A, geno.B}}
	inds, err := cross.NewContexts(false, nil, nil, 1)
	require.NoError(t, err)
	m := newModel(t, cross.DH, &Data{Geno: g, Inds: inds}, 0)

	_, err = m.LogLik(context.Background(), []float64{0})
	assert.ErrorIs(t, err, ErrZeroLikelihood)

	ll, err := m.LogLik(context.Background(), []float64{0.25})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.5*0.25), ll, 1e-12)
}

func TestCancelledContext(t *testing.T) {
	m := newModel(t, cross.RISelf, riselfData(t), 0.02)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.LogLik(ctx, []float64{0.1, 0.1, 0.1})
	assert.ErrorIs(t, err, context.Canceled)
}
