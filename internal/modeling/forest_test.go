package modeling

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData returns y = 100 when x0 > 0.5 else -100, with a noise feature.
func stepData(n int, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, 1))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		a, b := rng.Float64(), rng.Float64()
		x[i] = []float64{a, b, float64(i % 3), 0}
		if a > 0.5 {
			y[i] = 100
		} else {
			y[i] = -100
		}
	}
	return x, y
}

func smallTrainer() *Trainer {
	return NewTrainer(Params{Trees: 25, Seed: 7}, zerolog.Nop())
}

func TestFit_LearnsStepFunction(t *testing.T) {
	x, y := stepData(400, 1)
	forest, err := smallTrainer().Fit(context.Background(), x, y)
	require.NoError(t, err)
	assert.Equal(t, 25, forest.Trees())

	hi, err := forest.Predict([]float64{0.9, 0.5, 1, 0})
	require.NoError(t, err)
	lo, err := forest.Predict([]float64{0.1, 0.5, 1, 0})
	require.NoError(t, err)
	assert.Greater(t, hi, 50.0)
	assert.Less(t, lo, -50.0)
}

func TestFit_Deterministic(t *testing.T) {
	x, y := stepData(200, 2)
	a, err := NewTrainer(Params{Trees: 20, Seed: 3, Parallelism: 1}, zerolog.Nop()).Fit(context.Background(), x, y)
	require.NoError(t, err)
	b, err := NewTrainer(Params{Trees: 20, Seed: 3, Parallelism: 8}, zerolog.Nop()).Fit(context.Background(), x, y)
	require.NoError(t, err)

	pa, err := a.PredictAll(x)
	require.NoError(t, err)
	pb, err := b.PredictAll(x)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestFit_Errors(t *testing.T) {
	tr := smallTrainer()
	ctx := context.Background()

	_, err := tr.Fit(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyTrainingSet)

	_, err = tr.Fit(ctx, [][]float64{{1}, {2}}, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = tr.Fit(ctx, [][]float64{{1, 2}, {2}}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = tr.Fit(ctx, [][]float64{{math.NaN()}, {2}}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFit_Cancelled(t *testing.T) {
	x, y := stepData(50, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := smallTrainer().Fit(ctx, x, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredict_NotFitted(t *testing.T) {
	var f *Forest
	_, err := f.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = (&Forest{}).Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestPredict_WrongWidth(t *testing.T) {
	x, y := stepData(50, 5)
	forest, err := smallTrainer().Fit(context.Background(), x, y)
	require.NoError(t, err)
	_, err = forest.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPredict_NaNFollowsLargerChild(t *testing.T) {
	tr := &tree{nodes: []node{
		{feature: 0, threshold: 0.5, left: 1, right: 2, samples: 10},
		{left: -1, right: -1, value: -1, samples: 3},
		{left: -1, right: -1, value: 1, samples: 7},
	}}
	assert.Equal(t, 1.0, tr.predict([]float64{math.NaN()}))
	assert.Equal(t, -1.0, tr.predict([]float64{0.2}))

	x, y := stepData(200, 6)
	forest, err := smallTrainer().Fit(context.Background(), x, y)
	require.NoError(t, err)
	v, err := forest.Predict([]float64{math.NaN(), 0.5, 1, 0})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v))
}

func TestGrowTree_RespectsLimits(t *testing.T) {
	x, y := stepData(300, 8)
	sample := make([]int, len(x))
	for i := range sample {
		sample[i] = i
	}
	params := treeParams{maxDepth: 3, minSamplesSplit: 5, minSamplesLeaf: 20, maxFeatures: 4}
	tr := growTree(x, y, sample, params, rand.New(rand.NewPCG(1, 1)))

	assert.LessOrEqual(t, tr.depth(), 3)
	for _, n := range tr.nodes {
		if n.left < 0 {
			assert.GreaterOrEqual(t, n.samples, 20)
		}
	}
}

func TestGrowTree_PureNodeIsLeaf(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	y := []float64{5, 5, 5, 5, 5, 5}
	tr := growTree(x, y, []int{0, 1, 2, 3, 4, 5}, treeParams{maxDepth: 20, minSamplesSplit: 2, minSamplesLeaf: 1, maxFeatures: 1}, rand.New(rand.NewPCG(1, 1)))
	require.Len(t, tr.nodes, 1)
	assert.Equal(t, 5.0, tr.nodes[0].value)
}
