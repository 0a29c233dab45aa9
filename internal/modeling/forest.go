// Package modeling trains and evaluates the market value regression model.
package modeling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFitted is returned when predicting with an untrained model.
	ErrNotFitted = errors.New("model not fitted")
	// ErrEmptyTrainingSet is returned when Fit receives no rows.
	ErrEmptyTrainingSet = errors.New("empty training set")
	// ErrInvalidInput is returned for ragged or non-finite inputs.
	ErrInvalidInput = errors.New("invalid model input")
)

// Params are the forest hyperparameters.
type Params struct {
	Trees           int    // Default: 500
	MaxDepth        int    // Default: 20
	MinSamplesSplit int    // Default: 5
	MinSamplesLeaf  int    // Default: 2
	Seed            uint64 // Default: 42
	Parallelism     int    // Default: GOMAXPROCS
}

// DefaultParams returns the production hyperparameters.
func DefaultParams() Params {
	return Params{
		Trees:           500,
		MaxDepth:        20,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Seed:            42,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Trees <= 0 {
		p.Trees = d.Trees
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = d.MinSamplesSplit
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if p.Parallelism <= 0 {
		p.Parallelism = runtime.GOMAXPROCS(0)
	}
	return p
}

// Forest is a fitted random forest regressor. It is immutable and safe for
// concurrent use.
type Forest struct {
	trees    []*tree
	features int
}

// Trainer fits forests.
type Trainer struct {
	params Params
	logger zerolog.Logger
}

// NewTrainer creates a Trainer. Zero-valued params fall back to DefaultParams.
func NewTrainer(params Params, logger zerolog.Logger) *Trainer {
	return &Trainer{params: params.withDefaults(), logger: logger}
}

// Fit grows the forest. Each tree draws a bootstrap sample and considers
// sqrt(features) candidate features per split. Trees are seeded from
// Params.Seed and their index, so results do not depend on scheduling.
func (t *Trainer) Fit(ctx context.Context, x [][]float64, y []float64) (*Forest, error) {
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrInvalidInput, len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: no features", ErrInvalidInput)
	}
	for i := range x {
		if len(x[i]) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrInvalidInput, i, len(x[i]), width)
		}
		if !finite(y[i]) {
			return nil, fmt.Errorf("%w: target %d is not finite", ErrInvalidInput, i)
		}
		for j, v := range x[i] {
			if !finite(v) {
				return nil, fmt.Errorf("%w: row %d feature %d is not finite", ErrInvalidInput, i, j)
			}
		}
	}

	params := treeParams{
		maxDepth:        t.params.MaxDepth,
		minSamplesSplit: t.params.MinSamplesSplit,
		minSamplesLeaf:  t.params.MinSamplesLeaf,
		maxFeatures:     max(1, int(math.Sqrt(float64(width)))),
	}

	forest := &Forest{trees: make([]*tree, t.params.Trees), features: width}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.params.Parallelism)
	for k := range forest.trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(t.params.Seed, uint64(k)))
			sample := make([]int, len(x))
			for i := range sample {
				sample[i] = rng.IntN(len(x))
			}
			forest.trees[k] = growTree(x, y, sample, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	maxDepth := 0
	for _, tr := range forest.trees {
		maxDepth = max(maxDepth, tr.depth())
	}
	t.logger.Info().
		Int("trees", len(forest.trees)).
		Int("rows", len(x)).
		Int("features", width).
		Int("max_depth", maxDepth).
		Msg("forest fitted")
	return forest, nil
}

// Predict returns the mean prediction of all trees for one feature vector.
func (f *Forest) Predict(x []float64) (float64, error) {
	if f == nil || len(f.trees) == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != f.features {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrInvalidInput, len(x), f.features)
	}
	var sum float64
	for _, tr := range f.trees {
		sum += tr.predict(x)
	}
	return sum / float64(len(f.trees)), nil
}

// PredictAll predicts every row of x.
func (f *Forest) PredictAll(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i := range x {
		v, err := f.Predict(x[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Trees returns the number of fitted trees.
func (f *Forest) Trees() int {
	if f == nil {
		return 0
	}
	return len(f.trees)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
