package modeling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"kickbase-market-lab/internal/domain"
)

// Evaluate scores predictions against actual targets.
// DirectionalPercent is the share of rows whose prediction has the same sign
// as the actual value, in percent.
func Evaluate(actual, predicted []float64) (domain.Evaluation, error) {
	if len(actual) == 0 {
		return domain.Evaluation{}, fmt.Errorf("%w: nothing to evaluate", ErrInvalidInput)
	}
	if len(actual) != len(predicted) {
		return domain.Evaluation{}, fmt.Errorf("%w: %d actual, %d predicted", ErrInvalidInput, len(actual), len(predicted))
	}

	var sq, abs float64
	same := 0
	for i := range actual {
		d := predicted[i] - actual[i]
		sq += d * d
		abs += math.Abs(d)
		if sign(predicted[i]) == sign(actual[i]) {
			same++
		}
	}
	n := float64(len(actual))

	return domain.Evaluation{
		RMSE:               math.Sqrt(sq / n),
		MAE:                abs / n,
		R2:                 stat.RSquaredFrom(predicted, actual, nil),
		DirectionalPercent: 100 * float64(same) / n,
		TestRows:           len(actual),
	}, nil
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
