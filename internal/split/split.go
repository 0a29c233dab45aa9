// Package split performs the chronological train/test split.
package split

import (
	"errors"
	"math"
	"sort"
	"time"

	"kickbase-market-lab/internal/domain"
)

// DefaultTrainFraction is the share of rows before the split date.
const DefaultTrainFraction = 0.75

// ErrEmpty is returned when there are no rows to split.
var ErrEmpty = errors.New("no rows to split")

// Dataset is a feature matrix with its targets.
type Dataset struct {
	X    [][]float64
	Y    []float64
	Rows []domain.FeatureRow
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Y) }

// Result holds both halves of a split.
type Result struct {
	Train     Dataset
	Test      Dataset
	SplitDate time.Time
}

// Chronological sorts rows by (date, player) and splits at the date found at
// index floor(fraction*n). Every row dated before it goes to train, the rest
// to test, so no date straddles both halves.
func Chronological(rows []domain.FeatureRow, fraction float64) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	if fraction <= 0 || fraction >= 1 {
		fraction = DefaultTrainFraction
	}

	sorted := append([]domain.FeatureRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].PlayerID < sorted[j].PlayerID
	})

	idx := int(math.Floor(fraction * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	splitDate := sorted[idx].Date

	res := &Result{SplitDate: splitDate}
	for i := range sorted {
		r := sorted[i]
		if r.Date.Before(splitDate) {
			res.Train.add(r)
		} else {
			res.Test.add(r)
		}
	}
	return res, nil
}

func (d *Dataset) add(r domain.FeatureRow) {
	d.X = append(d.X, r.FeatureVector())
	d.Y = append(d.Y, r.Target())
	d.Rows = append(d.Rows, r)
}
