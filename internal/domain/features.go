package domain

import "time"

// FeatureRow is an Observation enriched with engineered time-series features and
// the next-day target. Nil pointers are missing values.
type FeatureRow struct {
	Observation

	NextDay         *time.Time
	NextMatchday    *time.Time
	DaysToNext      *float64
	MVNextDay       *float64
	MVTarget        *float64
	MVTargetClipped *float64

	MVChange1D       *float64
	MVTrend1D        float64
	MVChange3D       float64
	MVVol3D          float64
	MVTrend7D        float64
	MarketDivergence float64
}

// FeatureNames is the fixed model input vector, in order.
var FeatureNames = []string{
	"p",
	"mv",
	"days_to_next",
	"mv_change_1d",
	"mv_trend_1d",
	"mv_change_3d",
	"mv_vol_3d",
	"mv_trend_7d",
	"market_divergence",
}

// TargetName is the regression target column.
const TargetName = "mv_target_clipped"

// FeatureVector returns the model inputs in FeatureNames order.
// Missing values are NaN.
func (r *FeatureRow) FeatureVector() []float64 {
	return []float64{
		valueOrNaN(r.Points),
		valueOrNaN(r.MarketValue),
		valueOrNaN(r.DaysToNext),
		valueOrNaN(r.MVChange1D),
		r.MVTrend1D,
		r.MVChange3D,
		r.MVVol3D,
		r.MVTrend7D,
		r.MarketDivergence,
	}
}

// Target returns the clipped target, NaN when missing.
func (r *FeatureRow) Target() float64 {
	return valueOrNaN(r.MVTargetClipped)
}

// FeatureSet is the output of one feature engine pass.
type FeatureSet struct {
	// Historical rows are settled and carry a complete target.
	Historical []FeatureRow
	// Live rows are on or after the effective cutoff date.
	Live []FeatureRow
	// EffectiveDate is the boundary date used for the partition.
	EffectiveDate time.Time
	// ClipLower and ClipUpper are the IQR bounds applied to mv_target.
	ClipLower float64
	ClipUpper float64
}
