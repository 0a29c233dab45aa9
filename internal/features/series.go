package features

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"kickbase-market-lab/internal/domain"
)

const (
	volatilityWindow = 3
	divergenceWindow = 3
	trendLag         = 7
	changeLag        = 3
)

// computeLookahead fills the fields that read the next row of one player.
// Rows must be sorted by date.
func computeLookahead(rows []domain.FeatureRow) {
	n := len(rows)
	for i := 0; i < n-1; i++ {
		next := rows[i+1]
		rows[i].NextDay = domain.Ptr(next.Date)
		if next.MarketValue != nil {
			rows[i].MVNextDay = domain.Ptr(*next.MarketValue)
			if rows[i].MarketValue != nil {
				rows[i].MVTarget = domain.Ptr(*next.MarketValue - *rows[i].MarketValue)
			}
		}
	}

	// Walk backwards so each row sees the first matchday after its own block.
	var (
		following *time.Time
		blockMD   *time.Time
	)
	for i := n - 1; i >= 0; i-- {
		md := rows[i].Matchday
		if !sameDate(md, blockMD) {
			if blockMD != nil {
				following = blockMD
			}
			blockMD = md
		}
		if following == nil {
			continue
		}
		rows[i].NextMatchday = domain.Ptr(*following)
		rows[i].DaysToNext = domain.Ptr(float64(domain.DaysBetween(rows[i].Date, *following)))
	}
}

// computeLookback fills the per-player momentum and volatility features.
// Rows must be sorted by date with mv == 0 rows already removed.
func computeLookback(rows []domain.FeatureRow) {
	for i := range rows {
		mv := rows[i].MarketValue
		if i >= 1 && mv != nil && rows[i-1].MarketValue != nil {
			prev := *rows[i-1].MarketValue
			rows[i].MVChange1D = domain.Ptr(*mv - prev)
			rows[i].MVTrend1D = pctChange(*mv, prev)
		}
		if i >= changeLag && mv != nil && rows[i-changeLag].MarketValue != nil {
			rows[i].MVChange3D = *mv - *rows[i-changeLag].MarketValue
		}
		if i >= trendLag && mv != nil && rows[i-trendLag].MarketValue != nil {
			rows[i].MVTrend7D = pctChange(*mv, *rows[i-trendLag].MarketValue)
		}
		if window, ok := marketValueWindow(rows, i, volatilityWindow); ok {
			rows[i].MVVol3D = stat.StdDev(window, nil)
		}
	}
}

// computeDivergence sets market_divergence: the rolling mean of a player's
// market value relative to the mean value of every player sharing the same
// matchday on the same date. Rows without a full window get 1.
func computeDivergence(rows []domain.FeatureRow, players [][]domain.FeatureRow) {
	type key struct {
		md   int64
		date int64
	}
	keyOf := func(r *domain.FeatureRow) key {
		k := key{md: math.MinInt64, date: r.Date.Unix()}
		if r.Matchday != nil {
			k.md = r.Matchday.Unix()
		}
		return k
	}

	sums := make(map[key]float64)
	counts := make(map[key]int)
	for i := range rows {
		if mv := rows[i].MarketValue; mv != nil {
			k := keyOf(&rows[i])
			sums[k] += *mv
			counts[k]++
		}
	}

	for _, p := range players {
		ratios := make([]float64, len(p))
		for i := range p {
			ratios[i] = math.NaN()
			mv := p[i].MarketValue
			if mv == nil {
				continue
			}
			k := keyOf(&p[i])
			mean := sums[k] / float64(counts[k])
			if mean != 0 {
				ratios[i] = *mv / mean
			}
		}
		for i := range p {
			p[i].MarketDivergence = 1
			if i+1 < divergenceWindow {
				continue
			}
			window := ratios[i+1-divergenceWindow : i+1]
			if hasNaN(window) {
				continue
			}
			p[i].MarketDivergence = stat.Mean(window, nil)
		}
	}
}

// marketValueWindow returns the size values ending at i, false when any is missing.
func marketValueWindow(rows []domain.FeatureRow, i, size int) ([]float64, bool) {
	if i+1 < size {
		return nil, false
	}
	window := make([]float64, 0, size)
	for j := i + 1 - size; j <= i; j++ {
		if rows[j].MarketValue == nil {
			return nil, false
		}
		window = append(window, *rows[j].MarketValue)
	}
	return window, true
}

// pctChange returns (cur-prev)/prev with ±Inf and NaN coerced to 0.
func pctChange(cur, prev float64) float64 {
	v := (cur - prev) / prev
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
