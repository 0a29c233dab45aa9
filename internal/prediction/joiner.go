package prediction

import (
	"sort"
	"time"

	"kickbase-market-lab/internal/cutoff"
	"kickbase-market-lab/internal/domain"
)

// DefaultMinPredictedGain is the market filter threshold.
const DefaultMinPredictedGain = 5000

// Joiner combines predictions with live market and squad snapshots.
type Joiner struct {
	marketClose cutoff.Boundary
	minGain     float64
}

// NewJoiner creates a Joiner. Market listings are kept when their predicted
// gain is strictly above minGain.
func NewJoiner(marketClose cutoff.Boundary, minGain float64) *Joiner {
	return &Joiner{marketClose: marketClose, minGain: minGain}
}

// Market joins predictions with market listings by player id.
// A listing is expiring today when it ends before the next market close.
func (j *Joiner) Market(preds []domain.Prediction, listings []domain.MarketListing, now time.Time) []domain.MarketRecommendation {
	latest := latestByPlayer(preds)
	untilClose := Round(j.marketClose.HoursUntilNext(now), 2)

	out := make([]domain.MarketRecommendation, 0, len(listings))
	for _, l := range listings {
		p, ok := latest[l.PlayerID]
		if !ok || p.PredictedMVTarget <= j.minGain {
			continue
		}
		hours := Round(l.ExpirySeconds/3600, 2)
		out = append(out, domain.MarketRecommendation{
			PlayerID:          p.PlayerID,
			LastName:          p.LastName,
			TeamName:          p.TeamName,
			MarketValue:       p.MarketValue,
			MVChangeYesterday: p.MVChange1D,
			PredictedMVTarget: p.PredictedMVTarget,
			S11Prob:           l.StartingProb,
			HoursToExp:        hours,
			ExpiringToday:     hours < untilClose,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].PredictedMVTarget != out[b].PredictedMVTarget {
			return out[a].PredictedMVTarget > out[b].PredictedMVTarget
		}
		return out[a].PlayerID < out[b].PlayerID
	})
	return out
}

// Squad joins predictions with the user's squad by player id.
func (j *Joiner) Squad(preds []domain.Prediction, slots []domain.SquadSlot) []domain.SquadRecommendation {
	latest := latestByPlayer(preds)

	out := make([]domain.SquadRecommendation, 0, len(slots))
	for _, s := range slots {
		p, ok := latest[s.PlayerID]
		if !ok {
			continue
		}
		out = append(out, domain.SquadRecommendation{
			PlayerID:          p.PlayerID,
			LastName:          p.LastName,
			TeamName:          p.TeamName,
			MarketValue:       p.MarketValue,
			MVChangeYesterday: p.MVChange1D,
			PredictedMVTarget: p.PredictedMVTarget,
			S11Prob:           s.StartingProb,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].PredictedMVTarget != out[b].PredictedMVTarget {
			return out[a].PredictedMVTarget > out[b].PredictedMVTarget
		}
		return out[a].PlayerID < out[b].PlayerID
	})
	return out
}

// latestByPlayer keeps each player's most recent prediction.
func latestByPlayer(preds []domain.Prediction) map[string]domain.Prediction {
	latest := make(map[string]domain.Prediction, len(preds))
	for _, p := range preds {
		if cur, ok := latest[p.PlayerID]; !ok || p.Date.After(cur.Date) {
			latest[p.PlayerID] = p
		}
	}
	return latest
}
