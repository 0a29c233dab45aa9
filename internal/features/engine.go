// Package features turns the stored observation table into model-ready rows.
package features

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"kickbase-market-lab/internal/cutoff"
	"kickbase-market-lab/internal/domain"
)

// DefaultIQRMultiplier is the whisker width of the target clip.
const DefaultIQRMultiplier = 2.5

// ErrNoObservations is returned when the engine receives an empty table.
var ErrNoObservations = errors.New("no observations")

// Engine computes features, targets and the historical/live partition.
type Engine struct {
	boundary      cutoff.Boundary
	iqrMultiplier float64
	now           func() time.Time
	logger        zerolog.Logger
}

// Options contains configuration for creating an Engine.
type Options struct {
	Boundary      cutoff.Boundary // Default: cutoff.Settlement()
	IQRMultiplier float64         // Default: 2.5
	Now           func() time.Time
	Logger        zerolog.Logger
}

// New creates a feature engine.
func New(opts Options) *Engine {
	e := &Engine{
		boundary:      opts.Boundary,
		iqrMultiplier: opts.IQRMultiplier,
		now:           opts.Now,
		logger:        opts.Logger,
	}
	if e.boundary.Location() == nil {
		e.boundary = cutoff.Settlement()
	}
	if e.iqrMultiplier <= 0 {
		e.iqrMultiplier = DefaultIQRMultiplier
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Build runs every step over the full table at the engine's current time.
// The input slice and its rows are not modified.
func (e *Engine) Build(ctx context.Context, observations []*domain.Observation) (*domain.FeatureSet, error) {
	return e.BuildAt(ctx, observations, e.now())
}

// BuildAt is Build with an explicit reference instant.
//
// Steps, in order:
//  1. sort by (player, date) and drop rows recorded under a foreign team
//  2. per player: next_day, next_md, days_to_next, mv_next_day, mv_target
//  3. drop rows with mv == 0
//  4. per player lookback features and the cross-sectional divergence
//  5. clip mv_target with IQR bounds taken from the whole pool
//  6. impute documented defaults
//  7. partition by the cutoff effective date
func (e *Engine) BuildAt(ctx context.Context, observations []*domain.Observation, now time.Time) (*domain.FeatureSet, error) {
	if len(observations) == 0 {
		return nil, ErrNoObservations
	}

	rows := prepare(observations)
	players := groupByPlayer(rows)

	for _, p := range players {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		computeLookahead(p)
	}

	rows = dropZeroMarketValue(rows)
	players = groupByPlayer(rows)
	for _, p := range players {
		computeLookback(p)
	}
	computeDivergence(rows, players)

	lower, upper, ok := ClipBounds(targets(rows), e.iqrMultiplier)
	if ok {
		for i := range rows {
			if t := rows[i].MVTarget; t != nil {
				rows[i].MVTargetClipped = domain.Ptr(clamp(*t, lower, upper))
			}
		}
	}

	for i := range rows {
		impute(&rows[i])
	}

	effective := e.boundary.EffectiveDate(now)
	set := &domain.FeatureSet{EffectiveDate: effective, ClipLower: lower, ClipUpper: upper}
	dropped := 0
	for _, r := range rows {
		switch {
		case !r.Date.Before(effective):
			set.Live = append(set.Live, r)
		case complete(&r):
			set.Historical = append(set.Historical, r)
		default:
			dropped++
		}
	}

	e.logger.Debug().
		Int("observations", len(observations)).
		Int("historical", len(set.Historical)).
		Int("live", len(set.Live)).
		Int("dropped", dropped).
		Time("effective_date", effective).
		Float64("clip_lower", lower).
		Float64("clip_upper", upper).
		Msg("features built")
	return set, nil
}

// prepare copies, sorts and team-filters the input.
func prepare(observations []*domain.Observation) []domain.FeatureRow {
	rows := make([]domain.FeatureRow, 0, len(observations))
	for _, o := range observations {
		if o == nil || !ownTeam(o) {
			continue
		}
		rows = append(rows, domain.FeatureRow{Observation: *o})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].PlayerID != rows[j].PlayerID {
			return rows[i].PlayerID < rows[j].PlayerID
		}
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}

// ownTeam reports whether the row's match involved the player's current team.
// Rows without any match are kept.
func ownTeam(o *domain.Observation) bool {
	if o.Team1ID == nil && o.Team2ID == nil {
		return true
	}
	return (o.Team1ID != nil && *o.Team1ID == o.TeamID) ||
		(o.Team2ID != nil && *o.Team2ID == o.TeamID)
}

// groupByPlayer returns contiguous per-player windows into rows.
func groupByPlayer(rows []domain.FeatureRow) [][]domain.FeatureRow {
	var groups [][]domain.FeatureRow
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].PlayerID != rows[start].PlayerID {
			groups = append(groups, rows[start:i])
			start = i
		}
	}
	return groups
}

func dropZeroMarketValue(rows []domain.FeatureRow) []domain.FeatureRow {
	kept := rows[:0]
	for _, r := range rows {
		if r.MarketValue != nil && *r.MarketValue == 0 {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func targets(rows []domain.FeatureRow) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.MVTarget != nil {
			out = append(out, *r.MVTarget)
		}
	}
	return out
}

func impute(r *domain.FeatureRow) {
	if r.Points == nil {
		r.Points = domain.Ptr(0.0)
	}
	if r.PointsPerMin == nil {
		r.PointsPerMin = domain.Ptr(0.0)
	}
	if r.Won == nil {
		r.Won = domain.Ptr(-1)
	}
}

// complete reports whether a settled row has every field training needs.
func complete(r *domain.FeatureRow) bool {
	return r.MVChange1D != nil &&
		r.NextDay != nil &&
		r.NextMatchday != nil &&
		r.DaysToNext != nil &&
		r.MVNextDay != nil &&
		r.MVTarget != nil &&
		r.MVTargetClipped != nil
}
