package ingestion

import (
	"context"
	"fmt"
	"time"

	"kickbase-market-lab/internal/cutoff"
	"kickbase-market-lab/internal/storage"
)

// ReloadPolicy selects the Gate used before a run.
type ReloadPolicy string

const (
	ReloadAlways    ReloadPolicy = "always"
	ReloadFreshness ReloadPolicy = "freshness"
)

// Gate decides whether the observation table must be refetched.
type Gate interface {
	ShouldReload(ctx context.Context, now time.Time) (bool, string, error)
}

// AlwaysReload reloads on every run.
type AlwaysReload struct{}

// ShouldReload always returns true.
func (AlwaysReload) ShouldReload(context.Context, time.Time) (bool, string, error) {
	return true, "policy always", nil
}

// FreshnessGate skips the reload when the stored table already has a
// well-populated market value row for the current effective date.
type FreshnessGate struct {
	Store          storage.ObservationStore
	Boundary       cutoff.Boundary
	MinSettledRows int
}

// ShouldReload inspects the stored table summary.
func (g FreshnessGate) ShouldReload(ctx context.Context, now time.Time) (bool, string, error) {
	summary, err := g.Store.Summary(ctx, g.MinSettledRows)
	if err != nil {
		return false, "", fmt.Errorf("summarize observations: %w", err)
	}
	if summary.Rows == 0 {
		return true, "table empty", nil
	}
	if summary.LatestSettled == nil {
		return true, "no settled date", nil
	}

	expected := g.Boundary.EffectiveDate(now)
	if summary.LatestSettled.Before(expected) {
		return true, fmt.Sprintf("latest settled %s before %s",
			summary.LatestSettled.Format(time.DateOnly), expected.Format(time.DateOnly)), nil
	}
	return false, "table covers " + expected.Format(time.DateOnly), nil
}

// NewGate builds the Gate for a policy. force overrides the policy.
func NewGate(policy ReloadPolicy, force bool, store storage.ObservationStore, minSettledRows int) Gate {
	if force || policy != ReloadFreshness {
		return AlwaysReload{}
	}
	return FreshnessGate{Store: store, Boundary: cutoff.Settlement(), MinSettledRows: minSettledRows}
}
