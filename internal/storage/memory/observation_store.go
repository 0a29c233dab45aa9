package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu   sync.RWMutex
	rows []*domain.Observation // ordered by (player_id, date)
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{}
}

// ReplaceAll builds the new table aside and swaps it in under the write lock.
func (s *ObservationStore) ReplaceAll(ctx context.Context, rows []*domain.Observation) error {
	if err := storage.ValidateObservations(rows); err != nil {
		return err
	}

	staged := make([]*domain.Observation, 0, len(rows))
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		rowCopy := *r
		staged = append(staged, &rowCopy)
	}
	sortObservations(staged)

	s.mu.Lock()
	s.rows = staged
	s.mu.Unlock()
	return nil
}

// GetAll retrieves every row ordered by player_id, date ASC.
func (s *ObservationStore) GetAll(_ context.Context) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Observation, 0, len(s.rows))
	for _, r := range s.rows {
		rowCopy := *r
		result = append(result, &rowCopy)
	}
	return result, nil
}

// Summary reports the date coverage of the stored rows.
func (s *ObservationStore) Summary(_ context.Context, minSettledRows int) (*storage.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &storage.Summary{Rows: len(s.rows)}
	settledPerDate := make(map[time.Time]int)
	for _, r := range s.rows {
		if r.MarketValue == nil {
			if summary.EarliestUnsettled == nil || r.Date.Before(*summary.EarliestUnsettled) {
				d := r.Date
				summary.EarliestUnsettled = &d
			}
			continue
		}
		settledPerDate[r.Date]++
	}
	for d, n := range settledPerDate {
		if n < minSettledRows {
			continue
		}
		if summary.LatestSettled == nil || d.After(*summary.LatestSettled) {
			date := d
			summary.LatestSettled = &date
		}
	}
	return summary, nil
}

func sortObservations(rows []*domain.Observation) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PlayerID != rows[j].PlayerID {
			return rows[i].PlayerID < rows[j].PlayerID
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
