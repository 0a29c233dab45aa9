// Package stub provides in-memory data sources for tests and offline runs.
package stub

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"kickbase-market-lab/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Player is the fixture of one player.
type Player struct {
	Identity      domain.PlayerIdentity     `json:"identity"`
	CompetitionID int                       `json:"competition_id"`
	MarketValues  []domain.MarketValuePoint `json:"market_values"`
	Performances  []domain.Performance      `json:"performances"`
}

// PlayerSource returns fixed in-memory player histories.
// Implements ingestion.PlayerSource.
type PlayerSource struct {
	mu      sync.Mutex
	players map[string]Player
	fail    map[string]error
	calls   int
}

// NewPlayerSource creates a stub source with the given players.
func NewPlayerSource(players []Player) *PlayerSource {
	s := &PlayerSource{players: make(map[string]Player, len(players)), fail: map[string]error{}}
	for _, p := range players {
		s.players[p.Identity.PlayerID] = p
	}
	return s
}

// LoadPlayerSource reads a JSON array of Player fixtures.
func LoadPlayerSource(path string) (*PlayerSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var players []Player
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return NewPlayerSource(players), nil
}

// FailPlayer makes every fetch for playerID return err.
func (s *PlayerSource) FailPlayer(playerID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[playerID] = err
}

// Calls returns the number of per-player fetches served.
func (s *PlayerSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// PlayerIDs returns the ids of the competition's players, sorted.
func (s *PlayerSource) PlayerIDs(ctx context.Context, competitionID int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, p := range s.players {
		if p.CompetitionID == competitionID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *PlayerSource) lookup(ctx context.Context, playerID string) (Player, error) {
	if err := ctx.Err(); err != nil {
		return Player{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.fail[playerID]; ok {
		return Player{}, err
	}
	p, ok := s.players[playerID]
	if !ok {
		return Player{}, fmt.Errorf("unknown player %s", playerID)
	}
	return p, nil
}

// PlayerInfo returns a copy of the player's identity.
func (s *PlayerSource) PlayerInfo(ctx context.Context, _ int, playerID string) (*domain.PlayerIdentity, error) {
	p, err := s.lookup(ctx, playerID)
	if err != nil {
		return nil, err
	}
	id := p.Identity
	return &id, nil
}

// MarketValues returns the last lastN market values.
func (s *PlayerSource) MarketValues(ctx context.Context, _ int, playerID string, lastN int) ([]domain.MarketValuePoint, error) {
	p, err := s.lookup(ctx, playerID)
	if err != nil {
		return nil, err
	}
	values := p.MarketValues
	if lastN > 0 && len(values) > lastN {
		values = values[len(values)-lastN:]
	}
	return append([]domain.MarketValuePoint(nil), values...), nil
}

// Performances returns the last lastN performance records.
func (s *PlayerSource) Performances(ctx context.Context, _ int, playerID, _ string, lastN int) ([]domain.Performance, error) {
	p, err := s.lookup(ctx, playerID)
	if err != nil {
		return nil, err
	}
	perfs := p.Performances
	if lastN > 0 && len(perfs) > lastN {
		perfs = perfs[len(perfs)-lastN:]
	}
	return append([]domain.Performance(nil), perfs...), nil
}
