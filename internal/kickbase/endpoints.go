package kickbase

import (
	"context"
	"fmt"
	"net/url"

	"kickbase-market-lab/internal/domain"
)

// Team is a club in a competition table.
type Team struct {
	ID   string
	Name string
}

// League is a league the account belongs to.
type League struct {
	ID   string
	Name string
}

// Teams lists the clubs of a competition.
func (c *Client) Teams(ctx context.Context, competitionID int) ([]Team, error) {
	var resp tableResponse
	if err := c.get(ctx, fmt.Sprintf("/competitions/%d/table", competitionID), &resp); err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}

	teams := make([]Team, 0, len(resp.Items))
	for _, it := range resp.Items {
		teams = append(teams, Team{ID: it.TeamID, Name: it.TeamName})
	}
	return teams, nil
}

// PlayerIDs lists every player of a competition by walking the team profiles.
func (c *Client) PlayerIDs(ctx context.Context, competitionID int) ([]string, error) {
	teams, err := c.Teams(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, team := range teams {
		var resp teamProfileResponse
		path := fmt.Sprintf("/competitions/%d/teams/%s/teamprofile", competitionID, url.PathEscape(team.ID))
		if err := c.get(ctx, path, &resp); err != nil {
			return nil, fmt.Errorf("get team profile %s: %w", team.ID, err)
		}
		for _, p := range resp.Items {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids, nil
}

// PlayerInfo fetches the static profile of a player.
func (c *Client) PlayerInfo(ctx context.Context, competitionID int, playerID string) (*domain.PlayerIdentity, error) {
	var resp playerResponse
	path := fmt.Sprintf("/competitions/%d/players/%s", competitionID, url.PathEscape(playerID))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get player %s: %w", playerID, err)
	}
	if resp.PlayerID == nil {
		return nil, fmt.Errorf("%w: player %s without id", ErrMalformedPayload, playerID)
	}

	return &domain.PlayerIdentity{
		PlayerID:  *resp.PlayerID,
		TeamID:    resp.TeamID,
		TeamName:  resp.TeamName,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
		Position:  resp.Position,
	}, nil
}

// MarketValues fetches the last lastN daily market values of a player, oldest first.
func (c *Client) MarketValues(ctx context.Context, competitionID int, playerID string, lastN int) ([]domain.MarketValuePoint, error) {
	var resp marketValueResponse
	// 365 is the longest timeframe the endpoint serves.
	path := fmt.Sprintf("/competitions/%d/players/%s/marketvalue/365", competitionID, url.PathEscape(playerID))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get market values %s: %w", playerID, err)
	}
	return resp.toMarketValues(lastN)
}

// Performances fetches the last lastN matchday records of a player up to the
// next upcoming matchday. teamID decides the won flag.
func (c *Client) Performances(ctx context.Context, competitionID int, playerID, teamID string, lastN int) ([]domain.Performance, error) {
	var resp performanceResponse
	path := fmt.Sprintf("/competitions/%d/players/%s/performance", competitionID, url.PathEscape(playerID))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get performance %s: %w", playerID, err)
	}
	return resp.toPerformances(c.now(), lastN, teamID)
}

// Leagues lists the leagues of the logged-in account.
func (c *Client) Leagues(ctx context.Context) ([]League, error) {
	var resp leagueSelectionResponse
	if err := c.get(ctx, "/leagues/selection", &resp); err != nil {
		return nil, fmt.Errorf("get leagues: %w", err)
	}

	leagues := make([]League, 0, len(resp.Items))
	for _, it := range resp.Items {
		leagues = append(leagues, League{ID: it.ID, Name: it.Name})
	}
	return leagues, nil
}

// ResolveLeague finds the league named name. When no league matches, the first
// league is returned with matched=false.
func (c *Client) ResolveLeague(ctx context.Context, name string) (league League, matched bool, err error) {
	leagues, err := c.Leagues(ctx)
	if err != nil {
		return League{}, false, err
	}
	if len(leagues) == 0 {
		return League{}, false, ErrNoLeague
	}
	for _, l := range leagues {
		if l.Name == name {
			return l, true, nil
		}
	}
	return leagues[0], false, nil
}

// Market lists the players currently on the league transfer market.
func (c *Client) Market(ctx context.Context, leagueID string) ([]domain.MarketListing, error) {
	var resp marketResponse
	if err := c.get(ctx, fmt.Sprintf("/leagues/%s/market", url.PathEscape(leagueID)), &resp); err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}

	listings := make([]domain.MarketListing, 0, len(resp.Items))
	for _, it := range resp.Items {
		listings = append(listings, domain.MarketListing{
			PlayerID:      it.PlayerID,
			StartingProb:  it.StartingProb,
			ExpirySeconds: it.ExpirySeconds,
		})
	}
	return listings, nil
}

// Squad lists the players owned by the logged-in account.
func (c *Client) Squad(ctx context.Context, leagueID string) ([]domain.SquadSlot, error) {
	var resp squadResponse
	if err := c.get(ctx, fmt.Sprintf("/leagues/%s/squad", url.PathEscape(leagueID)), &resp); err != nil {
		return nil, fmt.Errorf("get squad: %w", err)
	}

	slots := make([]domain.SquadSlot, 0, len(resp.Items))
	for _, it := range resp.Items {
		slots = append(slots, domain.SquadSlot{PlayerID: it.PlayerID, StartingProb: it.StartingProb})
	}
	return slots, nil
}
