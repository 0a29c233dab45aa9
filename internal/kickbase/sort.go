package kickbase

import (
	"sort"

	"kickbase-market-lab/internal/domain"
)

func sortMarketValues(points []domain.MarketValuePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}
