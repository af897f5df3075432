package gateway

import (
	"sort"
	"time"

	"crypto-ai-trading/internal/model"
)

const topMovers = 10

// MarketStats aggregates the latest tickers across all tracked pairs.
type MarketStats struct {
	TotalPairs   int            `json:"totalPairs"`
	Exchanges    []string       `json:"exchanges"`
	TopGainers   []model.Ticker `json:"topGainers"`
	TopLosers    []model.Ticker `json:"topLosers"`
	AvgChange24h float64        `json:"avgChange24h"`
	TotalVolume  float64        `json:"totalVolume"`
	Timestamp    int64          `json:"timestamp"`
}

// NewMarketStats builds the stats for tickers. Gainers are sorted by the
// largest rise first, losers by the largest fall first; flat pairs are in
// neither list.
func NewMarketStats(tickers []model.Ticker) MarketStats {
	st := MarketStats{
		TotalPairs: len(tickers),
		Exchanges:  []string{},
		TopGainers: []model.Ticker{},
		TopLosers:  []model.Ticker{},
		Timestamp:  time.Now().UnixMilli(),
	}
	seen := make(map[string]bool)
	var change float64
	for _, t := range tickers {
		if t.Exchange != "" && !seen[t.Exchange] {
			seen[t.Exchange] = true
			st.Exchanges = append(st.Exchanges, t.Exchange)
		}
		change += t.Change24h
		st.TotalVolume += t.Volume24h
		switch {
		case t.Change24h > 0:
			st.TopGainers = append(st.TopGainers, t)
		case t.Change24h < 0:
			st.TopLosers = append(st.TopLosers, t)
		}
	}
	if len(tickers) > 0 {
		st.AvgChange24h = change / float64(len(tickers))
	}
	sort.Strings(st.Exchanges)
	sort.SliceStable(st.TopGainers, func(i, j int) bool { return st.TopGainers[i].Change24h > st.TopGainers[j].Change24h })
	sort.SliceStable(st.TopLosers, func(i, j int) bool { return st.TopLosers[i].Change24h < st.TopLosers[j].Change24h })
	if len(st.TopGainers) > topMovers {
		st.TopGainers = st.TopGainers[:topMovers]
	}
	if len(st.TopLosers) > topMovers {
		st.TopLosers = st.TopLosers[:topMovers]
	}
	return st
}
