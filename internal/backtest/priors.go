package backtest

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"tradingview-agent/internal/ensemble"
)

// StatsStore persists aggregated backtest stats. Get returns (nil, nil) when
// no stats exist for the pair.
type StatsStore interface {
	SaveStats(ctx context.Context, stats *Stats) error
	GetStats(ctx context.Context, ticker, pattern string) (*Stats, error)
}

// seedPriors are the static priors shipped with the service, measured from
// multi-year TradingView backtests of the 3-1 inside-bar breakout strategy.
// Uploaded backtest data takes precedence over them.
var seedPriors = []Stats{
	{Ticker: "AMD", Pattern: "3-1_breakout_short", TotalTrades: 207, WinratePct: 36.71, AvgRR: rr(2.64)},
	{Ticker: "AMD", Pattern: "3-1_breakout_long", TotalTrades: 249, WinratePct: 45.38, AvgRR: rr(2.85)},
	{Ticker: "TSLA", Pattern: "3-1_breakout_short", TotalTrades: 234, WinratePct: 35.47, AvgRR: rr(2.39)},
	{Ticker: "TSLA", Pattern: "3-1_breakout_long", TotalTrades: 258, WinratePct: 47.67, AvgRR: rr(3.12)},
	{Ticker: "QQQ", Pattern: "3-1_breakout_short", TotalTrades: 124, WinratePct: 34.68, AvgRR: rr(2.54)},
	{Ticker: "QQQ", Pattern: "3-1_breakout_long", TotalTrades: 225, WinratePct: 39.56, AvgRR: rr(2.71)},
	{Ticker: "IWM", Pattern: "3-1_breakout_short", TotalTrades: 160, WinratePct: 26.88, AvgRR: rr(2.61)},
	{Ticker: "IWM", Pattern: "3-1_breakout_long", TotalTrades: 164, WinratePct: 34.02, AvgRR: rr(2.14)},
	{Ticker: "XSP", Pattern: "3-1_breakout_short", TotalTrades: 123, WinratePct: 38.89, AvgRR: rr(2.15)},
	{Ticker: "XSP", Pattern: "3-1_breakout_long", TotalTrades: 143, WinratePct: 37.06, AvgRR: rr(2.15)},
}

func rr(v float64) *float64 { return &v }

// PriorChain resolves historical priors for the prompt context: uploaded
// stats from the store first, static seed priors as fallback. Store failures
// degrade to the seeds; a missing prior is a normal outcome, not an error.
type PriorChain struct {
	store  StatsStore // optional
	seeds  map[string]Stats
	logger zerolog.Logger
}

// NewPriorChain builds the chain. store may be nil for seed-only operation.
func NewPriorChain(store StatsStore, logger zerolog.Logger) *PriorChain {
	seeds := make(map[string]Stats, len(seedPriors))
	for _, s := range seedPriors {
		seeds[priorKey(s.Ticker, s.Pattern)] = s
	}
	return &PriorChain{
		store:  store,
		seeds:  seeds,
		logger: logger.With().Str("component", "priors").Logger(),
	}
}

// Lookup implements ensemble.PriorSource.
func (p *PriorChain) Lookup(ctx context.Context, ticker, pattern string) (*ensemble.HistoricalPrior, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	pattern = strings.TrimSpace(pattern)
	if ticker == "" || pattern == "" {
		return nil, false
	}

	if p.store != nil {
		stats, err := p.store.GetStats(ctx, ticker, pattern)
		if err != nil {
			p.logger.Warn().Err(err).Str("ticker", ticker).Str("pattern", pattern).Msg("stats lookup failed, falling back to seeds")
		} else if stats != nil {
			return toPrior(stats), true
		}
	}

	if seed, ok := p.seeds[priorKey(ticker, pattern)]; ok {
		return toPrior(&seed), true
	}
	return nil, false
}

func toPrior(s *Stats) *ensemble.HistoricalPrior {
	return &ensemble.HistoricalPrior{
		TotalTrades: s.TotalTrades,
		WinratePct:  s.WinratePct,
		AvgRR:       s.AvgRR,
	}
}

func priorKey(ticker, pattern string) string {
	return ticker + ":" + pattern
}
