package ensemble

import (
	"context"
	"fmt"
	"strings"

	"tradingview-agent/internal/alert"
)

// EdgeLabel is the qualitative read of a historical prior, derived from
// winrate and average reward:risk.
type EdgeLabel string

const (
	EdgePositive EdgeLabel = "POSITIVE"
	EdgeNegative EdgeLabel = "NEGATIVE"
	EdgeNeutral  EdgeLabel = "NEUTRAL"
)

// EdgeFor classifies a prior: POSITIVE when winrate > 50% with avg R:R > 1.2,
// NEGATIVE below 40% winrate, NEUTRAL otherwise.
func EdgeFor(p *HistoricalPrior) EdgeLabel {
	if p.WinratePct > 50 && p.AvgRR != nil && *p.AvgRR > 1.2 {
		return EdgePositive
	}
	if p.WinratePct < 40 {
		return EdgeNegative
	}
	return EdgeNeutral
}

// PriorSource looks up backtested stats for a (ticker, pattern) pair. The
// lookup is read-only and resolved once per alert, before model fan-out.
type PriorSource interface {
	Lookup(ctx context.Context, ticker, pattern string) (*HistoricalPrior, bool)
}

// ContextBuilder assembles the natural-language context sent verbatim and
// identically to every backend, so that consensus reflects model disagreement
// rather than context skew.
type ContextBuilder struct {
	Priors PriorSource
}

// Build formats all known alert fields plus, when a prior exists, a labeled
// historical-stats block. Deterministic and side-effect free; absent fields
// are simply omitted.
func (b *ContextBuilder) Build(ctx context.Context, a *alert.Alert) string {
	var sb strings.Builder
	sb.WriteString("Alert data:\n")
	fmt.Fprintf(&sb, "- Ticker: %s\n", a.Ticker)
	if a.Interval != "" {
		fmt.Fprintf(&sb, "- Interval: %s\n", a.Interval)
	}
	if a.Pattern != "" {
		fmt.Fprintf(&sb, "- Pattern: %s\n", a.Pattern)
	}
	writeLevel(&sb, "Price", a.Price)
	writeLevel(&sb, "IB High", a.IBHigh)
	writeLevel(&sb, "IB Low", a.IBLow)
	writeLevel(&sb, "IB Range", a.IBRange())
	writeLevel(&sb, "Box High", a.BoxHigh)
	writeLevel(&sb, "Box Low", a.BoxLow)
	writeLevel(&sb, "ATR", a.ATR)
	if a.Message != "" {
		fmt.Fprintf(&sb, "- Raw message: %s\n", a.Message)
	}

	if extra := a.Additional; extra != nil {
		sb.WriteString("\nSignal metadata:\n")
		writeLevel(&sb, "RSI", extra.RSI)
		writeLevel(&sb, "Volume ratio", extra.VolumeRatio)
		writeLevel(&sb, "Trend strength", extra.TrendStrength)
		if extra.ETFMode {
			sb.WriteString("- ETF mode: enabled\n")
		}
	}

	if b.Priors != nil {
		if prior, ok := b.Priors.Lookup(ctx, a.Ticker, a.Pattern); ok && prior != nil {
			sb.WriteString("\nHistorical stats:\n")
			fmt.Fprintf(&sb, "- Trades: %d\n", prior.TotalTrades)
			fmt.Fprintf(&sb, "- Winrate: %.2f%%\n", prior.WinratePct)
			if prior.AvgRR != nil {
				fmt.Fprintf(&sb, "- Avg R:R: %.2f\n", *prior.AvgRR)
			}
			fmt.Fprintf(&sb, "- Historical edge: %s\n", EdgeFor(prior))
		}
	}

	sb.WriteString("\nMake a decision using ultra-selective mode.\n")
	return sb.String()
}

func writeLevel(sb *strings.Builder, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(sb, "- %s: %g\n", label, *v)
}
