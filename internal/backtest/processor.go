// Package backtest ingests TradingView strategy-tester exports (CSV or JSON)
// and aggregates them into per-(ticker, pattern) historical stats. The stats
// double as the priors the prompt context builder feeds to the ensemble.
package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"tradingview-agent/internal/alert"
)

// Stats aggregates backtested performance for one (ticker, pattern) pair.
type Stats struct {
	Ticker      string   `json:"ticker"`
	Pattern     string   `json:"pattern"`
	TotalTrades int      `json:"total_trades"`
	Wins        int      `json:"wins"`
	Losses      int      `json:"losses"`
	WinratePct  float64  `json:"winrate_pct"`
	AvgRR       *float64 `json:"avg_rr"`
}

// R:R ratios outside (0, 20) are treated as data glitches and dropped.
const maxSaneRR = 20.0

// Process parses an uploaded trade log and aggregates it. JSON payloads may
// be either {"trades": [...]} or a bare array; anything else is treated as
// CSV with a header row. Returns one Stats per (ticker, pattern) seen.
func Process(raw []byte, contentType, tickerHint string) ([]Stats, error) {
	var rows []map[string]string
	var err error

	if strings.Contains(contentType, "application/json") {
		rows, err = parseJSONTrades(raw)
	} else {
		rows, err = parseCSVTrades(raw)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no trade rows in upload")
	}

	return aggregate(rows, strings.ToUpper(strings.TrimSpace(tickerHint))), nil
}

func parseJSONTrades(raw []byte) ([]map[string]string, error) {
	var envelope struct {
		Trades []map[string]interface{} `json:"trades"`
	}
	var items []map[string]interface{}

	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Trades != nil {
		items = envelope.Trades
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid backtest JSON: %w", err)
	}

	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := make(map[string]string, len(item))
		for k, v := range item {
			switch val := v.(type) {
			case string:
				row[k] = val
			case float64:
				row[k] = formatFloat(val)
			case bool:
				row[k] = fmt.Sprintf("%t", val)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseCSVTrades(raw []byte) ([]map[string]string, error) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid backtest CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("backtest CSV has no data rows")
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[strings.TrimSpace(name)] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func aggregate(rows []map[string]string, tickerHint string) []Stats {
	type record struct {
		stats    Stats
		rrValues []float64
	}
	summary := make(map[string]*record)
	var order []string

	for _, row := range rows {
		ticker := strings.ToUpper(firstValue(row, "ticker", "Ticker"))
		if ticker == "" {
			ticker = tickerHint
		}
		if ticker == "" {
			ticker = "UNKNOWN"
		}
		pattern := firstValue(row, "pattern", "Pattern", "Signal")
		if pattern == "" {
			pattern = "unknown"
		}

		key := ticker + ":" + pattern
		rec, ok := summary[key]
		if !ok {
			rec = &record{stats: Stats{Ticker: ticker, Pattern: pattern}}
			summary[key] = rec
			order = append(order, key)
		}
		rec.stats.TotalTrades++

		// Win/loss from net P&L, preferring the USD column.
		pl := alert.ToFloat(firstValue(row, "Net P&L USD", "net_pnl_usd"))
		if pl == nil {
			pl = alert.ToFloat(firstValue(row, "Net P&L %", "net_pnl_pct"))
		}
		if pl != nil {
			if *pl > 0 {
				rec.stats.Wins++
			} else if *pl < 0 {
				rec.stats.Losses++
			}
		}

		// Reward:risk from run-up vs drawdown when both are usable.
		runup := alert.ToFloat(firstValue(row, "Run-up %", "Run up %", "Run-up%", "runup_pct"))
		drawdown := alert.ToFloat(firstValue(row, "Drawdown %", "Drawdown%", "drawdown_pct"))
		if runup != nil && *runup > 0 && drawdown != nil && *drawdown != 0 {
			rr := *runup / math.Abs(*drawdown)
			if rr > 0 && rr < maxSaneRR {
				rec.rrValues = append(rec.rrValues, rr)
			}
		}
	}

	sort.Strings(order)
	out := make([]Stats, 0, len(order))
	for _, key := range order {
		rec := summary[key]
		if rec.stats.TotalTrades > 0 {
			rec.stats.WinratePct = round2(float64(rec.stats.Wins) / float64(rec.stats.TotalTrades) * 100)
		}
		if len(rec.rrValues) > 0 {
			sum := 0.0
			for _, rr := range rec.rrValues {
				sum += rr
			}
			avg := round2(sum / float64(len(rec.rrValues)))
			rec.stats.AvgRR = &avg
		}
		out = append(out, rec.stats)
	}
	return out
}

func firstValue(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(row[k]); v != "" {
			return v
		}
	}
	return ""
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%g", f)
}
