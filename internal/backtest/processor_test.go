package backtest

import (
	"testing"
)

func TestProcessCSV(t *testing.T) {
	csvData := `Trade #,Pattern,Net P&L USD,Run-up %,Drawdown %
1,Range Breakout,150.00,3.0,-1.5
2,Range Breakout,-50.00,0.5,-1.0
3,Range Breakout,200.00,4.0,-2.0
4,EMA Crossover,-25.00,1.0,-0.5
`

	stats, err := Process([]byte(csvData), "text/csv", "amd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("expected 2 pattern groups, got %d", len(stats))
	}

	// Sorted key order puts EMA Crossover first.
	ema := stats[0]
	if ema.Ticker != "AMD" || ema.Pattern != "EMA Crossover" {
		t.Fatalf("unexpected first group: %s/%s", ema.Ticker, ema.Pattern)
	}
	if ema.TotalTrades != 1 || ema.Wins != 0 || ema.Losses != 1 {
		t.Errorf("EMA group counts wrong: %+v", ema)
	}

	rb := stats[1]
	if rb.Pattern != "Range Breakout" {
		t.Fatalf("unexpected second group: %s", rb.Pattern)
	}
	if rb.TotalTrades != 3 || rb.Wins != 2 || rb.Losses != 1 {
		t.Errorf("breakout counts wrong: %+v", rb)
	}
	if rb.WinratePct != 66.67 {
		t.Errorf("expected winrate 66.67, got %v", rb.WinratePct)
	}
	// R:R per trade: 3/1.5=2, 0.5/1=0.5, 4/2=2  → avg 1.5
	if rb.AvgRR == nil || *rb.AvgRR != 1.5 {
		t.Errorf("expected avg R:R 1.5, got %v", rb.AvgRR)
	}
}

func TestProcessJSONEnvelope(t *testing.T) {
	jsonData := `{"trades": [
		{"ticker": "QQQ", "pattern": "IB Breakout", "net_pnl_usd": 75.5, "runup_pct": 2.0, "drawdown_pct": -1.0},
		{"ticker": "QQQ", "pattern": "IB Breakout", "net_pnl_usd": -30.0, "runup_pct": 0.4, "drawdown_pct": -0.8}
	]}`

	stats, err := Process([]byte(jsonData), "application/json", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stats) != 1 {
		t.Fatalf("expected 1 group, got %d", len(stats))
	}
	s := stats[0]
	if s.Ticker != "QQQ" || s.TotalTrades != 2 || s.Wins != 1 || s.Losses != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.WinratePct != 50.0 {
		t.Errorf("expected winrate 50, got %v", s.WinratePct)
	}
	// R:R: 2/1=2, 0.4/0.8=0.5 → avg 1.25
	if s.AvgRR == nil || *s.AvgRR != 1.25 {
		t.Errorf("expected avg R:R 1.25, got %v", s.AvgRR)
	}
}

func TestProcessJSONBareArray(t *testing.T) {
	jsonData := `[{"pattern": "Scalp", "net_pnl_usd": 10.0}]`

	stats, err := Process([]byte(jsonData), "application/json", "tsla")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 1 || stats[0].Ticker != "TSLA" || stats[0].Pattern != "Scalp" {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats[0].AvgRR != nil {
		t.Errorf("no run-up data should mean nil avg R:R, got %v", *stats[0].AvgRR)
	}
}

func TestProcessInsaneRRDropped(t *testing.T) {
	csvData := `Pattern,Net P&L USD,Run-up %,Drawdown %
Breakout,10.0,500.0,-1.0
Breakout,10.0,2.0,-1.0
`

	stats, err := Process([]byte(csvData), "text/csv", "XSP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The 500:1 glitch is dropped; only the 2.0 ratio remains.
	if stats[0].AvgRR == nil || *stats[0].AvgRR != 2.0 {
		t.Errorf("expected avg R:R 2.0 after outlier drop, got %v", stats[0].AvgRR)
	}
}

func TestProcessEmptyUpload(t *testing.T) {
	if _, err := Process([]byte("Pattern,Net P&L USD\n"), "text/csv", ""); err == nil {
		t.Error("header-only CSV should be rejected")
	}
	if _, err := Process([]byte("not json"), "application/json", ""); err == nil {
		t.Error("invalid JSON should be rejected")
	}
}

func TestProcessMissingTickerDefaults(t *testing.T) {
	csvData := "Pattern,Net P&L USD\nBreakout,5.0\n"

	stats, err := Process([]byte(csvData), "text/csv", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats[0].Ticker != "UNKNOWN" {
		t.Errorf("missing ticker should default to UNKNOWN, got %q", stats[0].Ticker)
	}
}
