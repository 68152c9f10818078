package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradingview-agent/internal/ensemble"
	"tradingview-agent/internal/events"
)

type stubAdapter struct {
	name     string
	decision ensemble.Decision
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Evaluate(ctx context.Context, systemPrompt, userContext string) ensemble.ModelResult {
	return ensemble.ModelResult{Model: s.name, Decision: s.decision, Success: true}
}

func testServer(t *testing.T) *Server {
	t.Helper()

	coordinator := ensemble.NewCoordinator([]ensemble.ModelSpec{
		{Name: "stub", Weight: 1.0, Adapter: &stubAdapter{name: "stub", decision: ensemble.Decision{
			Direction:  ensemble.DirectionLong,
			Confidence: ensemble.ConfidenceHigh,
			Notes:      "stub decision",
		}}},
	}, &ensemble.ContextBuilder{}, "", time.Second, zerolog.Nop())

	return NewServer(ServerConfig{Port: 0, Host: "127.0.0.1", ProductionMode: true},
		coordinator, nil, nil, nil, nil, events.NewEventBus(), zerolog.Nop())
}

func TestHandleRoot(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "TV webhook running") {
		t.Errorf("unexpected banner: %q", w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid health JSON: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("expected ok=true, got %v", resp["ok"])
	}
	if resp["service"] != "TradingView Agent" {
		t.Errorf("unexpected service name: %v", resp["service"])
	}
}

func TestHandleWebhookBadJSON(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tvhook", strings.NewReader("{not json"))
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad_json") {
		t.Errorf("expected bad_json error, got %q", w.Body.String())
	}
}

func TestHandleWebhookEmptyPayload(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tvhook", strings.NewReader("{}"))
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "empty_payload") {
		t.Errorf("expected empty_payload error, got %q", w.Body.String())
	}
}

func TestHandleWebhookDecision(t *testing.T) {
	s := testServer(t)

	body := `{"ticker": "AMD", "pattern": "Range Breakout", "close": 101.5}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tvhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK       bool `json:"ok"`
		Decision struct {
			Direction  string `json:"direction"`
			Confidence string `json:"confidence"`
			Reasoning  string `json:"reasoning"`
		} `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid webhook JSON: %v", err)
	}
	if !resp.OK {
		t.Error("expected ok=true")
	}
	if resp.Decision.Direction != "LONG" {
		t.Errorf("expected LONG, got %s", resp.Decision.Direction)
	}
	if resp.Decision.Confidence != "HIGH" {
		t.Errorf("expected HIGH, got %s", resp.Decision.Confidence)
	}
	if !strings.Contains(resp.Decision.Reasoning, "ENSEMBLE CONSENSUS") {
		t.Errorf("expected consensus reasoning, got %q", resp.Decision.Reasoning)
	}
}

func TestHandleBacktestUpload(t *testing.T) {
	s := testServer(t)

	body := "Pattern,Net P&L USD,Run-up %,Drawdown %\nBreakout,10.0,2.0,-1.0\n"
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/backtest?ticker=amd", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK      bool `json:"ok"`
		Summary []struct {
			Ticker      string `json:"ticker"`
			Pattern     string `json:"pattern"`
			TotalTrades int    `json:"total_trades"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid backtest JSON: %v", err)
	}
	if !resp.OK || len(resp.Summary) != 1 {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
	if resp.Summary[0].Ticker != "AMD" || resp.Summary[0].TotalTrades != 1 {
		t.Errorf("unexpected summary: %+v", resp.Summary[0])
	}
}

func TestHandleBacktestEmptyBody(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/backtest", strings.NewReader(""))
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleDecisionsWithoutStore(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/decisions", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without audit store, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("/tvhook") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("/tvhook") {
		t.Error("fourth request inside the window should be rejected")
	}
	if !rl.Allow("/backtest") {
		t.Error("different endpoint should have its own budget")
	}
}
