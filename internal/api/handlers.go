package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradingview-agent/internal/alert"
	"tradingview-agent/internal/backtest"
)

// handleRoot returns a plain banner so TradingView connectivity checks succeed.
func (s *Server) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, "TV webhook running.\n")
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"ok":        true,
		"service":   "TradingView Agent",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.HealthCheck(ctx); err != nil {
			resp["ok"] = false
			resp["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "healthy"
	}

	c.JSON(http.StatusOK, resp)
}

// handleWebhook is the main TradingView alert intake. TradingView posts with
// inconsistent content types, so the body is decoded as JSON regardless of the
// declared type.
func (s *Server) handleWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "bad_json"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn().Err(err).Msg("webhook body is not valid JSON")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "bad_json"})
		return
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "empty_payload"})
		return
	}

	a := alert.FromPayload(payload)
	s.logger.Info().
		Str("ticker", a.Ticker).
		Str("pattern", a.Pattern).
		Str("interval", a.Interval).
		Msg("alert received")
	s.eventBus.PublishAlertReceived(a.Ticker, a.Pattern, a.Interval)

	if s.gate != nil {
		if gateResult := s.gate.Check(time.Now()); !gateResult.Allowed() {
			s.logger.Info().Str("status", string(gateResult.Status)).Msg("alert rejected outside market hours")
			s.eventBus.PublishMarketClosed(a.Ticker, string(gateResult.Status), gateResult.Message)
			c.JSON(http.StatusOK, gin.H{
				"ok":      true,
				"status":  string(gateResult.Status),
				"message": "MARKETS_CLOSED: No trade processing outside market hours (9:30 AM - 4:00 PM ET)",
			})
			return
		}
	}

	decision, err := s.coordinator.Decide(c.Request.Context(), a)
	if err != nil {
		s.logger.Error().Err(err).Msg("ensemble decision failed")
		s.eventBus.PublishError("webhook", "ensemble decision failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensemble_failed"})
		return
	}

	s.eventBus.PublishDecisionReady(a.Ticker, a.Pattern,
		string(decision.Direction), string(decision.Confidence), decision.Reasoning)

	// Persistence and notification happen off the request path; the webhook
	// reply only depends on the decision itself.
	if s.repo != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.repo.SaveDecision(ctx, a, decision); err != nil {
				s.logger.Error().Err(err).Msg("failed to persist decision")
				s.eventBus.PublishError("database", "failed to persist decision", err)
			}
		}()
	}
	if s.notifier != nil {
		go func() {
			if err := s.notifier.SendDecision(a, decision); err != nil {
				s.logger.Error().Err(err).Msg("failed to send decision notification")
				s.eventBus.PublishError("notification", "failed to send decision", err)
			}
		}()
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "decision": decision})
}

// handleBacktest ingests an exported TradingView strategy tester report and
// refreshes the historical stats used as prompt priors.
func (s *Server) handleBacktest(c *gin.Context) {
	tickerHint := strings.ToUpper(strings.TrimSpace(c.Query("ticker")))
	contentType := c.GetHeader("Content-Type")

	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "empty_payload"})
		return
	}

	stats, err := backtest.Process(raw, contentType, tickerHint)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", tickerHint).Msg("backtest upload rejected")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	totalTrades := 0
	if s.statsStore != nil {
		for i := range stats {
			if err := s.statsStore.SaveStats(c.Request.Context(), &stats[i]); err != nil {
				s.logger.Error().Err(err).
					Str("ticker", stats[i].Ticker).
					Str("pattern", stats[i].Pattern).
					Msg("failed to persist backtest stats")
			}
		}
	}
	for i := range stats {
		totalTrades += stats[i].TotalTrades
	}

	s.logger.Info().
		Str("ticker", tickerHint).
		Int("patterns", len(stats)).
		Int("total_trades", totalTrades).
		Msg("backtest processed")
	s.eventBus.PublishBacktestProcessed(tickerHint, len(stats), totalTrades)

	c.JSON(http.StatusOK, gin.H{"ok": true, "summary": stats})
}

// handleDecisions returns recent audit rows from the decision store.
func (s *Server) handleDecisions(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "audit_store_disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	ticker := strings.ToUpper(strings.TrimSpace(c.Query("ticker")))

	records, err := s.repo.RecentDecisions(c.Request.Context(), limit, ticker)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load recent decisions")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "query_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "decisions": records})
}
