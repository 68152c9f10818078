// Package ensemble implements the multi-model consensus engine: it fans one
// alert out to every configured LLM backend concurrently, parses their
// heterogeneous replies into a canonical Decision, and reduces them to a
// single weighted consensus. Ambiguity anywhere in the pipeline resolves
// toward IGNORE, never toward a live trade.
package ensemble

import (
	"regexp"
	"strings"
)

// Direction is the trade bias classification.
type Direction string

const (
	DirectionLong   Direction = "LONG"
	DirectionShort  Direction = "SHORT"
	DirectionIgnore Direction = "IGNORE"
)

// ParseDirection maps a raw token to a Direction, case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG":
		return DirectionLong, true
	case "SHORT":
		return DirectionShort, true
	case "IGNORE":
		return DirectionIgnore, true
	default:
		return DirectionIgnore, false
	}
}

// Confidence is the per-model confidence label.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Score maps a confidence label to its ordinal used in weighted aggregation.
func (c Confidence) Score() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// ParseConfidence maps a raw token to a Confidence, case-insensitively.
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return ConfidenceLow, true
	case "MEDIUM", "MED":
		return ConfidenceMedium, true
	case "HIGH":
		return ConfidenceHigh, true
	default:
		return ConfidenceLow, false
	}
}

// MaxNotesLen bounds the free-text notes carried on every Decision.
const MaxNotesLen = 500

// Decision is the canonical per-model output. Constructed once by the parser
// and never mutated afterwards. If Direction is IGNORE all four numeric trade
// levels are nil; Notes is never empty.
type Decision struct {
	Direction      Direction  `json:"direction"`
	Confidence     Confidence `json:"confidence"`
	Entry          *float64   `json:"entry"`
	Stop           *float64   `json:"stop"`
	TP1            *float64   `json:"tp1"`
	TP2            *float64   `json:"tp2"`
	SingleOption   string     `json:"single_option,omitempty"`
	VerticalSpread string     `json:"vertical_spread,omitempty"`
	Notes          string     `json:"notes"`
}

// ModelResult wraps one backend's Decision with its identity and configured
// weight. Exactly one of a valid Decision or Error is meaningful; failures
// carry an IGNORE/LOW decision so they can never push the ensemble toward a
// trade.
type ModelResult struct {
	Model    string   `json:"model"`
	Weight   float64  `json:"weight"`
	Decision Decision `json:"decision"`
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
}

// FailedResult builds the fail-closed ModelResult for a backend error.
func FailedResult(model, reason string) ModelResult {
	notes := reason
	if notes == "" {
		notes = "model call failed"
	}
	return ModelResult{
		Model:   model,
		Success: false,
		Error:   reason,
		Decision: Decision{
			Direction:  DirectionIgnore,
			Confidence: ConfidenceLow,
			Notes:      truncateNotes(notes),
		},
	}
}

// EnsembleDecision is the engine's final output for one alert: the consensus
// plus the full ordered per-model detail for display and audit.
type EnsembleDecision struct {
	Direction          Direction         `json:"direction"`
	Confidence         Confidence        `json:"confidence"`
	Reasoning          string            `json:"reasoning"`
	ModelDetails       []ModelResult     `json:"model_details"`
	ConsensusBreakdown map[Direction]int `json:"consensus_breakdown"`
}

// Representative returns the first successful model decision that agrees with
// the consensus direction, which carries the trade levels to display. Returns
// nil when no model agrees (the degenerate all-failed case).
func (d *EnsembleDecision) Representative() *Decision {
	for i := range d.ModelDetails {
		r := &d.ModelDetails[i]
		if r.Success && r.Decision.Direction == d.Direction {
			return &r.Decision
		}
	}
	return nil
}

// HistoricalPrior summarizes backtested performance of a (ticker, pattern)
// pair, injected into the prompt context as an edge hint.
type HistoricalPrior struct {
	TotalTrades int      `json:"total_trades"`
	WinratePct  float64  `json:"winrate_pct"`
	AvgRR       *float64 `json:"avg_rr"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func truncateNotes(s string) string {
	s = normalizeText(s)
	if len(s) > MaxNotesLen {
		return s[:MaxNotesLen-3] + "..."
	}
	return s
}
