package ensemble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradingview-agent/internal/alert"
)

// Adapter is one backend's call contract. Evaluate must never panic or
// return an error: transport, auth and parse failures are caught inside the
// adapter and surfaced as a failed ModelResult.
type Adapter interface {
	Name() string
	Evaluate(ctx context.Context, systemPrompt, userContext string) ModelResult
}

// ModelSpec binds an adapter to its identity and voting weight. The slice
// order given to the coordinator is the fixed backend-priority order used for
// tie-breaking and for the stable ordering of ModelDetails.
type ModelSpec struct {
	Name    string
	Weight  float64
	Adapter Adapter
}

// ErrNoModels is returned when decide is invoked with zero configured
// backends. This is the only error Decide can produce; everything else is
// folded into the result.
var ErrNoModels = errors.New("no models configured for ensemble")

// Confidence label thresholds over the weighted average ordinal score.
const (
	highConfidenceThreshold   = 2.5
	mediumConfidenceThreshold = 1.5
)

// Coordinator fans one alert out to every configured backend concurrently
// and reduces the replies to a single weighted consensus decision.
type Coordinator struct {
	models       []ModelSpec
	builder      *ContextBuilder
	systemPrompt string
	callTimeout  time.Duration
	logger       zerolog.Logger
}

// NewCoordinator builds a coordinator over the given ordered model set.
// callTimeout bounds each individual backend call; zero disables the bound.
func NewCoordinator(models []ModelSpec, builder *ContextBuilder, systemPrompt string, callTimeout time.Duration, logger zerolog.Logger) *Coordinator {
	if builder == nil {
		builder = &ContextBuilder{}
	}
	if systemPrompt == "" {
		systemPrompt = SystemPromptUltraSelective
	}
	return &Coordinator{
		models:       models,
		builder:      builder,
		systemPrompt: systemPrompt,
		callTimeout:  callTimeout,
		logger:       logger.With().Str("component", "ensemble").Logger(),
	}
}

// ModelCount reports how many backends are configured.
func (c *Coordinator) ModelCount() int { return len(c.models) }

// Decide runs the full consensus algorithm for one alert: build the shared
// context once, dispatch every backend concurrently, join on all of them
// (partial failure tolerated, nothing cancelled early), then vote.
func (c *Coordinator) Decide(ctx context.Context, a *alert.Alert) (*EnsembleDecision, error) {
	if len(c.models) == 0 {
		return nil, ErrNoModels
	}

	userContext := c.builder.Build(ctx, a)

	results := make([]ModelResult, len(c.models))
	var wg sync.WaitGroup
	for i, spec := range c.models {
		wg.Add(1)
		go func(i int, spec ModelSpec) {
			defer wg.Done()
			callCtx := ctx
			if c.callTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
				defer cancel()
			}
			res := spec.Adapter.Evaluate(callCtx, c.systemPrompt, userContext)
			res.Model = spec.Name
			res.Weight = spec.Weight
			results[i] = res
		}(i, spec)
	}
	wg.Wait()

	decision := c.reduce(results)
	c.logger.Info().
		Str("alert_id", a.ID).
		Str("ticker", a.Ticker).
		Str("direction", string(decision.Direction)).
		Str("confidence", string(decision.Confidence)).
		Int("models", len(results)).
		Msg("ensemble decision")
	return decision, nil
}

// reduce implements the voting step over the ordered, joined results.
func (c *Coordinator) reduce(results []ModelResult) *EnsembleDecision {
	breakdown := make(map[Direction]int)
	validCount := 0
	weightedScore := 0.0
	totalWeight := 0.0

	for _, r := range results {
		if !r.Success {
			continue
		}
		validCount++
		breakdown[r.Decision.Direction]++
		weightedScore += float64(r.Decision.Confidence.Score()) * r.Weight
		totalWeight += r.Weight
	}

	if validCount == 0 {
		return &EnsembleDecision{
			Direction:          DirectionIgnore,
			Confidence:         ConfidenceLow,
			Reasoning:          "All models failed or had errors",
			ModelDetails:       results,
			ConsensusBreakdown: breakdown,
		}
	}

	maxVotes := 0
	for _, count := range breakdown {
		if count > maxVotes {
			maxVotes = count
		}
	}
	// Plurality wins; on an exact tie the earliest-configured model among the
	// tied directions decides. Walking results in configuration order makes
	// that deterministic.
	consensus := DirectionIgnore
	for _, r := range results {
		if r.Success && breakdown[r.Decision.Direction] == maxVotes {
			consensus = r.Decision.Direction
			break
		}
	}

	avgScore := 0.0
	if totalWeight > 0 {
		avgScore = weightedScore / totalWeight
	}
	confidence := ConfidenceLow
	if avgScore >= highConfidenceThreshold {
		confidence = ConfidenceHigh
	} else if avgScore >= mediumConfidenceThreshold {
		confidence = ConfidenceMedium
	}

	return &EnsembleDecision{
		Direction:          consensus,
		Confidence:         confidence,
		Reasoning:          buildReasoning(validCount, len(results), consensus, confidence, breakdown),
		ModelDetails:       results,
		ConsensusBreakdown: breakdown,
	}
}

func buildReasoning(valid, total int, direction Direction, confidence Confidence, breakdown map[Direction]int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ENSEMBLE CONSENSUS: %d/%d models responded. ", valid, total)
	fmt.Fprintf(&sb, "Direction: %s (", direction)
	first := true
	for _, dir := range []Direction{DirectionLong, DirectionShort, DirectionIgnore} {
		count, ok := breakdown[dir]
		if !ok {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %d", dir, count)
		first = false
	}
	fmt.Fprintf(&sb, "). Confidence: %s", confidence)
	return sb.String()
}
