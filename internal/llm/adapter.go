package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tradingview-agent/internal/circuit"
	"tradingview-agent/internal/ensemble"
)

// Adapter implements ensemble.Adapter over one backend client. It recovers
// every failure at this boundary: a broken or unavailable model yields a
// failed IGNORE/LOW result, never an error that could block the join or bias
// the vote toward a trade. A per-backend circuit breaker skips a model that
// keeps failing so a dead backend does not burn the call timeout on every
// alert.
type Adapter struct {
	name    string
	client  *Client
	breaker *circuit.Breaker
	logger  zerolog.Logger
}

// NewAdapter wraps a client as a named ensemble adapter.
func NewAdapter(name string, client *Client, logger zerolog.Logger) *Adapter {
	return &Adapter{
		name:    name,
		client:  client,
		breaker: circuit.NewBreaker(nil),
		logger:  logger.With().Str("component", "llm").Str("model", name).Logger(),
	}
}

// Name returns the configured model identifier.
func (a *Adapter) Name() string { return a.name }

// Evaluate calls the backend and parses its reply into a canonical Decision.
func (a *Adapter) Evaluate(ctx context.Context, systemPrompt, userContext string) ensemble.ModelResult {
	if ok, reason := a.breaker.Allow(); !ok {
		a.logger.Warn().Str("reason", reason).Msg("model call skipped")
		return ensemble.FailedResult(a.name, fmt.Sprintf("%s: %s", ErrClassUnknown, reason))
	}

	raw, err := a.client.Complete(ctx, systemPrompt, userContext)
	if err != nil {
		class := Classify(err)
		a.logger.Warn().Err(err).Str("class", string(class)).Msg("model call failed")
		a.breaker.RecordFailure(string(class))
		return ensemble.FailedResult(a.name, fmt.Sprintf("%s: %v", class, err))
	}
	a.breaker.RecordSuccess()

	decision := ensemble.Parse(raw)
	a.logger.Debug().
		Str("direction", string(decision.Direction)).
		Str("confidence", string(decision.Confidence)).
		Msg("model decision parsed")
	return ensemble.ModelResult{
		Model:    a.name,
		Decision: decision,
		Success:  true,
	}
}
