package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradingview-agent/internal/ensemble"
)

func adapterForServer(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(&ClientConfig{
		Provider: ProviderOpenAI,
		APIKey:   "test-key",
		Model:    "gpt-4o",
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
	})
	return NewAdapter("gpt-4o", client, zerolog.Nop())
}

func TestAdapterEvaluateSuccess(t *testing.T) {
	a := adapterForServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "{\"direction\":\"long\",\"confidence\":\"high\",\"entry\":10.5,\"stop\":10.0,\"tp1\":11.0,\"tp2\":11.5,\"notes\":\"clean\"}"}}]}`))
	})

	res := a.Evaluate(context.Background(), "system", "context")

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Model != "gpt-4o" {
		t.Errorf("expected model name, got %q", res.Model)
	}
	if res.Decision.Direction != ensemble.DirectionLong {
		t.Errorf("expected LONG, got %s", res.Decision.Direction)
	}
	if res.Decision.Confidence != ensemble.ConfidenceHigh {
		t.Errorf("expected HIGH, got %s", res.Decision.Confidence)
	}
}

func TestAdapterEvaluateAuthFailure(t *testing.T) {
	a := adapterForServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	})

	res := a.Evaluate(context.Background(), "system", "context")

	if res.Success {
		t.Fatal("auth failure must produce a failed result")
	}
	if !strings.HasPrefix(res.Error, "auth:") {
		t.Errorf("error should carry the auth class, got %q", res.Error)
	}
	if res.Decision.Direction != ensemble.DirectionIgnore {
		t.Errorf("failed result must carry IGNORE, got %s", res.Decision.Direction)
	}
	if res.Decision.Confidence != ensemble.ConfidenceLow {
		t.Errorf("failed result must carry LOW, got %s", res.Decision.Confidence)
	}
}

func TestAdapterEvaluateTimeout(t *testing.T) {
	a := adapterForServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"choices": [{"message": {"content": "late"}}]}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := a.Evaluate(ctx, "system", "context")

	if res.Success {
		t.Fatal("timeout must produce a failed result")
	}
	if !strings.HasPrefix(res.Error, "timeout:") {
		t.Errorf("error should carry the timeout class, got %q", res.Error)
	}
}

func TestAdapterEvaluateUnparseableReplyStillSucceeds(t *testing.T) {
	a := adapterForServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "market looks quiet, nothing actionable"}}]}`))
	})

	res := a.Evaluate(context.Background(), "system", "context")

	// A reply that parses to no trade is a valid IGNORE opinion, not a failure.
	if !res.Success {
		t.Fatalf("prose reply should still succeed, got error %q", res.Error)
	}
	if res.Decision.Direction != ensemble.DirectionIgnore {
		t.Errorf("expected IGNORE, got %s", res.Decision.Direction)
	}
}
