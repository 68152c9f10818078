package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func openAITestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(&ClientConfig{
		Provider:  ProviderOpenAI,
		APIKey:    "test-key",
		Model:     "gpt-4o",
		BaseURL:   srv.URL,
		MaxTokens: 500,
		Timeout:   2 * time.Second,
	})
	return srv, client
}

func TestCompleteOpenAI(t *testing.T) {
	var gotAuth string
	var gotReq OpenAIRequest
	_, client := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "LONG with conviction"}},
			},
		})
	})

	got, err := client.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "LONG with conviction" {
		t.Errorf("unexpected content: %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("expected system+user messages, got %+v", gotReq.Messages)
	}
}

func TestCompleteClaude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}

		var req ClaudeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.System == "" {
			t.Error("system prompt should be set on the request")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "SHORT setup"}},
		})
	}))
	defer srv.Close()

	client := NewClient(&ClientConfig{
		Provider: ProviderClaude,
		APIKey:   "test-key",
		Model:    "claude-3-5-sonnet-20241022",
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
	})

	got, err := client.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SHORT setup" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestCompleteHTTPErrorStatus(t *testing.T) {
	_, client := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Incorrect API key provided"}}`))
	})

	_, err := client.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.Status)
	}
	if apiErr.Message != "Incorrect API key provided" {
		t.Errorf("expected extracted message, got %q", apiErr.Message)
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	_, client := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})

	_, err := client.Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	_, client := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, err := client.Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestCompleteUnsupportedProvider(t *testing.T) {
	client := NewClient(&ClientConfig{Provider: Provider("mystery"), APIKey: "k"})

	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Error("unknown provider should error")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"auth 401", &APIError{Provider: ProviderOpenAI, Status: 401}, ErrClassAuth},
		{"auth 403", &APIError{Provider: ProviderOpenAI, Status: 403}, ErrClassAuth},
		{"rate limit", &APIError{Provider: ProviderClaude, Status: 429}, ErrClassRateLimit},
		{"server error", &APIError{Provider: ProviderClaude, Status: 500}, ErrClassUnknown},
		{"deadline", context.DeadlineExceeded, ErrClassTimeout},
		{"malformed", ErrMalformedResponse, ErrClassMalformed},
		{"plain", errors.New("boom"), ErrClassUnknown},
	}

	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("%s: Classify = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestIsConfigured(t *testing.T) {
	if NewClient(&ClientConfig{Provider: ProviderOpenAI}).IsConfigured() {
		t.Error("missing key should report unconfigured")
	}
	if !NewClient(&ClientConfig{Provider: ProviderOpenAI, APIKey: "k"}).IsConfigured() {
		t.Error("key present should report configured")
	}
}
