package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload["model"] != "test-model" {
			t.Errorf("unexpected model: %v", payload["model"])
		}
		if payload["stream"] != false {
			t.Errorf("expected streaming disabled")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"response": "Score: 80\nReasoning: solid fit",
			"done":     true,
		})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL}, zap.NewNop())
	text, err := client.Generate(context.Background(), "prompt", "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Score: 80\nReasoning: solid fit" {
		t.Fatalf("unexpected response: %q", text)
	}
}

func TestClientGenerateToleratesUnknownFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"response":       "ok",
			"done":           true,
			"total_duration": 123456,
			"context":        []int{1, 2, 3},
		})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL}, zap.NewNop())
	text, err := client.Generate(context.Background(), "prompt", "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" {
		t.Fatalf("unexpected response: %q", text)
	}
}

func TestClientGenerateForwardsAPIKey(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"response": "ok", "done": true})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, APIKey: "cloud-key"}, zap.NewNop())
	if _, err := client.Generate(context.Background(), "prompt", "m"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["api_key"] != "cloud-key" {
		t.Fatalf("expected api key in payload, got %v", got["api_key"])
	}
}

func TestGenerateWithFallbackMovesToNextModel(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		model := payload["model"].(string)
		calls = append(calls, model)

		if model == "big-model" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "fallback text", "done": true})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL}, zap.NewNop())
	result, err := client.GenerateWithFallback(context.Background(), "prompt", []string{"big-model", "small-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Model != "small-model" {
		t.Fatalf("expected fallback model, got %q", result.Model)
	}
	if result.Text != "fallback text" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(calls))
	}
}

func TestGenerateWithFallbackAllModelsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	server.Close() // refuse all connections

	client := NewClient(Config{Endpoint: server.URL, Timeout: time.Second}, zap.NewNop())
	_, err := client.GenerateWithFallback(context.Background(), "prompt", []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error when all models unreachable")
	}
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %T", err)
	}
	if len(unavailable.Attempts) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(unavailable.Attempts))
	}
	for _, attempt := range unavailable.Attempts {
		if attempt.Outcome != OutcomeUnreachable {
			t.Fatalf("expected unreachable outcome, got %s", attempt.Outcome)
		}
	}
}

func TestGenerateWithFallbackTimeoutPerAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Timeout: 50 * time.Millisecond}, zap.NewNop())
	_, err := client.GenerateWithFallback(context.Background(), "prompt", []string{"slow-model"})

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Attempts[0].Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %s", unavailable.Attempts[0].Outcome)
	}
}

func TestGenerateWithFallbackMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL}, zap.NewNop())
	_, err := client.GenerateWithFallback(context.Background(), "prompt", []string{"m"})

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Attempts[0].Outcome != OutcomeMalformed {
		t.Fatalf("expected malformed outcome, got %s", unavailable.Attempts[0].Outcome)
	}
}

func TestGenerateWithFallbackCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{Endpoint: "http://127.0.0.1:0"}, zap.NewNop())
	_, err := client.GenerateWithFallback(ctx, "prompt", []string{"a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", cfg.Endpoint)
	}
	if cfg.Timeout != defaultTimeout {
		t.Fatalf("expected default timeout, got %s", cfg.Timeout)
	}
	if cfg.NumPredict != defaultNumPredict {
		t.Fatalf("expected default num_predict, got %d", cfg.NumPredict)
	}
}
