package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

func TestOpenAI_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `{"tests": []}`},
			}},
		})
	}))
	defer server.Close()

	adapter, err := NewOpenAIAdapter("sk-test", server.URL+"/v1", "gpt-test")
	if err != nil {
		t.Fatal(err)
	}
	out, err := adapter.Generate(context.Background(), entities.CompletionRequest{
		System: "sys",
		Prompt: "generate",
		JSON:   true,
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out != `{"tests": []}` {
		t.Errorf("unexpected output %q", out)
	}
	if got["model"] != "gpt-test" {
		t.Errorf("model not forwarded: %v", got["model"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", got["response_format"])
	}
	if adapter.Name() != "openai:gpt-test" {
		t.Errorf("unexpected name %q", adapter.Name())
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	adapter, _ := NewOpenAIAdapter("sk-test", server.URL+"/v1", "")
	if _, err := adapter.Generate(context.Background(), entities.CompletionRequest{Prompt: "p"}); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIAdapter("", "", ""); err == nil {
		t.Error("expected error without API key")
	}
}

func TestGemini_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"category\": 5}"}]}}]}`))
	}))
	defer server.Close()

	adapter, err := NewGeminiAdapter(context.Background(), "g-key", server.URL, "gemini-test")
	if err != nil {
		t.Fatal(err)
	}
	out, err := adapter.Generate(context.Background(), entities.CompletionRequest{System: "sys", Prompt: "p", JSON: true})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out != `{"category": 5}` {
		t.Errorf("unexpected output %q", out)
	}
	if _, ok := got["systemInstruction"]; !ok {
		t.Errorf("system instruction not sent: %v", got)
	}
}

func TestGemini_RequiresKey(t *testing.T) {
	if _, err := NewGeminiAdapter(context.Background(), "", "", ""); err == nil {
		t.Error("expected error without API key")
	}
}

type stubLLM struct {
	delay time.Duration
	err   error
}

func (s stubLLM) Name() string { return "stub:model" }

func (s stubLLM) Generate(ctx context.Context, req entities.CompletionRequest) (string, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "done", s.err
}

type recordingObserver struct {
	providers []string
	errs      []error
}

func (r *recordingObserver) ObserveLLMRequest(provider string, d time.Duration, err error) {
	r.providers = append(r.providers, provider)
	r.errs = append(r.errs, err)
}

func TestInstrumented_ObservesAndTimesOut(t *testing.T) {
	obs := &recordingObserver{}

	ok := NewInstrumented(stubLLM{}, time.Second, obs, nil)
	if out, err := ok.Generate(context.Background(), entities.CompletionRequest{}); err != nil || out != "done" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}

	slow := NewInstrumented(stubLLM{delay: time.Second}, 10*time.Millisecond, obs, nil)
	_, err := slow.Generate(context.Background(), entities.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if len(obs.providers) != 2 || obs.providers[0] != "stub" {
		t.Errorf("unexpected observations %v", obs.providers)
	}
	if obs.errs[0] != nil || obs.errs[1] == nil {
		t.Errorf("unexpected error observations %v", obs.errs)
	}
	if slow.Name() != "stub:model" {
		t.Errorf("name should delegate, got %q", slow.Name())
	}
}
