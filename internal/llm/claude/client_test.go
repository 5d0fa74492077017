package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linnemanlabs/warden/internal/triage"
)

func classifyReq() *triage.ClassifyRequest {
	return &triage.ClassifyRequest{
		Model:       "claude-sonnet-4-20250514",
		System:      "policy text",
		Prompt:      "brief text",
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

func messageJSON(text string) map[string]any {
	return map[string]any{
		"id":          "msg_01",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-sonnet-4-20250514",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

func TestClassify_RequestShape(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageJSON(`[{"cve":"CVE-2024-0001"}]`))
	}))
	defer srv.Close()

	raw, err := New("sk-ant-test", srv.URL).Classify(context.Background(), classifyReq())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if raw != `[{"cve":"CVE-2024-0001"}]` {
		t.Errorf("raw = %q", raw)
	}
	if got["model"] != "claude-sonnet-4-20250514" {
		t.Errorf("model = %v", got["model"])
	}
	if got["temperature"] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got["temperature"])
	}
	msgs, ok := got["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("messages = %v, want single user message", got["messages"])
	}
	if got["system"] == nil {
		t.Error("expected system prompt to be set")
	}
}

func TestClassify_ConcatenatesTextBlocks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := messageJSON("")
		body["content"] = []map[string]any{
			{"type": "text", "text": "part one "},
			{"type": "text", "text": "part two"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	raw, err := New("k", srv.URL).Classify(context.Background(), classifyReq())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if raw != "part one part two" {
		t.Errorf("raw = %q, want concatenated text", raw)
	}
}

func TestClassify_APIErrorPropagates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	if _, err := New("bad-key", srv.URL).Classify(context.Background(), classifyReq()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
