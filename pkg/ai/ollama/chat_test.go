package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookrel/backend/pkg/ai"
)

func TestGenerateCompletionWithFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["format"] == nil {
			t.Errorf("expected a format schema in the request")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama",
			"message":           map[string]any{"role": "assistant", "content": `{"characters":["전우치"],"relationships":[]}`},
			"done":              true,
			"prompt_eval_count": 20,
			"eval_count":        8,
			"total_duration":    int64(2_000_000_000),
		})
	}))
	defer srv.Close()

	client, err := NewGraphOllamaClient(NewGraphOllamaClientParams{
		ExtractionModel:       "llama",
		BaseURL:               srv.URL,
		MaxConcurrentRequests: 2,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var out ai.ExtractionResponse
	if err := client.GenerateCompletionWithFormat(context.Background(), "extract_relations", "test", "chapter", &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(out.Characters) != 1 || out.Characters[0] != "전우치" {
		t.Fatalf("unexpected output %+v", out)
	}

	m := client.GetMetrics()
	if m.TotalTokens != 28 || m.DurationMs != 2000 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestGenerateCompletionWithFormat_RejectsNonPointer(t *testing.T) {
	client, _ := NewGraphOllamaClient(NewGraphOllamaClientParams{})
	var out ai.ExtractionResponse
	if err := client.GenerateCompletionWithFormat(context.Background(), "n", "d", "p", out); err == nil {
		t.Fatal("expected error for non-pointer output")
	}
}
