package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompleter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "7"}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter("test-key", srv.URL+"/v1")
	choices, err := c.Complete(context.Background(), CompletionRequest{
		Model:       "gpt-3.5-turbo",
		Temperature: 0.1,
		MaxTokens:   4,
		Messages:    []Message{{Role: "system", Content: "rules"}, {Role: "user", Content: "Cinema"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(choices) != 1 || choices[0] != "7" {
		t.Fatalf("choices = %v", choices)
	}
	if got["model"] != "gpt-3.5-turbo" || got["max_tokens"] != float64(4) {
		t.Fatalf("request = %v", got)
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("messages = %v", got["messages"])
	}
}

func TestOpenAICompleter_ZeroTemperatureIsSent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-2", "object": "chat.completion", "choices": [{"index": 0, "message": {"role": "assistant", "content": "0"}}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter("test-key", srv.URL).Complete(context.Background(), CompletionRequest{
		Model:       "gpt-3.5-turbo",
		Temperature: 0,
		MaxTokens:   4,
		Messages:    []Message{{Role: "user", Content: "Taxi"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	temp, ok := got["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request: %v", got)
	}
	if temp <= 0 || temp > 1e-30 {
		t.Fatalf("temperature = %v, want a tiny positive value", temp)
	}
}

func TestOpenAICompleter_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter("bad", srv.URL).Complete(context.Background(), CompletionRequest{
		Model:    "gpt-3.5-turbo",
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
