package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockAdapterResponseOrder(t *testing.T) {
	m := NewMockAdapterWithResponses(map[string]string{"keyed": "from map"}, "fallback")
	m.queue = []string{"first", "second"}

	ctx := context.Background()
	wants := []struct {
		user string
		want string
	}{
		{"anything", "first"},
		{"keyed", "from map"},
		{"anything", "second"},
		{"anything", "fallback"},
	}
	for _, w := range wants {
		resp, err := m.Generate(ctx, Request{User: w.user})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if resp.Content != w.want {
			t.Fatalf("user %q: got %q want %q", w.user, resp.Content, w.want)
		}
		if resp.Model != "mock-1" || resp.Adapter != "mock" {
			t.Fatalf("unexpected response metadata: %+v", resp)
		}
	}
	if got := len(m.Requests()); got != len(wants) {
		t.Fatalf("expected %d recorded requests, got %d", len(wants), got)
	}
}

func TestMockAdapterHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScriptedAdapter("x").Generate(ctx, Request{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel(NewMockAdapter("")); got != "mock-1" {
		t.Fatalf("unexpected default model %q", got)
	}
	if got := DefaultModel(nil); got != "" {
		t.Fatalf("expected empty default model for nil adapter")
	}
}

func TestDeepSeekAdapterSendsSystemAndUser(t *testing.T) {
	var got deepseekRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"tailored"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
	}))
	defer srv.Close()

	a, err := NewDeepSeekAdapter("key", srv.URL+"/")
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	resp, err := a.Generate(context.Background(), Request{Model: "deepseek-chat", System: "sys", User: "usr", Temperature: 0.3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "tailored" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "usr" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.Temperature != 0.3 {
		t.Fatalf("temperature not forwarded: %v", got.Temperature)
	}
}

func TestDeepSeekAdapterClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	a, _ := NewDeepSeekAdapter("key", srv.URL)
	_, err := a.Generate(context.Background(), Request{Model: "deepseek-chat", User: "u"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("expected 429 to be transient: %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"rate limited", &AdapterError{Status: 429}, true},
		{"server error", &AdapterError{Status: 503}, true},
		{"bad request", &AdapterError{Status: 400}, false},
		{"temporary", &AdapterError{Temporary: true}, true},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Fatalf("%s: IsTransient = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConstructorsRequireKeys(t *testing.T) {
	if _, err := NewOpenAIAdapter(""); err == nil {
		t.Fatalf("expected openai key error")
	}
	if _, err := NewAnthropicAdapter(""); err == nil {
		t.Fatalf("expected anthropic key error")
	}
	if _, err := NewGoogleAdapter(context.Background(), ""); err == nil {
		t.Fatalf("expected google key error")
	}
	if _, err := NewDeepSeekAdapter("", ""); err == nil {
		t.Fatalf("expected deepseek key error")
	}
}
