package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestOpenAIModelAllowed(t *testing.T) {
	t.Parallel()
	cases := []struct {
		id   string
		want bool
	}{
		{"gpt-5-mini", true},
		{"gpt-5.2", true},
		{"chatgpt-4o-latest", true},
		{"o4-mini", true},
		{"gpt-image-1", false},
		{"gpt-4o-audio-preview", false},
		{"gpt-4o-realtime-preview", false},
		{"text-embedding-3-small", false},
		{"omni-moderation-latest", false},
		{"tts-1", false},
		{"whisper-1", false},
		{"dall-e-3", false},
		{"gpt-4o-transcribe", false},
		{"davinci-002", false},
	}
	for _, tc := range cases {
		if got := openaiModelAllowed(tc.id); got != tc.want {
			t.Fatalf("openaiModelAllowed(%q) = %t, want %t", tc.id, got, tc.want)
		}
	}
}

func TestApplyPinnedOrderingAndDedup(t *testing.T) {
	t.Parallel()
	fetched := []Model{
		{Value: "gpt-5-mini", Provider: "openai"}, // already pinned
		{Value: "gpt-5-nano", Provider: "openai"},
		{Value: "gemini-2.0-flash", Provider: "gemini"},
	}
	out := applyPinned(fetched)

	pinned := Pinned()
	if len(out) != len(pinned)+2 {
		t.Fatalf("expected %d models, got %+v", len(pinned)+2, out)
	}
	for i, m := range pinned {
		if out[i].Value != m.Value {
			t.Fatalf("pinned model %d = %q, want %q", i, out[i].Value, m.Value)
		}
	}
	if out[len(pinned)].Value != "gpt-5-nano" || out[len(pinned)+1].Value != "gemini-2.0-flash" {
		t.Fatalf("fetched order not preserved: %+v", out[len(pinned):])
	}
}

func TestModelsWithoutKeysReturnsPinned(t *testing.T) {
	t.Parallel()
	c := New(nil)
	got := c.Models(context.Background(), Keys{})

	pinned := Pinned()
	if len(got) != len(pinned) {
		t.Fatalf("expected pinned set only, got %+v", got)
	}
	for i := range pinned {
		if got[i].Value != pinned[i].Value {
			t.Fatalf("model %d = %q, want %q", i, got[i].Value, pinned[i].Value)
		}
	}
}

func TestModelsFetchesFiltersAndCaches(t *testing.T) {
	t.Parallel()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "gpt-5-nano"},
				{"id": "gpt-image-1"},
				{"id": "gpt-5-mini"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.Client())
	keys := Keys{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL}

	got := c.Models(context.Background(), keys)
	found := map[string]bool{}
	for _, m := range got {
		found[m.Value] = true
	}
	if !found["gpt-5-nano"] {
		t.Fatalf("fetched model missing: %+v", got)
	}
	if found["gpt-image-1"] {
		t.Fatalf("image model not filtered: %+v", got)
	}

	// Second call within the TTL hits the cache.
	c.Models(context.Background(), keys)
	if n := requests.Load(); n != 1 {
		t.Fatalf("expected 1 upstream request, got %d", n)
	}

	// Changing the key invalidates the cache.
	c.Models(context.Background(), Keys{OpenAIKey: "sk-other", OpenAIBaseURL: srv.URL})
	if n := requests.Load(); n != 2 {
		t.Fatalf("expected refetch after key change, got %d requests", n)
	}
}

func TestModelsExpiredCacheRefetches(t *testing.T) {
	t.Parallel()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"id": "gpt-5-nano"}}})
	}))
	defer srv.Close()

	c := New(srv.Client())
	c.ttl = 10 * time.Millisecond
	keys := Keys{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL}

	c.Models(context.Background(), keys)
	time.Sleep(20 * time.Millisecond)
	c.Models(context.Background(), keys)

	if n := requests.Load(); n != 2 {
		t.Fatalf("expected refetch after TTL, got %d requests", n)
	}
}

func TestModelsFetchFailureFallsBackToPinned(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.Client())
	got := c.Models(context.Background(), Keys{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL})
	if len(got) != len(Pinned()) {
		t.Fatalf("expected pinned fallback, got %+v", got)
	}
}
