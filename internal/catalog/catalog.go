// Package catalog fetches and caches the list of selectable chat models from
// the configured providers. Results are merged with a pinned set so the
// selector is never empty, even with no keys or no network.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTTL = 10 * time.Minute

	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	geminiModelsURL      = "https://generativelanguage.googleapis.com/v1beta/models"
)

// Model is one selectable entry.
type Model struct {
	Value       string
	Label       string
	Description string
	Provider    string
	Recommended bool
}

// Keys carries the credentials the fetch uses. The cache is keyed by a hash
// of these values, so changing a key invalidates it.
type Keys struct {
	OpenAIKey     string
	GeminiKey     string
	OpenAIBaseURL string
}

// pinnedModels are always present and listed first, newest-capability first.
var pinnedModels = []Model{
	{Value: "gemini-3-flash-preview", Label: "Gemini 3 Flash", Description: "Fast frontier Gemini", Provider: "gemini", Recommended: true},
	{Value: "gpt-5.2", Label: "GPT-5.2", Description: "Frontier OpenAI model", Provider: "openai", Recommended: true},
	{Value: "gemini-2.5-flash-lite", Label: "Gemini 2.5 Flash Lite", Description: "Cheap and quick", Provider: "gemini"},
	{Value: "gpt-5-mini", Label: "GPT-5 Mini", Description: "Cheap and quick", Provider: "openai"},
}

type cacheEntry struct {
	keyHash  uint64
	storedAt time.Time
	models   []Model
}

// Catalog caches fetched model lists for a TTL.
type Catalog struct {
	httpClient *http.Client
	ttl        time.Duration

	mu     sync.Mutex
	cached *cacheEntry
}

func New(httpClient *http.Client) *Catalog {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Catalog{httpClient: httpClient, ttl: defaultTTL}
}

// Pinned returns the built-in model set.
func Pinned() []Model {
	out := make([]Model, len(pinnedModels))
	copy(out, pinnedModels)
	return out
}

// Models returns the merged model list for the given keys, fetching from each
// provider with a configured key and falling back to the pinned set on any
// failure. Results are cached per key-set until the TTL expires.
func (c *Catalog) Models(ctx context.Context, keys Keys) []Model {
	hash := hashKeys(keys)

	c.mu.Lock()
	if e := c.cached; e != nil && e.keyHash == hash && time.Since(e.storedAt) < c.ttl {
		models := make([]Model, len(e.models))
		copy(models, e.models)
		c.mu.Unlock()
		return models
	}
	c.mu.Unlock()

	var fetched []Model
	if strings.TrimSpace(keys.OpenAIKey) != "" {
		if models, err := c.fetchOpenAIModels(ctx, keys); err == nil {
			fetched = append(fetched, models...)
		}
	}
	if strings.TrimSpace(keys.GeminiKey) != "" {
		if models, err := c.fetchGeminiModels(ctx, keys.GeminiKey); err == nil {
			fetched = append(fetched, models...)
		}
	}

	merged := applyPinned(fetched)

	c.mu.Lock()
	c.cached = &cacheEntry{keyHash: hash, storedAt: time.Now(), models: merged}
	c.mu.Unlock()

	out := make([]Model, len(merged))
	copy(out, merged)
	return out
}

// applyPinned puts the pinned models first and appends fetched models that
// are not already pinned, preserving fetch order.
func applyPinned(fetched []Model) []Model {
	out := Pinned()
	seen := make(map[string]bool, len(out))
	for _, m := range out {
		seen[m.Value] = true
	}
	for _, m := range fetched {
		if seen[m.Value] {
			continue
		}
		seen[m.Value] = true
		out = append(out, m)
	}
	return out
}

func hashKeys(keys Keys) uint64 {
	h := fnv.New64a()
	io.WriteString(h, keys.OpenAIKey)
	io.WriteString(h, "\x00")
	io.WriteString(h, keys.GeminiKey)
	io.WriteString(h, "\x00")
	io.WriteString(h, keys.OpenAIBaseURL)
	return h.Sum64()
}

func (c *Catalog) fetchOpenAIModels(ctx context.Context, keys Keys) ([]Model, error) {
	base := strings.TrimSpace(keys.OpenAIBaseURL)
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(keys.OpenAIKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai models: status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Data))
	for _, entry := range payload.Data {
		id := strings.TrimSpace(entry.ID)
		if !openaiModelAllowed(id) {
			continue
		}
		models = append(models, Model{Value: id, Label: id, Provider: "openai"})
	}
	return models, nil
}

// openaiModelAllowed filters the OpenAI model list down to chat-capable
// entries: gpt-*, chatgpt-* and o* families, minus anything that is an
// image, audio, embedding or moderation variant.
func openaiModelAllowed(id string) bool {
	lower := strings.ToLower(id)
	if !strings.HasPrefix(lower, "gpt-") && !strings.HasPrefix(lower, "chatgpt-") && !strings.HasPrefix(lower, "o") {
		return false
	}
	for _, deny := range []string{
		"image", "audio", "embed", "moderation", "realtime",
		"tts", "whisper", "transcribe", "dall-e",
	} {
		if strings.Contains(lower, deny) {
			return false
		}
	}
	return true
}

func (c *Catalog) fetchGeminiModels(ctx context.Context, apiKey string) ([]Model, error) {
	endpoint := geminiModelsURL + "?key=" + url.QueryEscape(strings.TrimSpace(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini models: status %d", resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			Description                string   `json:"description"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Models))
	for _, entry := range payload.Models {
		supported := false
		for _, method := range entry.SupportedGenerationMethods {
			if method == "generateContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		id := strings.TrimPrefix(strings.TrimSpace(entry.Name), "models/")
		if id == "" {
			continue
		}
		label := strings.TrimSpace(entry.DisplayName)
		if label == "" {
			label = id
		}
		models = append(models, Model{
			Value:       id,
			Label:       label,
			Description: strings.TrimSpace(entry.Description),
			Provider:    "gemini",
		})
	}
	return models, nil
}
