// Package chat implements the streaming multi-provider chat engine behind
// the quickshell AI panel: a single conversation, a busy-gated submit path,
// cached provider clients, and throttled incremental delivery of streamed
// replies to an observer.
package chat

import (
	"strings"
	"sync"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Kind separates real conversation turns from UI-only notices. Info messages
// are never sent to a provider and are skipped by CopyAllText.
type Kind string

const (
	KindChat Kind = "chat"
	KindInfo Kind = "info"
)

// Message is one row of the conversation. Bodies are mutated in place only to
// append streamed text; messages are never reordered.
type Message struct {
	ID     string `json:"messageId"`
	Sender Sender `json:"sender"`
	Body   string `json:"body"`
	Kind   Kind   `json:"kind"`
}

// Attachment is the serialized form exchanged with the hosting UI.
// It is either an image (mime + base64 payload) or a PDF (mime/path); anything
// else is dropped during request assembly.
type Attachment struct {
	Mime string `json:"mime"`
	B64  string `json:"b64"`
	Path string `json:"path,omitempty"`
}

// Config is the externally supplied session configuration. It is read fresh
// on every submit; mutating it never affects an in-flight request.
type Config struct {
	ModelID       string
	SystemPrompt  string
	OpenAIKey     string
	GeminiKey     string
	OpenAIBaseURL string
}

// State is the session's runtime diagnostics. Busy is the sole concurrency
// gate: while true, new submits are silently dropped.
type State struct {
	Busy   bool
	Status string
	Error  string

	LastRequestAt time.Time
	LastSuccessAt time.Time
	LastErrorAt   time.Time
	LastLatencyMs int64

	LastVerifyAt        time.Time
	LastVerifyOK        bool
	LastVerifyLatencyMs int64
}

// ConfigStore holds the mutable session configuration. The hosting layer and
// the command router both write it; the session reads a snapshot per submit.
type ConfigStore struct {
	mu  sync.Mutex
	cfg Config
}

func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

func (s *ConfigStore) Get() Config {
	if s == nil {
		return Config{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *ConfigStore) Set(cfg Config) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *ConfigStore) SetModel(modelID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ModelID = strings.TrimSpace(modelID)
}

func (s *ConfigStore) SetSystemPrompt(prompt string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SystemPrompt = prompt
}

// IsGeminiModel reports whether a model id routes to the Gemini provider.
// Provider selection is purely a function of the id prefix.
func IsGeminiModel(modelID string) bool {
	return strings.HasPrefix(strings.TrimSpace(modelID), "gemini")
}

func requiredKeyName(modelID string) string {
	if IsGeminiModel(modelID) {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func hasRequiredKey(cfg Config) bool {
	if IsGeminiModel(cfg.ModelID) {
		return strings.TrimSpace(cfg.GeminiKey) != ""
	}
	return strings.TrimSpace(cfg.OpenAIKey) != ""
}

func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
