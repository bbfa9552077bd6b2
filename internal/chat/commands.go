package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Magniquick/qs-chat/internal/catalog"
	"github.com/Magniquick/qs-chat/internal/diag"
)

const verifyTimeout = 15 * time.Second

type commandKind int

const (
	cmdUnknown commandKind = iota
	cmdModel
	cmdMood
	cmdClear
	cmdCopy
	cmdHelp
	cmdStatus
	cmdDebug
)

var commandTable = map[string]commandKind{
	"/model":  cmdModel,
	"/mood":   cmdMood,
	"/clear":  cmdClear,
	"/copy":   cmdCopy,
	"/help":   cmdHelp,
	"/status": cmdStatus,
	"/debug":  cmdDebug,
}

// parseCommand splits "/name rest of line" into a command kind and its
// argument. The name is matched case-insensitively.
func parseCommand(input string) (commandKind, string) {
	name, arg, _ := strings.Cut(input, " ")
	kind, ok := commandTable[strings.ToLower(name)]
	if !ok {
		return cmdUnknown, ""
	}
	return kind, strings.TrimSpace(arg)
}

// runCommand executes a slash command. Loop goroutine only.
func (s *Session) runCommand(input string) {
	kind, arg := parseCommand(input)
	switch kind {
	case cmdModel:
		s.cmdModel(arg)
	case cmdMood:
		s.cmdMood(arg)
	case cmdClear:
		s.cmdClear()
	case cmdCopy:
		s.copyRequested(s.CopyAllText())
	case cmdHelp:
		s.cmdHelp()
	case cmdStatus:
		s.cmdStatus()
	case cmdDebug:
		s.cmdDebug()
	default:
		s.appendInfo(fmt.Sprintf("Unknown command: %s. Try /help.", strings.Fields(input)[0]))
	}
}

func (s *Session) cmdModel(arg string) {
	if arg == "" {
		cfg := s.cfg.Get()
		lines := []string{
			"Usage: /model <model-id>",
			"",
			"Current model: " + cfg.ModelID,
			"",
			"Recommended:",
		}
		for _, m := range catalog.Pinned() {
			lines = append(lines, fmt.Sprintf("- `%s` (%s)", m.Value, m.Label))
		}
		s.appendInfo(strings.Join(lines, "\n"))
		return
	}
	s.doResetForModelSwitch(arg)
}

func (s *Session) cmdMood(arg string) {
	if arg == "" {
		s.appendInfo("Usage: /mood <system prompt>")
		return
	}
	s.cfg.SetSystemPrompt(arg)
	s.appendInfo("System prompt updated.")
}

func (s *Session) cmdClear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()

	s.modelReset()
	s.appendInfo("Chat cleared.")
}

func (s *Session) cmdHelp() {
	s.appendInfo(strings.Join([]string{
		"**Commands**",
		"",
		"- `/model <id>` switch model (clears history)",
		"- `/mood <text>` set the system prompt",
		"- `/clear` clear the conversation",
		"- `/copy` copy the conversation",
		"- `/status` show current settings",
		"- `/debug` show diagnostics and verify connectivity",
		"- `/help` this message",
	}, "\n"))
}

func (s *Session) cmdStatus() {
	cfg := s.cfg.Get()
	provider := "OpenAI"
	if IsGeminiModel(cfg.ModelID) {
		provider = "Gemini"
	}
	s.appendInfo(strings.Join([]string{
		"**Current Settings**",
		"",
		"- Model: " + cfg.ModelID,
		"- Provider: " + provider,
		"- System prompt: " + orPlaceholder(strings.TrimSpace(cfg.SystemPrompt), "<none>"),
		"- OpenAI key: " + keyPresence(cfg.OpenAIKey),
		"- Gemini key: " + keyPresence(cfg.GeminiKey),
	}, "\n"))
}

// cmdDebug renders a diagnostics snapshot immediately and kicks off a
// background connectivity verify against the selected provider. The verify
// result lands as a separate info message when it completes.
func (s *Session) cmdDebug() {
	cfg := s.cfg.Get()
	state := s.StateSnapshot()
	openaiCached, geminiCached := s.clients.Cached()

	provider := "OpenAI"
	if IsGeminiModel(cfg.ModelID) {
		provider = "Gemini"
	}

	verifyLine := "never"
	if !state.LastVerifyAt.IsZero() {
		outcome := "failed"
		if state.LastVerifyOK {
			outcome = "ok"
		}
		verifyLine = fmt.Sprintf("%s (%s, %dms)", fmtOptTime(state.LastVerifyAt), outcome, state.LastVerifyLatencyMs)
	}

	s.appendInfo(strings.Join([]string{
		"**Debug**",
		"",
		"- Provider: " + provider,
		"- Model: " + cfg.ModelID,
		"- Busy: " + fmt.Sprintf("%t", state.Busy),
		"- Status: " + state.Status,
		"- Last error: " + orPlaceholder(state.Error, "<none>"),
		"- OpenAI client cached: " + fmt.Sprintf("%t", openaiCached),
		"- Gemini client cached: " + fmt.Sprintf("%t", geminiCached),
		"- OpenAI key: " + keyPresence(cfg.OpenAIKey),
		"- Gemini key: " + keyPresence(cfg.GeminiKey),
		"- OpenAI base URL: " + orPlaceholder(strings.TrimSpace(cfg.OpenAIBaseURL), "<default>"),
		"- Last request: " + fmtOptTime(state.LastRequestAt),
		"- Last success: " + fmtOptTime(state.LastSuccessAt),
		"- Last error at: " + fmtOptTime(state.LastErrorAt),
		"- Last latency: " + fmtLatency(state.LastLatencyMs),
		"- Last verify: " + verifyLine,
		"- Process: " + diag.Collect().String(),
		"",
		"Running connectivity verify in background...",
	}, "\n"))

	if !hasRequiredKey(cfg) {
		s.appendInfo(fmt.Sprintf("Verify skipped: %s not set.", requiredKeyName(cfg.ModelID)))
		return
	}
	provider2, err := s.newProvider(cfg)
	if err != nil {
		s.appendInfo("Verify failed to start: " + err.Error())
		return
	}

	go s.runVerify(provider2)
}

// runVerify executes off the session loop and posts the result back.
func (s *Session) runVerify(provider ChatProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	started := time.Now()
	err := provider.Verify(ctx)
	elapsed := time.Since(started)

	s.post(func() {
		s.mu.Lock()
		s.state.LastVerifyAt = time.Now()
		s.state.LastVerifyOK = err == nil
		s.state.LastVerifyLatencyMs = elapsed.Milliseconds()
		s.mu.Unlock()

		if err == nil {
			s.appendInfo(fmt.Sprintf("**Debug**\n\nVerify: ok (%dms)", elapsed.Milliseconds()))
			return
		}
		s.appendInfo(fmt.Sprintf("**Debug**\n\nVerify: failed (%dms): %s",
			elapsed.Milliseconds(), sanitizeProviderError(err.Error())))
	})
}

func keyPresence(key string) string {
	if strings.TrimSpace(key) == "" {
		return "not set"
	}
	return "set"
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func fmtOptTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func fmtLatency(ms int64) string {
	if ms <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%dms", ms)
}
