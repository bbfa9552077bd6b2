package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	statusReady    = "Ready"
	statusThinking = "Thinking..."
	statusError    = "Error"
)

// SubmitInput handles a line of user input: slash commands are routed to the
// command table, anything else is sent to the selected provider.
func (s *Session) SubmitInput(text string) {
	s.post(func() {
		s.doSubmit(text, nil)
	})
}

// SubmitInputWithAttachments is SubmitInput plus a serialized attachment
// list. A malformed list is treated as empty; attachments are ignored for
// commands.
func (s *Session) SubmitInputWithAttachments(text string, attachmentsJSON string) {
	var atts []Attachment
	if raw := strings.TrimSpace(attachmentsJSON); raw != "" {
		_ = json.Unmarshal([]byte(raw), &atts)
	}
	s.post(func() {
		s.doSubmit(text, atts)
	})
}

// doSubmit runs on the session loop.
func (s *Session) doSubmit(text string, atts []Attachment) {
	input := strings.TrimSpace(text)

	// The busy flag is the only gate: no queue, no error to the caller.
	s.mu.Lock()
	busy := s.state.Busy
	s.mu.Unlock()
	if busy {
		return
	}

	if strings.HasPrefix(input, "/") {
		s.runCommand(input)
		return
	}

	// Allow image-only sends.
	if input == "" && len(atts) == 0 {
		return
	}

	cfg := s.cfg.Get()

	// The stored body carries a human-readable marker so the transcript shows
	// what was attached; only the raw input text goes to the provider.
	storedBody := input
	if len(atts) > 0 {
		if storedBody != "" {
			storedBody += "\n\n"
		}
		storedBody += attachmentSummary(atts)
	}
	s.appendMessage(SenderUser, storedBody, KindChat)
	s.scrollToEnd()

	if !hasRequiredKey(cfg) {
		s.appendInfo(fmt.Sprintf("Set %s to enable replies.", requiredKeyName(cfg.ModelID)))
		return
	}

	// History: prior chat turns, excluding the user message just appended.
	// That text is sent as the typed prompt instead.
	s.mu.Lock()
	history := make([]Turn, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Kind != KindChat {
			continue
		}
		history = append(history, Turn{Role: m.Sender, Text: m.Body})
	}
	s.mu.Unlock()
	if len(history) > 0 {
		history = history[:len(history)-1]
	}

	provider, err := s.newProvider(cfg)
	if err != nil {
		s.mu.Lock()
		s.state.Status = statusError
		s.state.Error = err.Error()
		s.mu.Unlock()
		s.appendInfo("Error: " + err.Error())
		return
	}

	s.mu.Lock()
	s.state.Busy = true
	s.state.Error = ""
	s.state.Status = statusThinking
	s.state.LastRequestAt = time.Now()
	s.state.LastLatencyMs = 0
	s.mu.Unlock()

	// Insert the assistant message up-front so streaming can fill it in.
	placeholderID := s.appendMessage(SenderAssistant, "", KindChat)
	s.scrollToEnd()

	started := time.Now()
	go s.runStream(provider, cfg, history, input, atts, placeholderID, started)
}

// runStream executes off the session loop: it builds the prompt parts
// (including blocking PDF extraction), consumes the provider stream through
// the relay, and posts the finalization back to the loop.
func (s *Session) runStream(provider ChatProvider, cfg Config, history []Turn, promptText string, atts []Attachment, placeholderID string, started time.Time) {
	req := Request{
		Model:        strings.TrimSpace(cfg.ModelID),
		SystemPrompt: cfg.SystemPrompt,
		History:      history,
		Parts:        buildPromptParts(promptText, atts, IsGeminiModel(cfg.ModelID), s.attachDir),
	}

	var err error
	if len(req.Parts) == 0 {
		err = errors.New("no valid attachments to send")
	} else {
		relay := newStreamRelay(s, placeholderID)
		err = provider.CompletionStream(context.Background(), req, relay.Push)
		relay.Flush()
	}

	elapsed := time.Since(started)
	s.post(func() {
		s.finishStream(placeholderID, elapsed, err)
	})
}

func (s *Session) finishStream(placeholderID string, elapsed time.Duration, err error) {
	s.mu.Lock()
	s.state.Busy = false
	s.state.LastLatencyMs = elapsed.Milliseconds()
	if err == nil {
		s.state.Status = statusReady
		s.state.Error = ""
		s.state.LastSuccessAt = time.Now()
		s.mu.Unlock()
		s.scrollToEnd()
		return
	}

	cleaned := sanitizeProviderError(err.Error())
	s.state.Status = statusError
	s.state.Error = cleaned
	s.state.LastErrorAt = time.Now()
	s.mu.Unlock()

	s.logger.Warn("chat stream failed", "error", err)

	// Replace the streaming placeholder with an info error message.
	s.removeMessage(placeholderID)
	s.appendInfo("Error: " + cleaned)
}

func attachmentSummary(atts []Attachment) string {
	images, pdfs, others := 0, 0, 0
	for _, a := range atts {
		switch {
		case isPDFAttachment(a):
			pdfs++
		case imageMediaTypeFromMime(a.Mime) != "" && strings.TrimSpace(a.B64) != "":
			images++
		default:
			others++
		}
	}

	parts := make([]string, 0, 3)
	if images > 0 {
		parts = append(parts, fmt.Sprintf("%d image%s", images, plural(images)))
	}
	if pdfs > 0 {
		parts = append(parts, fmt.Sprintf("%d pdf%s", pdfs, plural(pdfs)))
	}
	if others > 0 {
		parts = append(parts, fmt.Sprintf("%d file%s", others, plural(others)))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d attachment%s", len(atts), plural(len(atts))))
	}
	return "[Attached " + strings.Join(parts, ", ") + "]"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
