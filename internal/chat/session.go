package chat

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Session owns one conversation and one in-flight request at a time.
//
// All mutations run on a single loop goroutine draining an inbox of posted
// commands; worker goroutines (stream consumption, the verify probe) never
// touch session state directly. Reads take the mutex and are safe from any
// goroutine, including observer callbacks.
type Session struct {
	cfg         *ConfigStore
	obs         Observer
	clip        ClipboardReader
	clients     *ClientCache
	newProvider func(Config) (ChatProvider, error)
	logger      *slog.Logger

	pasteDir  string
	attachDir string

	inbox  chan func()
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	mu        sync.Mutex
	messages  []Message
	state     State
	idCounter uint64
}

// Options configures a Session. Config is required; everything else has a
// usable default.
type Options struct {
	Config    *ConfigStore
	Observer  Observer
	Clipboard ClipboardReader
	Clients   *ClientCache
	Logger    *slog.Logger

	// NewProvider overrides the client cache as the provider source.
	// Used by tests and embedders that bring their own backend.
	NewProvider func(Config) (ChatProvider, error)

	// TempDir is the base for paste/attachment scratch files.
	// Defaults to os.TempDir().
	TempDir string
}

func NewSession(opts Options) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = NewConfigStore(Config{})
	}
	clients := opts.Clients
	if clients == nil {
		clients = NewClientCache()
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = WlClipboard{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tempDir := strings.TrimSpace(opts.TempDir)
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	s := &Session{
		cfg:         cfg,
		obs:         opts.Observer,
		clip:        clip,
		clients:     clients,
		newProvider: opts.NewProvider,
		logger:      logger,
		pasteDir:    filepath.Join(tempDir, "qs-chat-paste"),
		attachDir:   filepath.Join(tempDir, "qs-chat-attach"),
		inbox:       make(chan func(), 128),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		state:       State{Status: "Ready"},
	}
	if s.newProvider == nil {
		s.newProvider = clients.Provider
	}
	go s.loop()
	return s
}

// Close stops the session loop. Operations posted after Close are dropped.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

func (s *Session) loop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case fn := <-s.inbox:
			fn()
		}
	}
}

// post queues a command for the session loop. Commands are applied strictly
// in receipt order.
func (s *Session) post(fn func()) bool {
	if s == nil {
		return false
	}
	select {
	case <-s.stopCh:
		return false
	case s.inbox <- fn:
		return true
	}
}

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []Message {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MessageAt returns the message at a row index, if any.
func (s *Session) MessageAt(index int) (Message, bool) {
	if s == nil {
		return Message{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.messages) {
		return Message{}, false
	}
	return s.messages[index], true
}

// StateSnapshot returns the current runtime state.
func (s *Session) StateSnapshot() State {
	if s == nil {
		return State{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// nextID allocates a message id that is unique and creation-order sortable
// within the session: <unix-millis>-<counter>.
func (s *Session) nextIDLocked() string {
	s.idCounter++
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), s.idCounter)
}

// appendMessage appends a message and notifies the observer.
// Loop goroutine only.
func (s *Session) appendMessage(sender Sender, body string, kind Kind) string {
	s.mu.Lock()
	id := s.nextIDLocked()
	s.messages = append(s.messages, Message{ID: id, Sender: sender, Body: body, Kind: kind})
	idx := len(s.messages) - 1
	s.mu.Unlock()

	s.rowInserted(idx)
	return id
}

// removeMessage removes a message by id. Loop goroutine only.
func (s *Session) removeMessage(id string) bool {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	s.mu.Unlock()

	s.rowRemoved(idx)
	return true
}

func (s *Session) indexOfLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// appendStreamDelta grows a message body in place. No-ops when the message is
// gone (e.g. the placeholder was deleted mid-stream). Loop goroutine only.
func (s *Session) appendStreamDelta(id string, delta string) {
	if delta == "" {
		return
	}
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.messages[idx].Body += delta
	s.mu.Unlock()

	s.rowChanged(idx, "body")
}

// AppendInfo appends an assistant info message.
func (s *Session) AppendInfo(text string) {
	s.post(func() {
		s.appendMessage(SenderAssistant, text, KindInfo)
		s.scrollToEnd()
	})
}

// appendInfo is the loop-side variant used by command handlers.
func (s *Session) appendInfo(text string) {
	s.appendMessage(SenderAssistant, text, KindInfo)
	s.scrollToEnd()
}

// EditMessage replaces a message body in place. It never triggers a resend
// and never invalidates later replies.
func (s *Session) EditMessage(id string, newBody string) {
	s.post(func() {
		s.mu.Lock()
		idx := s.indexOfLocked(strings.TrimSpace(id))
		if idx < 0 {
			s.mu.Unlock()
			return
		}
		s.messages[idx].Body = newBody
		s.mu.Unlock()

		s.rowChanged(idx, "body")
	})
}

// DeleteMessage removes a message by id. No-op if absent.
func (s *Session) DeleteMessage(id string) {
	s.post(func() {
		s.removeMessage(strings.TrimSpace(id))
	})
}

// ResetForModelSwitch clears the conversation and announces the switch.
// Dropped while busy.
func (s *Session) ResetForModelSwitch(modelID string) {
	s.post(func() {
		s.doResetForModelSwitch(strings.TrimSpace(modelID))
	})
}

func (s *Session) doResetForModelSwitch(modelID string) {
	s.mu.Lock()
	if s.state.Busy {
		s.mu.Unlock()
		return
	}
	s.messages = nil
	s.mu.Unlock()

	s.cfg.SetModel(modelID)
	s.modelReset()
	s.appendInfo(fmt.Sprintf("Switched to %s. Chat history cleared.", modelID))
}

// CopyAllText renders the conversation for export: one "*role*: body" line
// per chat message, info messages skipped.
func (s *Session) CopyAllText() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Kind == KindInfo {
			continue
		}
		lines = append(lines, fmt.Sprintf("*%s*: %s", m.Sender, m.Body))
	}
	return strings.Join(lines, "\n")
}

// Regenerate truncates the conversation to the user message preceding the
// given assistant message and resubmits its body as if freshly typed.
// Dropped while busy; no-op unless id names an assistant message with a
// preceding user chat message.
func (s *Session) Regenerate(messageID string) {
	target := strings.TrimSpace(messageID)
	s.post(func() {
		s.mu.Lock()
		if s.state.Busy {
			s.mu.Unlock()
			return
		}
		idx := s.indexOfLocked(target)
		if idx < 0 || s.messages[idx].Sender != SenderAssistant {
			s.mu.Unlock()
			return
		}
		userIdx := -1
		for i := idx - 1; i >= 0; i-- {
			if s.messages[i].Sender == SenderUser && s.messages[i].Kind == KindChat {
				userIdx = i
				break
			}
		}
		if userIdx < 0 {
			s.mu.Unlock()
			return
		}
		prompt := s.messages[userIdx].Body
		s.messages = s.messages[:userIdx+1]
		s.mu.Unlock()

		s.modelReset()
		s.doSubmit(prompt, nil)
	})
}
