package chat

import (
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		kind  commandKind
		arg   string
	}{
		{"/help", cmdHelp, ""},
		{"/HELP", cmdHelp, ""},
		{"/model gpt-5.2", cmdModel, "gpt-5.2"},
		{"/mood be terse and direct", cmdMood, "be terse and direct"},
		{"/clear", cmdClear, ""},
		{"/copy", cmdCopy, ""},
		{"/status", cmdStatus, ""},
		{"/debug", cmdDebug, ""},
		{"/nonsense", cmdUnknown, ""},
		{"/modeling", cmdUnknown, ""},
	}
	for _, tc := range cases {
		kind, arg := parseCommand(tc.input)
		if kind != tc.kind || arg != tc.arg {
			t.Fatalf("parseCommand(%q) = (%v, %q), want (%v, %q)", tc.input, kind, arg, tc.kind, tc.arg)
		}
	}
}

func TestHelpCommand(t *testing.T) {
	t.Parallel()
	s, _ := newTestSession(t, testConfig(), &fakeProvider{})

	s.SubmitInput("/help")
	barrier(s)

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Kind != KindInfo {
		t.Fatalf("expected one info message, got %+v", msgs)
	}
	for _, want := range []string{"/model", "/mood", "/clear", "/copy", "/status", "/debug"} {
		if !strings.Contains(msgs[0].Body, want) {
			t.Fatalf("help missing %q:\n%s", want, msgs[0].Body)
		}
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()
	s, _ := newTestSession(t, testConfig(), &fakeProvider{})

	s.SubmitInput("/status")
	barrier(s)

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %+v", msgs)
	}
	body := msgs[0].Body
	if !strings.Contains(body, "gpt-5-mini") || !strings.Contains(body, "Provider: OpenAI") {
		t.Fatalf("bad status body:\n%s", body)
	}
	if !strings.Contains(body, "OpenAI key: set") || !strings.Contains(body, "Gemini key: not set") {
		t.Fatalf("bad key presence:\n%s", body)
	}
}

func TestModelCommandSwitchesAndClears(t *testing.T) {
	t.Parallel()
	cfg := NewConfigStore(testConfig())
	s := NewSession(Options{
		Config:      cfg,
		NewProvider: func(Config) (ChatProvider, error) { return &fakeProvider{}, nil },
		TempDir:     t.TempDir(),
	})
	defer s.Close()

	s.AppendInfo("old history")
	s.SubmitInput("/model gemini-2.5-flash-lite")
	barrier(s)

	if got := cfg.Get().ModelID; got != "gemini-2.5-flash-lite" {
		t.Fatalf("model = %q", got)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "Switched to gemini-2.5-flash-lite") {
		t.Fatalf("bad messages after switch: %+v", msgs)
	}
}

func TestModelCommandWithoutArgShowsUsage(t *testing.T) {
	t.Parallel()
	s, _ := newTestSession(t, testConfig(), &fakeProvider{})

	s.SubmitInput("/model")
	barrier(s)

	msgs := s.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "Usage: /model") {
		t.Fatalf("bad usage message: %+v", msgs)
	}
	if !strings.Contains(msgs[0].Body, "gpt-5-mini") {
		t.Fatalf("usage should show current model: %+v", msgs)
	}
}

func TestMoodCommandSetsSystemPrompt(t *testing.T) {
	t.Parallel()
	cfg := NewConfigStore(testConfig())
	p := &fakeProvider{deltas: []string{"ok"}}
	s := NewSession(Options{
		Config:      cfg,
		NewProvider: func(Config) (ChatProvider, error) { return p, nil },
		TempDir:     t.TempDir(),
	})
	defer s.Close()

	s.SubmitInput("/mood be terse")
	barrier(s)
	if got := cfg.Get().SystemPrompt; got != "be terse" {
		t.Fatalf("system prompt = %q", got)
	}

	s.SubmitInput("hi")
	barrier(s)
	waitIdle(t, s)
	if got := p.request().SystemPrompt; got != "be terse" {
		t.Fatalf("request system prompt = %q", got)
	}
}

func TestClearCommand(t *testing.T) {
	t.Parallel()
	s, obs := newTestSession(t, testConfig(), &fakeProvider{})

	s.AppendInfo("one")
	s.AppendInfo("two")
	s.SubmitInput("/clear")
	barrier(s)

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Body != "Chat cleared." {
		t.Fatalf("bad messages after clear: %+v", msgs)
	}
	if obs.resetCount() != 1 {
		t.Fatalf("expected 1 reset, got %d", obs.resetCount())
	}
}

func TestCopyCommandDeliversExport(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{deltas: []string{"answer"}}
	s, obs := newTestSession(t, testConfig(), p)

	s.SubmitInput("question")
	barrier(s)
	waitIdle(t, s)

	s.SubmitInput("/copy")
	barrier(s)

	copies := obs.copies()
	if len(copies) != 1 || copies[0] != "*user*: question\n*assistant*: answer" {
		t.Fatalf("bad copy payload: %q", copies)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	s, _ := newTestSession(t, testConfig(), &fakeProvider{})

	s.SubmitInput("/frobnicate now")
	barrier(s)

	msgs := s.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "Unknown command: /frobnicate") {
		t.Fatalf("bad unknown command reply: %+v", msgs)
	}
}

func TestDebugCommandRunsVerify(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	s, _ := newTestSession(t, testConfig(), p)

	s.SubmitInput("/debug")
	barrier(s)

	msgs := s.Messages()
	if len(msgs) == 0 || !strings.Contains(msgs[0].Body, "Running connectivity verify in background") {
		t.Fatalf("bad debug snapshot: %+v", msgs)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		barrier(s)
		msgs = s.Messages()
		if len(msgs) >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if len(msgs) < 2 || !strings.Contains(msgs[1].Body, "Verify: ok") {
		t.Fatalf("verify result missing: %+v", msgs)
	}

	state := s.StateSnapshot()
	if state.LastVerifyAt.IsZero() || !state.LastVerifyOK {
		t.Fatalf("verify state not recorded: %+v", state)
	}
}

func TestDebugCommandSkipsVerifyWithoutKey(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	s, _ := newTestSession(t, Config{ModelID: "gpt-5-mini"}, p)

	s.SubmitInput("/debug")
	barrier(s)

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[1].Body != "Verify skipped: OPENAI_API_KEY not set." {
		t.Fatalf("bad skip message: %+v", msgs)
	}
	p.mu.Lock()
	verifies := p.verifies
	p.mu.Unlock()
	if verifies != 0 {
		t.Fatalf("verify ran without a key")
	}
}
