package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Magniquick/qs-chat/internal/catalog"
	"github.com/Magniquick/qs-chat/internal/chat"
	"github.com/Magniquick/qs-chat/internal/config"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildTime is set via -ldflags at build time.
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "version":
		fmt.Printf("qs-chat %s (%s) %s\n", Version, Commit, BuildTime)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `qs-chat

Usage:
  qs-chat run [flags]
  qs-chat version

Commands:
  run       Start an interactive chat session in the terminal.
  version   Print build information.

`)
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	model := fs.String("model", "", "Model id (overrides settings file)")
	systemPrompt := fs.String("system-prompt", "", "System prompt (overrides settings file)")
	settingsPath := fs.String("settings", "", "Settings file path (default: ~/.config/qs-chat/settings.yaml)")
	logFormat := fs.String("log-format", "text", "Log format: json|text")
	logLevel := fs.String("log-level", "warn", "Log level: debug|info|warn|error")

	_ = fs.Parse(args)

	logger := newLogger(*logFormat, *logLevel)

	path := strings.TrimSpace(*settingsPath)
	if path == "" {
		var err error
		path, err = config.DefaultSettingsPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	settings, err := config.LoadSettings(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*model) != "" {
		settings.Model = strings.TrimSpace(*model)
	}
	if strings.TrimSpace(*systemPrompt) != "" {
		settings.SystemPrompt = *systemPrompt
	}

	creds := config.CredentialsFromEnv()
	store := chat.NewConfigStore(chat.Config{
		ModelID:       settings.Model,
		SystemPrompt:  settings.SystemPrompt,
		OpenAIKey:     creds.OpenAIKey,
		GeminiKey:     creds.GeminiKey,
		OpenAIBaseURL: creds.OpenAIBaseURL,
	})

	clients := chat.NewClientCache()
	models := catalog.New(clients.HTTPClient())

	obs := &terminalObserver{out: os.Stdout, printed: map[int]int{}, open: -1}
	session := chat.NewSession(chat.Options{
		Config:   store,
		Observer: obs,
		Clients:  clients,
		Logger:   logger,
	})
	obs.session = session
	defer session.Close()

	session.AppendInfo(fmt.Sprintf("Chatting with %s. Type /help for commands.", settings.Model))

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "error: stdin is not a terminal")
		os.Exit(1)
	}

	repl(session, models, store)

	// Persist model/prompt changes made via /model and /mood.
	cfg := store.Get()
	settings.Model = cfg.ModelID
	settings.SystemPrompt = cfg.SystemPrompt
	if err := config.SaveSettings(path, settings); err != nil {
		logger.Warn("failed to save settings", "error", err)
	}
}

func repl(session *chat.Session, models *catalog.Catalog, store *chat.ConfigStore) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "/quit", "/exit":
			return
		case "/models":
			printModels(models, store.Get())
			continue
		}
		session.SubmitInput(line)
		waitForIdle(session)
	}
}

func printModels(models *catalog.Catalog, cfg chat.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	list := models.Models(ctx, catalog.Keys{
		OpenAIKey:     cfg.OpenAIKey,
		GeminiKey:     cfg.GeminiKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	for _, m := range list {
		marker := " "
		if m.Value == cfg.ModelID {
			marker = "*"
		}
		if m.Description != "" {
			fmt.Printf("%s %-28s %s\n", marker, m.Value, m.Description)
		} else {
			fmt.Printf("%s %s\n", marker, m.Value)
		}
	}
}

// waitForIdle blocks until the in-flight request (if any) settles, so the
// prompt does not interleave with streamed output.
func waitForIdle(session *chat.Session) {
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
		if !session.StateSnapshot().Busy {
			// One more settle tick so trailing relay flushes land.
			time.Sleep(60 * time.Millisecond)
			if !session.StateSnapshot().Busy {
				return
			}
		}
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// terminalObserver renders conversation changes to stdout. It tracks how much
// of each row's body has been printed so RowChanged prints only the new tail.
type terminalObserver struct {
	out     *os.File
	session *chat.Session

	printed map[int]int
	open    int // row index currently streaming, -1 when none
}

func (o *terminalObserver) RowInserted(index int) {
	o.closeOpenRow()
	msg, ok := o.session.MessageAt(index)
	if !ok {
		return
	}
	switch {
	case msg.Kind == chat.KindInfo:
		fmt.Fprintf(o.out, "%s\n", msg.Body)
	case msg.Sender == chat.SenderUser:
		// Typed by the user; already on screen.
	default:
		o.open = index
	}
	o.printed[index] = len(msg.Body)
}

func (o *terminalObserver) RowChanged(index int, field string) {
	if field != "body" {
		return
	}
	msg, ok := o.session.MessageAt(index)
	if !ok {
		return
	}
	done := o.printed[index]
	if len(msg.Body) > done {
		fmt.Fprint(o.out, msg.Body[done:])
		o.printed[index] = len(msg.Body)
	}
}

func (o *terminalObserver) RowRemoved(index int) {
	if o.open == index {
		o.open = -1
	}
	delete(o.printed, index)
}

func (o *terminalObserver) ModelReset() {
	o.closeOpenRow()
	o.printed = map[int]int{}
}

func (o *terminalObserver) CopyRequested(text string) {
	fmt.Fprintf(o.out, "%s\n", text)
}

func (o *terminalObserver) ScrollToEnd() {}

func (o *terminalObserver) closeOpenRow() {
	if o.open >= 0 {
		fmt.Fprintln(o.out)
		o.open = -1
	}
}
