package chat

import "context"

// Turn is one prior conversation turn sent as history.
type Turn struct {
	Role Sender
	Text string
}

// PromptPart is one piece of the typed prompt: either text or an inline
// base64 image. Exactly one of Text/ImageB64 is set.
type PromptPart struct {
	Text string

	ImageB64  string
	ImageMime string
}

// Request is a provider-neutral completion request. The orchestration layer
// never branches on provider identity; everything backend-specific lives
// behind ChatProvider.
type Request struct {
	Model        string
	SystemPrompt string
	History      []Turn
	Parts        []PromptPart
}

// ChatProvider is implemented once per backend (OpenAI-compatible, Gemini).
type ChatProvider interface {
	// CompletionStream issues a streaming completion call and invokes onDelta
	// for every text fragment, in stream order, from a single goroutine.
	CompletionStream(ctx context.Context, req Request, onDelta func(text string)) error

	// Verify performs a cheap authenticated call to probe connectivity and
	// credentials. It never touches conversation state.
	Verify(ctx context.Context) error
}
