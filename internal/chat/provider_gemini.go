package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// geminiProvider adapts the Gemini API (via the google genai SDK) to
// ChatProvider.
type geminiProvider struct {
	client *genai.Client
}

func newGeminiProvider(ctx context.Context, httpClient *http.Client, apiKey string) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini client error: %w", err)
	}
	return &geminiProvider{client: client}, nil
}

func (p *geminiProvider) CompletionStream(ctx context.Context, req Request, onDelta func(text string)) error {
	if p == nil || p.client == nil {
		return errors.New("nil provider")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return errors.New("missing model")
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		role := genai.Role(genai.RoleUser)
		if t.Role == SenderAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, part := range req.Parts {
		switch {
		case part.Text != "":
			parts = append(parts, genai.NewPartFromText(part.Text))
		case part.ImageB64 != "":
			raw, err := base64.StdEncoding.DecodeString(part.ImageB64)
			if err != nil || len(raw) == 0 {
				continue
			}
			parts = append(parts, genai.NewPartFromBytes(raw, part.ImageMime))
		}
	}
	if len(parts) == 0 {
		return errors.New("empty prompt")
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	var cfg *genai.GenerateContentConfig
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(sys)}},
		}
	}

	for chunk, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return wrapGeminiError(err)
		}
		if text := chunk.Text(); text != "" {
			onDelta(text)
		}
	}
	return nil
}

func (p *geminiProvider) Verify(ctx context.Context) error {
	if p == nil || p.client == nil {
		return errors.New("nil provider")
	}
	if _, err := p.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return wrapGeminiError(err)
	}
	return nil
}

// wrapGeminiError keeps the error payload reachable for the sanitizer in the
// same "with message: <json>" shape the OpenAI adapter produces.
func wrapGeminiError(err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) && strings.TrimSpace(apierr.Message) != "" {
		body, merr := json.Marshal(map[string]any{
			"error": map[string]any{"message": apierr.Message},
		})
		if merr == nil {
			return fmt.Errorf("Gemini request failed (status %d) with message: %s", apierr.Code, body)
		}
	}
	return fmt.Errorf("Gemini request failed: %w", err)
}
