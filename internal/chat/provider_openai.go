package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIProvider adapts the OpenAI-compatible chat completions API to
// ChatProvider. The same adapter serves any backend speaking the OpenAI wire
// protocol via the base URL override.
type openAIProvider struct {
	client openai.Client
}

func newOpenAIProvider(httpClient *http.Client, apiKey string, baseURL string) *openAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openAIProvider{client: openai.NewClient(opts...)}
}

func (p *openAIProvider) CompletionStream(ctx context.Context, req Request, onDelta func(text string)) error {
	if p == nil {
		return errors.New("nil provider")
	}
	if strings.TrimSpace(req.Model) == "" {
		return errors.New("missing model")
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		msgs = append(msgs, openai.SystemMessage(sys))
	}
	for _, t := range req.History {
		if t.Role == SenderUser {
			msgs = append(msgs, openai.UserMessage(t.Text))
		} else {
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		}
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Parts))
	for _, part := range req.Parts {
		switch {
		case part.Text != "":
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfText: &openai.ChatCompletionContentPartTextParam{Text: part.Text},
			})
		case part.ImageB64 != "":
			mime := strings.TrimSpace(part.ImageMime)
			if mime == "" {
				mime = "application/octet-stream"
			}
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfImageURL: &openai.ChatCompletionContentPartImageParam{
					ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
						URL: "data:" + mime + ";base64," + part.ImageB64,
					},
				},
			})
		}
	}
	if len(parts) == 0 {
		return errors.New("empty prompt")
	}
	msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	})

	stream := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(strings.TrimSpace(req.Model)),
		Messages: msgs,
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				onDelta(choice.Delta.Content)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return wrapOpenAIError(err)
	}
	return nil
}

func (p *openAIProvider) Verify(ctx context.Context) error {
	if p == nil {
		return errors.New("nil provider")
	}
	if _, err := p.client.Models.List(ctx); err != nil {
		return wrapOpenAIError(err)
	}
	return nil
}

// wrapOpenAIError keeps the raw error body reachable for the sanitizer: API
// errors are reformatted as "... with message: <json body>".
func wrapOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		body := strings.TrimSpace(apierr.RawJSON())
		if body != "" {
			return fmt.Errorf("OpenAI request failed (status %d) with message: %s", apierr.StatusCode, body)
		}
	}
	return fmt.Errorf("OpenAI request failed: %w", err)
}
