package generator

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// defaultAnthropicMaxTokens messages API 要求必须给出 max_tokens。
const defaultAnthropicMaxTokens = 4096

// AnthropicLLM implements LLMClient on the Anthropic messages API through langchaingo.
type AnthropicLLM struct {
	llm       llms.Model
	maxTokens int
}

func NewAnthropicLLMFromConfig(cfg *LLMSettings) (*AnthropicLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, err
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicLLM{llm: model, maxTokens: maxTokens}, nil
}

func (a *AnthropicLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := a.llm.GenerateContent(ctx, messageContents(prompt), llms.WithMaxTokens(a.tokens(prompt)))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("anthropic: empty choices")
	}
	return resp.Choices[0].Content, nil
}

func (a *AnthropicLLM) Stream(ctx context.Context, prompt Prompt) <-chan StreamDelta {
	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		_, err := a.llm.GenerateContent(ctx, messageContents(prompt),
			llms.WithMaxTokens(a.tokens(prompt)),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				if !sendDelta(ctx, ch, StreamDelta{Text: string(chunk)}) {
					return ctx.Err()
				}
				return nil
			}),
		)
		if err != nil {
			sendDelta(ctx, ch, StreamDelta{Err: err})
			return
		}
		sendDelta(ctx, ch, StreamDelta{Done: true})
	}()
	return ch
}

func (a *AnthropicLLM) tokens(prompt Prompt) int {
	if prompt.MaxTokens > 0 {
		return prompt.MaxTokens
	}
	return a.maxTokens
}

func messageContents(prompt Prompt) []llms.MessageContent {
	var msgs []llms.MessageContent
	if prompt.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, prompt.System))
	}
	for _, h := range prompt.History {
		role := llms.ChatMessageTypeHuman
		if h.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, h.Content))
	}
	user := llms.MessageContent{Role: llms.ChatMessageTypeHuman}
	if prompt.Image != nil {
		user.Parts = append(user.Parts, llms.BinaryPart(prompt.Image.MIMEType, prompt.Image.Data))
	}
	user.Parts = append(user.Parts, llms.TextContent{Text: prompt.User})
	return append(msgs, user)
}
