package generator

import (
	"context"
	"errors"
)

// ErrMissingCredential 表示未配置上游模型的 API key。
var ErrMissingCredential = errors.New("llm api key missing")

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	// Complete 返回一次完整回复；Prompt.Image 非空时走视觉接口。
	Complete(ctx context.Context, prompt Prompt) (string, error)
	// Stream 逐段返回文本。通道在结束时关闭，最后一个事件为 Done 或 Err。
	Stream(ctx context.Context, prompt Prompt) <-chan StreamDelta
}

// StreamDelta represents a single chunk from a streaming response.
type StreamDelta struct {
	Text string
	Done bool
	Err  error
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// collectStream drains a stream into one string.
func collectStream(ch <-chan StreamDelta) (string, error) {
	var text string
	for d := range ch {
		if d.Err != nil {
			return text, d.Err
		}
		text += d.Text
	}
	return text, nil
}

// sendDelta 在 ctx 取消时放弃发送，避免生产者 goroutine 泄漏。
func sendDelta(ctx context.Context, ch chan<- StreamDelta, d StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
