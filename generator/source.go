package generator

import "context"

// BatchEvent is one event of a batch stream: a text fragment, the end
// marker, or an error. It is also the JSON-lines wire format.
type BatchEvent struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// BatchRequest carries everything one batch needs to build its prompt.
type BatchRequest struct {
	Index    int            `json:"batch_index"`
	Seed     Seed           `json:"seed"`
	Turns    []Turn         `json:"conversation"`
	Style    StyleDirective `json:"style"`
	Feedback string         `json:"feedback,omitempty"`
	Previous []Variation    `json:"previous,omitempty"`
	Brand    *Brand         `json:"brand,omitempty"`
}

// BatchSource opens the event stream of a single batch. The returned channel
// is closed after the terminal Done or Error event, or when ctx is cancelled.
type BatchSource interface {
	OpenBatch(ctx context.Context, req BatchRequest) (<-chan BatchEvent, error)
}

// LLMBatchSource 直接调用模型流式接口。
type LLMBatchSource struct {
	LLM LLMClient
}

func (s LLMBatchSource) OpenBatch(ctx context.Context, req BatchRequest) (<-chan BatchEvent, error) {
	prompt := BuildBatchPrompt(req.Seed, req.Turns, req.Style, req.Feedback, req.Previous, req.Brand)
	deltas := s.LLM.Stream(ctx, prompt)

	out := make(chan BatchEvent)
	go func() {
		defer close(out)
		for d := range deltas {
			ev := BatchEvent{Text: d.Text, Done: d.Done}
			if d.Err != nil {
				ev = BatchEvent{Error: d.Err.Error()}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				// 继续排空 deltas，生产者会因 ctx 取消而退出。
				for range deltas {
				}
				return
			}
		}
	}()
	return out, nil
}
