package generator

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	switch {
	case prompt.Image != nil:
		return "Visible copy: \"Fresh coffee, every morning\". A mug on a wooden table, warm light, aimed at commuters.", nil
	case strings.Contains(prompt.System, "N. Title: Description"):
		var sb strings.Builder
		for i := 1; i <= 6; i++ {
			sb.WriteString(fmt.Sprintf("%d. Idea %d: A copy idea built from the brief.\n", i, i))
		}
		return sb.String(), nil
	}
	return "Got it. Which direction should we push next?\nA. Funnier tone\nB. More emotional\nC. Shorter and punchier", nil
}

// Stream 把批次回复切成小块逐段发送，模拟流式输出。
func (m MockLLM) Stream(ctx context.Context, prompt Prompt) <-chan StreamDelta {
	var text string
	if strings.Contains(prompt.System, "[Variation n]") {
		text = mockVariations(strings.Contains(prompt.System, "Main Copy:"))
	} else {
		text, _ = m.Complete(ctx, prompt)
	}
	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		for len(text) > 0 {
			n := min(16, len(text))
			if !sendDelta(ctx, ch, StreamDelta{Text: text[:n]}) {
				return
			}
			text = text[n:]
		}
		sendDelta(ctx, ch, StreamDelta{Done: true})
	}()
	return ch
}

func mockVariations(copyGrammar bool) string {
	if copyGrammar {
		return "[Variation 1]\nMain Copy: Wake up to better.\nSub Copy: Fresh coffee, ready when you are.\nChange Point: Shorter hook.\n" +
			"[Variation 2]\nMain Copy: Your morning, upgraded.\nSub Copy: Brewed fresh every day.\nChange Point: Benefit first.\n"
	}
	return "[Variation 1]\nStart your day right. Buy now and save.\n[Change Point] Benefit moved to the first line.\n---\n" +
		"[Variation 2]\nTired mornings? Not anymore. Buy now!\n[Change Point] Opens with a relatable problem.\n"
}
