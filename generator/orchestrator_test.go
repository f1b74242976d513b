package generator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource 按批次返回预设的事件序列，可为每个批次设置延迟。
type fakeSource struct {
	events map[int][]BatchEvent
	delays map[int]time.Duration
	// hang 为 true 的批次在发送完事件后不结束。
	hang map[int]bool
}

func (f *fakeSource) OpenBatch(ctx context.Context, req BatchRequest) (<-chan BatchEvent, error) {
	evs, ok := f.events[req.Index]
	if !ok {
		return nil, fmt.Errorf("no events for batch %d", req.Index)
	}
	ch := make(chan BatchEvent)
	go func() {
		defer close(ch)
		if d := f.delays[req.Index]; d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return
			}
		}
		for _, ev := range evs {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if f.hang[req.Index] {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func scriptBatchEvents(batch int) []BatchEvent {
	text := fmt.Sprintf("[Variation 1]\nbatch%d item0 body text\n[Change Point] b%d-0\n---\n[Variation 2]\nbatch%d item1 body text\n[Change Point] b%d-1\n", batch, batch, batch, batch)
	var evs []BatchEvent
	for len(text) > 0 {
		n := min(7, len(text))
		evs = append(evs, BatchEvent{Text: text[:n]})
		text = text[n:]
	}
	return append(evs, BatchEvent{Done: true})
}

func threeStyles() []StyleDirective {
	return DefaultStyles[:3]
}

func scriptRunRequest() RunRequest {
	return RunRequest{Seed: Seed{Kind: SeedScript, Script: "Hello, buy now!"}, Styles: threeStyles()}
}

func TestOrchestrator_MergeOrderIndependentOfCompletion(t *testing.T) {
	orders := []map[int]time.Duration{
		{0: 0, 1: 10 * time.Millisecond, 2: 20 * time.Millisecond},
		{0: 20 * time.Millisecond, 1: 10 * time.Millisecond, 2: 0},
		{0: 10 * time.Millisecond, 1: 0, 2: 20 * time.Millisecond},
	}
	for _, delays := range orders {
		src := &fakeSource{
			events: map[int][]BatchEvent{0: scriptBatchEvents(0), 1: scriptBatchEvents(1), 2: scriptBatchEvents(2)},
			delays: delays,
		}
		o := &Orchestrator{Source: src}
		res := o.Run(context.Background(), scriptRunRequest(), nil)
		require.Len(t, res.Variations, 6)
		for i, v := range res.Variations {
			assert.Equal(t, fmt.Sprintf("batch%d item%d body text", i/2, i%2), v.Body)
		}
		assert.NoError(t, res.Err())
	}
}

func TestOrchestrator_FailedBatchIsIsolated(t *testing.T) {
	src := &fakeSource{events: map[int][]BatchEvent{
		0: scriptBatchEvents(0),
		1: {{Text: "[Variation 1]\npartial text that never fin"}, {Error: "boom"}},
		2: scriptBatchEvents(2),
	}}
	o := &Orchestrator{Source: src}
	res := o.Run(context.Background(), scriptRunRequest(), nil)

	require.Len(t, res.Variations, 4)
	assert.Equal(t, "batch0 item0 body text", res.Variations[0].Body)
	assert.Equal(t, "batch2 item1 body text", res.Variations[3].Body)
	assert.Empty(t, res.Batches[0].Err)
	assert.Equal(t, "boom", res.Batches[1].Err)
	assert.Empty(t, res.Batches[2].Err)
	assert.ErrorContains(t, res.Err(), "batch 1: boom")
}

func TestOrchestrator_OpenErrorIsIsolated(t *testing.T) {
	src := &fakeSource{events: map[int][]BatchEvent{0: scriptBatchEvents(0), 2: scriptBatchEvents(2)}}
	res := (&Orchestrator{Source: src}).Run(context.Background(), scriptRunRequest(), nil)
	assert.Len(t, res.Variations, 4)
	assert.NotEmpty(t, res.Batches[1].Err)
}

func TestOrchestrator_StreamClosedWithoutDone(t *testing.T) {
	src := &fakeSource{events: map[int][]BatchEvent{
		0: scriptBatchEvents(0),
		1: {{Text: "[Variation 1]\nsome body text\n"}},
		2: scriptBatchEvents(2),
	}}
	res := (&Orchestrator{Source: src}).Run(context.Background(), scriptRunRequest(), nil)
	assert.Len(t, res.Variations, 4)
	assert.Equal(t, errStreamClosed.Error(), res.Batches[1].Err)
}

func TestOrchestrator_BatchTimeout(t *testing.T) {
	src := &fakeSource{
		events: map[int][]BatchEvent{0: scriptBatchEvents(0), 1: {{Text: "[Variation 1]\nstalled"}}, 2: scriptBatchEvents(2)},
		hang:   map[int]bool{1: true},
	}
	o := &Orchestrator{Source: src, BatchTimeout: 50 * time.Millisecond}
	res := o.Run(context.Background(), scriptRunRequest(), nil)
	assert.Len(t, res.Variations, 4)
	assert.Equal(t, context.DeadlineExceeded.Error(), res.Batches[1].Err)
}

func TestOrchestrator_RunCancellation(t *testing.T) {
	src := &fakeSource{
		events: map[int][]BatchEvent{0: {}, 1: {}, 2: {}},
		hang:   map[int]bool{0: true, 1: true, 2: true},
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	res := (&Orchestrator{Source: src}).Run(ctx, scriptRunRequest(), nil)
	assert.Empty(t, res.Variations)
	for _, b := range res.Batches {
		assert.Equal(t, context.Canceled.Error(), b.Err)
	}
}

func TestOrchestrator_LivePreview(t *testing.T) {
	src := &fakeSource{events: map[int][]BatchEvent{0: scriptBatchEvents(0)}}
	var mu sync.Mutex
	var updates []BatchState
	req := scriptRunRequest()
	req.Styles = req.Styles[:1]
	res := (&Orchestrator{Source: src}).Run(context.Background(), req, func(st BatchState) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, st)
	})

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.True(t, last.Complete)
	assert.Equal(t, res.Variations, last.Variations)
	for _, u := range updates[:len(updates)-1] {
		assert.False(t, u.Complete)
		assert.LessOrEqual(t, len(u.Variations), 2)
	}
}

func TestOrchestrator_CopyGrammar(t *testing.T) {
	src := &fakeSource{events: map[int][]BatchEvent{0: {{Text: mockVariations(true)}, {Done: true}}}}
	req := RunRequest{Seed: Seed{Kind: SeedImage, Analysis: "a mug"}, Styles: DefaultStyles[:1]}
	res := (&Orchestrator{Source: src}).Run(context.Background(), req, nil)
	require.Len(t, res.Variations, 2)
	assert.Equal(t, "Wake up to better.", res.Variations[0].MainText)
}
