package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var errStreamClosed = errors.New("stream closed before done")

// Orchestrator fans out one streamed request per style directive and merges
// the parsed results in batch order once every batch has finished.
type Orchestrator struct {
	Source BatchSource
	// BatchTimeout bounds each batch. Zero disables it.
	BatchTimeout time.Duration
}

// RunRequest 描述一次生成运行。
type RunRequest struct {
	Seed     Seed
	Turns    []Turn
	Styles   []StyleDirective
	Feedback string
	Previous []Variation
	Brand    *Brand
}

// RunResult 合并后的结果以及每个批次的最终状态。
type RunResult struct {
	Variations []Variation  `json:"variations"`
	Batches    []BatchState `json:"batches"`
	Skipped    bool         `json:"skipped,omitempty"`
}

// Err joins the errors of failed batches, or returns nil.
func (r RunResult) Err() error {
	var errs []error
	for _, b := range r.Batches {
		if b.Err != "" {
			errs = append(errs, fmt.Errorf("batch %d: %s", b.Index, b.Err))
		}
	}
	return errors.Join(errs...)
}

// UpdateFunc receives live batch previews. It is called from the batch
// goroutines, so calls for different batches may overlap.
type UpdateFunc func(BatchState)

// Run blocks until all batches complete, fail, or ctx is cancelled. A failed
// batch contributes nothing; its siblings are unaffected.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, onUpdate UpdateFunc) RunResult {
	grammar := GrammarFor(req.Seed.Kind)
	states := make([]BatchState, len(req.Styles))

	var g errgroup.Group
	for i, style := range req.Styles {
		breq := BatchRequest{
			Index:    i,
			Seed:     req.Seed,
			Turns:    req.Turns,
			Style:    style,
			Feedback: req.Feedback,
			Previous: req.Previous,
			Brand:    req.Brand,
		}
		g.Go(func() error {
			states[i] = o.runBatch(ctx, breq, grammar, onUpdate)
			return nil
		})
	}
	_ = g.Wait()

	return mergeBatches(states)
}

func (o *Orchestrator) runBatch(ctx context.Context, req BatchRequest, grammar Grammar, onUpdate UpdateFunc) BatchState {
	st := BatchState{Index: req.Index}
	var cancel context.CancelFunc
	if o.BatchTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.BatchTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	fail := func(err error) BatchState {
		st.Err = err.Error()
		st.Variations = nil
		log.Warn().Int("batch", req.Index).Err(err).Msg("generation batch failed")
		if onUpdate != nil {
			onUpdate(st)
		}
		return st
	}

	events, err := o.Source.OpenBatch(ctx, req)
	if err != nil {
		return fail(err)
	}

	var sb strings.Builder
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return fail(err)
				}
				return fail(errStreamClosed)
			}
			switch {
			case ev.Error != "":
				return fail(errors.New(ev.Error))
			case ev.Done:
				st.Complete = true
				if onUpdate != nil {
					onUpdate(st)
				}
				log.Debug().Int("batch", req.Index).Int("variations", len(st.Variations)).Msg("generation batch done")
				return st
			default:
				sb.WriteString(ev.Text)
				st.Text = sb.String()
				st.Variations = Parse(grammar, st.Text)
				if onUpdate != nil {
					onUpdate(st)
				}
			}
		case <-ctx.Done():
			return fail(ctx.Err())
		}
	}
}

// mergeBatches 按批次序号拼接结果，与完成顺序无关。
func mergeBatches(states []BatchState) RunResult {
	res := RunResult{Batches: states}
	for _, st := range states {
		if st.Err != "" || !st.Complete {
			continue
		}
		res.Variations = append(res.Variations, st.Variations...)
	}
	return res
}
