package generator

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoSeed 表示尚未加载脚本或图片。
	ErrNoSeed = errors.New("no seed artifact loaded")
	// ErrNothingToRegenerate 表示还没有可供再生成的结果。
	ErrNothingToRegenerate = errors.New("no previous results to regenerate")
	// ErrEmptyReply 表示模型返回了空回复。
	ErrEmptyReply = errors.New("model returned empty reply")
	// ErrNotReady 表示对话尚未达到可生成的就绪度。
	ErrNotReady = errors.New("conversation not ready for generation")
	// ErrUnknownBatch 表示批次序号超出风格指令数量。
	ErrUnknownBatch = errors.New("unknown batch index")
)

// Agent 负责素材分析、对话与批量生成。
type Agent struct {
	llm          LLMClient
	orchestrator *Orchestrator
	tracker      Tracker
	styles       []StyleDirective
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithTracker overrides the readiness policy.
func WithTracker(t Tracker) AgentOption {
	return func(a *Agent) { a.tracker = t }
}

// WithStyles overrides the per-batch style directives; one batch per entry.
func WithStyles(styles []StyleDirective) AgentOption {
	return func(a *Agent) { a.styles = styles }
}

// WithBatchSource 替换批次事件来源（默认直接调用 LLM）。
func WithBatchSource(src BatchSource) AgentOption {
	return func(a *Agent) { a.orchestrator.Source = src }
}

// WithBatchTimeout sets a per-batch timeout. Zero means none.
func WithBatchTimeout(d time.Duration) AgentOption {
	return func(a *Agent) { a.orchestrator.BatchTimeout = d }
}

func NewAgent(llm LLMClient, opts ...AgentOption) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	a := &Agent{
		llm:          llm,
		orchestrator: &Orchestrator{Source: LLMBatchSource{LLM: llm}},
		tracker:      Tracker{ReadyTurns: DefaultReadyTurns},
		styles:       DefaultStyles,
	}
	for _, opt := range opts {
		opt(a)
	}
	if len(a.styles) == 0 {
		return nil, errors.New("at least one style directive is required")
	}
	return a, nil
}

// Tracker 返回当前使用的就绪度策略。
func (a *Agent) Tracker() Tracker {
	return a.tracker
}

// StartScript loads a script seed and asks the model for an analysis plus the
// opening question.
func (a *Agent) StartScript(ctx context.Context, s Session, script string) (Session, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return s, ErrNoSeed
	}
	reply, err := a.complete(ctx, BuildScriptAnalysisPrompt(script, s.Brand))
	if err != nil {
		return s, err
	}
	next := s.WithSeed(Seed{Kind: SeedScript, Script: script})
	return next.withTurn(RoleAssistant, reply), nil
}

// StartImage 通过视觉接口分析图片，分析文本作为素材，然后提出第一个问题。
func (a *Agent) StartImage(ctx context.Context, s Session, img Image) (Session, error) {
	if len(img.Data) == 0 {
		return s, ErrNoSeed
	}
	analysis, err := a.complete(ctx, BuildImageAnalysisPrompt(img))
	if err != nil {
		return s, err
	}
	seed := Seed{Kind: SeedImage, Analysis: analysis, MIMEType: img.MIMEType}
	reply, err := a.complete(ctx, BuildOpeningPrompt(seed, s.Brand))
	if err != nil {
		return s, err
	}
	next := s.WithSeed(seed)
	return next.withTurn(RoleAssistant, reply), nil
}

// Respond appends the user's turn and the assistant's reply. On failure the
// input session is returned unchanged so the user can retry the same turn.
func (a *Agent) Respond(ctx context.Context, s Session, text string) (Session, error) {
	if !s.Seed.Present() {
		return s, ErrNoSeed
	}
	next := s.withTurn(RoleUser, strings.TrimSpace(text))
	reply, err := a.complete(ctx, BuildConversationPrompt(next.Seed, next.Turns, next.Brand))
	if err != nil {
		return s, err
	}
	return next.withTurn(RoleAssistant, reply), nil
}

// Generate runs all batches once readiness reaches 100. Below that it is a
// no-op and the result is marked Skipped.
func (a *Agent) Generate(ctx context.Context, s Session, onUpdate UpdateFunc) (Session, RunResult, error) {
	if !a.tracker.Ready(s.Turns, s.Seed.Present()) {
		return s, RunResult{Skipped: true}, nil
	}
	return a.run(ctx, s, "", nil, onUpdate)
}

// Regenerate 基于已有结果和新的反馈再生成一轮。
func (a *Agent) Regenerate(ctx context.Context, s Session, feedback string, onUpdate UpdateFunc) (Session, RunResult, error) {
	if len(s.Results) == 0 {
		return s, RunResult{}, ErrNothingToRegenerate
	}
	feedback = strings.TrimSpace(feedback)
	next := s
	if feedback != "" {
		next.Feedback = append(slices.Clone(s.Feedback), feedback)
	}
	return a.run(ctx, next, strings.Join(next.Feedback, "\n"), s.Results, onUpdate)
}

func (a *Agent) run(ctx context.Context, s Session, feedback string, previous []Variation, onUpdate UpdateFunc) (Session, RunResult, error) {
	start := time.Now()
	res := a.orchestrator.Run(ctx, RunRequest{
		Seed:     s.Seed,
		Turns:    s.Turns,
		Styles:   a.styles,
		Feedback: feedback,
		Previous: previous,
		Brand:    s.Brand,
	}, onUpdate)
	log.Info().
		Str("session", s.ID).
		Int("variations", len(res.Variations)).
		Dur("elapsed", time.Since(start)).
		Msg("generation run finished")

	if err := ctx.Err(); err != nil {
		return s, res, err
	}
	s.Results = res.Variations
	s.Batches = res.Batches
	s.UpdatedAt = time.Now()
	return s, res, nil
}

// Copies 单次生成流程：不经过对话，直接解析 "N. 标题: 描述" 列表。
func (a *Agent) Copies(ctx context.Context, brief string, brand *Brand) ([]CopyIdea, error) {
	brief = strings.TrimSpace(brief)
	if brief == "" {
		return nil, errors.New("brief is required")
	}
	raw, err := collectStream(a.llm.Stream(ctx, BuildCopiesPrompt(brief, brand)))
	if err != nil {
		return nil, err
	}
	return ParseCopyIdeas(raw), nil
}

func (a *Agent) complete(ctx context.Context, prompt Prompt) (string, error) {
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyReply
	}
	return raw, nil
}

// OpenBatch 直接向模型发起单个批次的流式请求，供内部生成接口使用。
func (a *Agent) OpenBatch(ctx context.Context, req BatchRequest) (<-chan BatchEvent, error) {
	return LLMBatchSource{LLM: a.llm}.OpenBatch(ctx, req)
}

// BatchRequest builds the request for batch n of a generation run over s, so a
// client can stream that batch on its own.
func (a *Agent) BatchRequest(s Session, n int) (BatchRequest, error) {
	if !s.Seed.Present() {
		return BatchRequest{}, ErrNoSeed
	}
	if !a.tracker.Ready(s.Turns, true) {
		return BatchRequest{}, ErrNotReady
	}
	if n < 0 || n >= len(a.styles) {
		return BatchRequest{}, ErrUnknownBatch
	}
	return BatchRequest{
		Index:    n,
		Seed:     s.Seed,
		Turns:    s.Turns,
		Style:    a.styles[n],
		Feedback: strings.Join(s.Feedback, "\n"),
		Previous: s.Results,
		Brand:    s.Brand,
	}, nil
}
