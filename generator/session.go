package generator

import (
	"slices"
	"time"
)

// Session 持有一次素材的对话与生成上下文。它是值类型：Agent 的方法接收一个
// Session 并返回更新后的副本，调用失败时原值保持不变。
type Session struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	AdvertiserID string       `json:"advertiser_id,omitempty"`
	Brand        *Brand       `json:"-"`
	Seed         Seed         `json:"seed"`
	Turns        []Turn       `json:"turns"`
	Results      []Variation  `json:"results"`
	Batches      []BatchState `json:"batches,omitempty"`
	Feedback     []string     `json:"feedback,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewSession 创建空 session，尚未加载素材。
func NewSession(id, tenantID string) Session {
	now := time.Now()
	return Session{ID: id, TenantID: tenantID, CreatedAt: now, UpdatedAt: now}
}

// Readiness 见 Tracker.Readiness。
func (s Session) Readiness(t Tracker) int {
	return t.Readiness(s.Turns, s.Seed.Present())
}

// WithSeed loads a new seed and resets the conversation and results.
func (s Session) WithSeed(seed Seed) Session {
	s.Seed = seed
	s.Turns = nil
	s.Results = nil
	s.Batches = nil
	s.Feedback = nil
	s.UpdatedAt = time.Now()
	return s
}

// ClearSeed drops the seed; readiness falls back to 0.
func (s Session) ClearSeed() Session {
	return s.WithSeed(Seed{})
}

func (s Session) withTurn(role Role, text string) Session {
	t := Turn{Role: role, Text: text, CreatedAt: time.Now()}
	if role == RoleAssistant {
		t.Options = ExtractOptions(text)
		t.MultiSelect = t.Options != nil && IsMultiSelect(text, t.Options)
	}
	s.Turns = append(slices.Clone(s.Turns), t)
	s.UpdatedAt = t.CreatedAt
	return s
}

// LastTurn 返回最后一条发言。
func (s Session) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}
