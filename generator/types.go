package generator

import "time"

// Role 标记对话中的发言方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 是一次对话发言。Options 为从助手回复中解析出的可选项，仅供 UI 参考。
type Turn struct {
	Role        Role      `json:"role"`
	Text        string    `json:"text"`
	Options     []string  `json:"options,omitempty"`
	MultiSelect bool      `json:"multi_select,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SeedKind 区分种子素材类型。
type SeedKind string

const (
	SeedScript SeedKind = "script"
	SeedImage  SeedKind = "image"
)

// Seed is the artifact the user wants variations of: a script, or an image
// whose analysis text stands in for it.
type Seed struct {
	Kind     SeedKind `json:"kind"`
	Script   string   `json:"script,omitempty"`
	Analysis string   `json:"analysis,omitempty"`
	MIMEType string   `json:"mime_type,omitempty"`
}

// Present reports whether the seed carries usable content.
func (s Seed) Present() bool {
	switch s.Kind {
	case SeedScript:
		return s.Script != ""
	case SeedImage:
		return s.Analysis != ""
	}
	return false
}

// Summary 返回用于历史记录的简短描述。
func (s Seed) Summary() string {
	text := s.Script
	if s.Kind == SeedImage {
		text = s.Analysis
	}
	r := []rune(text)
	if len(r) > 80 {
		return string(r[:80]) + "…"
	}
	return text
}

// Grammar selects which block grammar a generation run is parsed with.
type Grammar string

const (
	GrammarScript Grammar = "script"
	GrammarCopy   Grammar = "copy"
)

// GrammarFor 根据种子类型决定输出格式：脚本改写或图片派生文案。
func GrammarFor(kind SeedKind) Grammar {
	if kind == SeedImage {
		return GrammarCopy
	}
	return GrammarScript
}

// Variation 是一条解析后的生成结果。脚本改写使用 Body，文案使用 MainText/SecondaryText。
type Variation struct {
	Body          string `json:"body,omitempty"`
	MainText      string `json:"main_text,omitempty"`
	SecondaryText string `json:"secondary_text,omitempty"`
	Rationale     string `json:"rationale"`
}

// CopyIdea 对应单次生成流程中 "N. 标题: 描述" 的一行。
type CopyIdea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StyleDirective 是一个批次的风格指令对，每条对应该批次中的一个变体。
type StyleDirective struct {
	Name         string    `json:"name"`
	Instructions [2]string `json:"instructions"`
}

// DefaultStyles 三个批次各自的语气，互不相同。
var DefaultStyles = []StyleDirective{
	{
		Name: "direct",
		Instructions: [2]string{
			"Keep the original structure and sharpen the wording so the benefit is stated up front.",
			"Shorten aggressively; every sentence must earn its place.",
		},
	},
	{
		Name: "emotional",
		Instructions: [2]string{
			"Lead with the viewer's feelings and a relatable moment before the offer.",
			"Tell it as a tiny story with a clear turning point.",
		},
	},
	{
		Name: "playful",
		Instructions: [2]string{
			"Add humor and an unexpected twist while keeping the call to action clear.",
			"Use a bold, provocative hook in the first line.",
		},
	},
}

// BatchState 是单个批次的累积器，只在一次生成调用内由编排器持有。
type BatchState struct {
	Index      int         `json:"index"`
	Text       string      `json:"text"`
	Complete   bool        `json:"complete"`
	Variations []Variation `json:"variations"`
	Err        string      `json:"error,omitempty"`
}
