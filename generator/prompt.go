package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System    string
	User      string
	History   []Message
	Image     *Image
	MaxTokens int
}

// Message 用于多轮历史。
type Message struct {
	Role    string
	Content string
}

// Image is a base64-able image part for the vision endpoint.
type Image struct {
	Data     []byte
	MIMEType string
}

// Brand 描述广告主的品牌规范，注入到系统提示词中。
type Brand struct {
	Name       string
	Guidelines string
	Tone       string
	NGWords    []string
}

func (b *Brand) write(sb *strings.Builder) {
	if b == nil || b.Name == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("Advertiser: %s\n", b.Name))
	if b.Guidelines != "" {
		sb.WriteString(fmt.Sprintf("Brand guidelines:\n%s\n", b.Guidelines))
	}
	if b.Tone != "" {
		sb.WriteString(fmt.Sprintf("Brand tone: %s\n", b.Tone))
	}
	if len(b.NGWords) > 0 {
		sb.WriteString(fmt.Sprintf("Never use these words: %s\n", strings.Join(b.NGWords, ", ")))
	}
}

// BuildScriptAnalysisPrompt 请求对脚本进行分析并提出第一个问题。
func BuildScriptAnalysisPrompt(script string, brand *Brand) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an advertising creative director helping a planner rework an ad script.\n")
	brand.write(&sb)
	sb.WriteString("Briefly analyse the script (target, hook, call to action), then ask ONE question about the direction of the rewrite.\n")
	sb.WriteString("When offering choices, format each on its own line as \"A. choice\", \"B. choice\" and so on.\n")
	return Prompt{
		System: sb.String(),
		User:   fmt.Sprintf("Script:\n%s", script),
	}
}

// BuildImageAnalysisPrompt 请求视觉模型描述/转写广告图片。
func BuildImageAnalysisPrompt(img Image) Prompt {
	return Prompt{
		System: "You describe advertising creatives precisely.",
		User: "Describe this ad image: transcribe every piece of visible copy verbatim, " +
			"then describe layout, product, target audience and tone.",
		Image: &img,
	}
}

// BuildOpeningPrompt 在图片分析完成后提出第一个问题。
func BuildOpeningPrompt(seed Seed, brand *Brand) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an advertising creative director helping a planner create new copy for an existing ad.\n")
	brand.write(&sb)
	sb.WriteString("Ask ONE question about what the new copy should change. Offer choices as \"A. choice\" lines.\n")
	return Prompt{
		System: sb.String(),
		User:   fmt.Sprintf("Analysis of the current ad:\n%s", seed.Analysis),
	}
}

// BuildConversationPrompt 生成对话中的下一轮助手回复。
func BuildConversationPrompt(seed Seed, turns []Turn, brand *Brand) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an advertising creative director gathering direction before writing variations.\n")
	brand.write(&sb)
	sb.WriteString("Acknowledge the answer in one sentence and ask ONE follow-up question. ")
	sb.WriteString("Offer choices as \"A. choice\" lines. Do not write the variations yet.\n")

	// 历史以用户消息开头：素材作为第一条用户消息，之后才是助手的开场分析。
	msgs, last := splitTurns(turns)
	history := append([]Message{{Role: string(RoleUser), Content: "Seed material:\n" + seedContext(seed)}}, msgs...)
	return Prompt{
		System:  sb.String(),
		User:    last,
		History: history,
	}
}

// BuildBatchPrompt 为单个批次生成提示词，每批两条变体、风格各不相同。
func BuildBatchPrompt(seed Seed, turns []Turn, style StyleDirective, feedback string, previous []Variation, brand *Brand) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an advertising copywriter.\n")
	brand.write(&sb)
	sb.WriteString("\nSeed material:\n")
	sb.WriteString(seedContext(seed))
	sb.WriteString("\n\nWrite exactly 2 variations.\n")
	for i, ins := range style.Instructions {
		sb.WriteString(fmt.Sprintf("- Variation %d: %s\n", i+1, ins))
	}
	if GrammarFor(seed.Kind) == GrammarCopy {
		sb.WriteString("Format each variation as:\n[Variation n]\nMain Copy: ...\nSub Copy: ...\nChange Point: ...\n")
	} else {
		sb.WriteString("Format each variation as:\n[Variation n]\n<full rewritten script>\n[Change Point] <one line>\n")
		sb.WriteString("Separate variations with a line containing only ---\n")
	}
	sb.WriteString("Output nothing else.\n")

	var user strings.Builder
	user.WriteString("Direction gathered in the conversation:\n")
	for _, t := range turns {
		if t.Role == RoleUser {
			user.WriteString("- " + t.Text + "\n")
		}
	}
	if len(previous) > 0 {
		user.WriteString("\nPrevious variations (improve on them, do not repeat them):\n")
		for i, v := range previous {
			user.WriteString(fmt.Sprintf("%d. %s\n", i+1, variationText(v)))
		}
	}
	if feedback != "" {
		user.WriteString(fmt.Sprintf("\nFeedback on the previous round: %s\n", feedback))
	}
	return Prompt{System: sb.String(), User: user.String()}
}

// BuildCopiesPrompt 单次生成 6 条文案，无对话。
func BuildCopiesPrompt(brief string, brand *Brand) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an advertising copywriter.\n")
	brand.write(&sb)
	sb.WriteString("Write 6 ad copy ideas. Output one per line as \"N. Title: Description\" and nothing else.\n")
	return Prompt{System: sb.String(), User: brief}
}

func seedContext(seed Seed) string {
	if seed.Kind == SeedImage {
		return "Current ad (image analysis):\n" + seed.Analysis
	}
	return "Current script:\n" + seed.Script
}

func variationText(v Variation) string {
	if v.Body != "" {
		return v.Body
	}
	return strings.TrimSpace(v.MainText + " / " + v.SecondaryText)
}

// splitTurns 把最后一条用户发言作为 User，其余作为历史。
func splitTurns(turns []Turn) ([]Message, string) {
	var msgs []Message
	last := ""
	for i, t := range turns {
		if i == len(turns)-1 && t.Role == RoleUser {
			last = t.Text
			break
		}
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Text})
	}
	return msgs, last
}
