package generator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxVariationsPerBatch 每个批次最多产出的变体数。
const MaxVariationsPerBatch = 2

// bareBodyLimit 无标题块被接受为正文所需的最小长度（字符数，不含）。
const bareBodyLimit = 20

// 以下解析均为尽力而为的启发式：模型输出不保证符合格式，解析失败只会少产出记录，不返回错误。
var (
	blockSepRe     = regexp.MustCompile(`(?m)^[ \t]*-{3,}[ \t]*$`)
	variationHdrRe = regexp.MustCompile(`\[(?:Variation|バリエーション)\s*\d+\]`)
	copyBlockSepRe = regexp.MustCompile(`(?m)\[(?:Variation|バリエーション)\s*\d+\]|^[ \t]*-{3,}[ \t]*$`)
	changePointRe  = regexp.MustCompile(`\[(?:Change Point|変更点)\]|【変更点】`)
	copyIdeaRe     = regexp.MustCompile(`^\d+\.\s+([^:：]+)[:：]\s*(.*)$`)

	mainCopyRe   = regexp.MustCompile(`^(?:Main Copy|メインコピー)\s*[:：]\s*(.*)$`)
	subCopyRe    = regexp.MustCompile(`^(?:Sub Copy|サブコピー)\s*[:：]\s*(.*)$`)
	copyChangeRe = regexp.MustCompile(`^(?:Change Point|変更点)\s*[:：]\s*(.*)$`)
)

// Parse dispatches to the grammar used by a generation run.
func Parse(g Grammar, text string) []Variation {
	if g == GrammarCopy {
		return ParseCopyVariations(text)
	}
	return ParseScriptVariations(text)
}

// ParseScriptVariations reads "---"-separated blocks of the form
// "[Variation n] body [Change Point] rationale". It is safe on any prefix of a
// streamed response.
func ParseScriptVariations(text string) []Variation {
	var out []Variation
	for _, block := range blockSepRe.Split(text, -1) {
		if len(out) == MaxVariationsPerBatch {
			break
		}
		if v, ok := parseScriptBlock(block); ok {
			out = append(out, v)
		}
	}
	return out
}

func parseScriptBlock(block string) (Variation, bool) {
	trimmed := strings.TrimSpace(block)
	if trimmed == "" {
		return Variation{}, false
	}
	loc := variationHdrRe.FindStringIndex(trimmed)
	if loc == nil {
		// 无标题的块只要足够长也接受为正文。
		if utf8.RuneCountInString(trimmed) > bareBodyLimit {
			return Variation{Body: trimmed}, true
		}
		return Variation{}, false
	}

	rest := trimmed[loc[1]:]
	body, rationale := rest, ""
	if cp := changePointRe.FindStringIndex(rest); cp != nil {
		body = rest[:cp[0]]
		rationale = firstLine(rest[cp[1]:])
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Variation{}, false
	}
	return Variation{Body: body, Rationale: rationale}, true
}

// ParseCopyVariations reads blocks separated by "[Variation n]" headers or
// "---" lines, each holding "Main Copy:", "Sub Copy:" and "Change Point:" lines.
func ParseCopyVariations(text string) []Variation {
	var out []Variation
	for _, block := range copyBlockSepRe.Split(text, -1) {
		if len(out) == MaxVariationsPerBatch {
			break
		}
		var v Variation
		for _, line := range strings.Split(block, "\n") {
			line = cleanLabelLine(line)
			if m := mainCopyRe.FindStringSubmatch(line); m != nil {
				v.MainText = strings.TrimSpace(m[1])
			} else if m := subCopyRe.FindStringSubmatch(line); m != nil {
				v.SecondaryText = strings.TrimSpace(m[1])
			} else if m := copyChangeRe.FindStringSubmatch(line); m != nil {
				v.Rationale = strings.TrimSpace(m[1])
			}
		}
		if v.MainText == "" && v.SecondaryText == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ParseCopyIdeas parses "N. Title: Description" lines. Non-matching lines are dropped.
func ParseCopyIdeas(text string) []CopyIdea {
	var ideas []CopyIdea
	for _, line := range strings.Split(text, "\n") {
		m := copyIdeaRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		ideas = append(ideas, CopyIdea{
			Title:       strings.Trim(strings.TrimSpace(m[1]), "*"),
			Description: strings.TrimSpace(m[2]),
		})
	}
	return ideas
}

// 去掉 markdown 列表符号和粗体标记，便于匹配标签。
func cleanLabelLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-•* ")
	return strings.ReplaceAll(line, "**", "")
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, " \t\r\n:：")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
