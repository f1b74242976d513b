package generator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// multiSelectThreshold 超过该数量的选项按多选处理。
const multiSelectThreshold = 4

var (
	optionLineRe = regexp.MustCompile(`(?m)^[ \t]*[A-Z0-9]\.[ \t]*(.+)$`)

	multiSelectMarkers = []string{"multiple", "several", "複数", "いくつでも", "多选", "多个"}
)

// ExtractOptions pulls "A. label" / "1. label" lines out of an assistant reply.
// It is a best-effort heuristic: fewer than two survivors means no menu.
func ExtractOptions(text string) []string {
	var opts []string
	for _, m := range optionLineRe.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		n := utf8.RuneCountInString(label)
		if n <= 2 || n >= 100 {
			continue
		}
		opts = append(opts, label)
	}
	if len(opts) < 2 {
		return nil
	}
	return opts
}

// IsMultiSelect 判断选项是否应以复选方式展示。仅为 UI 提示。
func IsMultiSelect(text string, options []string) bool {
	if len(options) > multiSelectThreshold {
		return true
	}
	lower := strings.ToLower(text)
	for _, marker := range multiSelectMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
