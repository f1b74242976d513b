// Package publisher renders ad plans and generation results into shareable
// export formats (HTML documents and CSV sheets).
package publisher

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"ad_copy_planner/catalog"
	"ad_copy_planner/generator"
	"ad_copy_planner/history"
)

// utf8BOM 让 Excel 正确识别 UTF-8 编码的 CSV。
const utf8BOM = "\ufeff"

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// PlanMarkdown 把计划各字段拼成一份 Markdown 文档。
func PlanMarkdown(plan catalog.Plan, adv catalog.Advertiser) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", plan.Title))
	sb.WriteString("| | |\n|---|---|\n")
	row := func(k, v string) {
		if v == "" {
			return
		}
		v = strings.ReplaceAll(v, "|", "\\|")
		v = strings.ReplaceAll(v, "\n", " ")
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", k, v))
	}
	row("Advertiser", adv.Name)
	row("Status", string(plan.Status))
	row("Progress", fmt.Sprintf("%d%%", plan.Progress()))
	row("Objective", plan.Objective)
	row("Target", plan.Target)
	row("Key message", plan.KeyMessage)
	row("Channels", strings.Join(plan.Channels, ", "))
	sb.WriteString("\n")
	if adv.BrandGuidelines != "" {
		sb.WriteString("## Brand guidelines\n\n")
		sb.WriteString(adv.BrandGuidelines)
		sb.WriteString("\n\n")
	}
	if plan.Body != "" {
		sb.WriteString("## Plan\n\n")
		sb.WriteString(plan.Body)
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderPlanHTML converts a plan into a standalone HTML document. Raw HTML in
// the plan body is dropped by the markdown renderer.
func RenderPlanHTML(plan catalog.Plan, adv catalog.Advertiser) (string, error) {
	body, err := mdToHTML(PlanMarkdown(plan, adv))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(plan.Title))
	b.WriteString("</title></head><body>\n")
	b.WriteString(inlineHeadingStyles(body))
	b.WriteString("</body></html>\n")
	return b.String(), nil
}

func mdToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var headingRe = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)

// 文档编辑器粘贴时常丢失标题样式，这里给标题加上行内字号。
func inlineHeadingStyles(htmlText string) string {
	sizes := map[string]string{"1": "24px", "2": "20px", "3": "18px"}
	return headingRe.ReplaceAllStringFunc(htmlText, func(block string) string {
		parts := headingRe.FindStringSubmatch(block)
		size := sizes[parts[1]]
		if size == "" {
			size = "16px"
		}
		return fmt.Sprintf(`<h%s style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</h%s>`,
			parts[1], size, strings.TrimSpace(parts[2]), parts[1])
	})
}

// WriteVariationsCSV writes one row per variation of a history entry.
func WriteVariationsCSV(w io.Writer, e history.Entry) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"no", "body", "main_copy", "sub_copy", "change_point", "seed", "created_at"}); err != nil {
		return err
	}
	for i, v := range e.Variations {
		err := cw.Write([]string{
			fmt.Sprint(i + 1),
			v.Body,
			v.MainText,
			v.SecondaryText,
			v.Rationale,
			e.SeedSummary,
			e.Timestamp.Format("2006-01-02 15:04:05"),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCopyIdeasCSV 导出单次生成的文案列表。
func WriteCopyIdeasCSV(w io.Writer, ideas []generator.CopyIdea) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"no", "title", "description"}); err != nil {
		return err
	}
	for i, idea := range ideas {
		if err := cw.Write([]string{fmt.Sprint(i + 1), idea.Title, idea.Description}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
