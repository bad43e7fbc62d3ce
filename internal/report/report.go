// Package report renders suite runs as Markdown and HTML documents
package report

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/dispatchlab/rtdcheck/internal/scenario"
)

const timeLayout = "2006-01-02 15:04:05 MST"

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// Markdown renders r as a summary table followed by one section per failure
func Markdown(r *scenario.Report) string {
	var b strings.Builder
	passed, failed, skipped := r.Counts()

	fmt.Fprintf(&b, "# %s\n\n", r.Suite)
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	if r.Trigger != "" {
		fmt.Fprintf(&b, "- Trigger: %s\n", r.Trigger)
	}
	fmt.Fprintf(&b, "- Started: %s\n", r.Started.Format(timeLayout))
	fmt.Fprintf(&b, "- Duration: %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "- Result: **%s** (%d passed, %d failed, %d skipped)\n\n", verdict(r), passed, failed, skipped)

	b.WriteString("| Scenario | Kind | Filter | Status | Pages | API | UI | Duration |\n")
	b.WriteString("|---|---|---|---|---:|---:|---:|---:|\n")
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d | %d | %s |\n",
			cell(o.Name), o.Kind, cell(o.Filter), status(o), o.Pages, o.APIValues, o.UIValues,
			o.Duration.Round(time.Millisecond))
	}

	var failures []scenario.Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failures = append(failures, o)
		}
	}
	if len(failures) == 0 {
		return b.String()
	}

	b.WriteString("\n## Failures\n")
	for _, o := range failures {
		fmt.Fprintf(&b, "\n### %s\n\n", o.Name)
		if o.Artifacts != "" {
			fmt.Fprintf(&b, "Artifacts: `%s`\n\n", o.Artifacts)
		}
		fmt.Fprintf(&b, "```\n%s\n```\n", strings.TrimSpace(o.Error()))
	}
	return b.String()
}

// HTML converts the Markdown rendering into a standalone page
func HTML(r *scenario.Report) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(r)), &body); err != nil {
		return nil, fmt.Errorf("render report HTML: %w", err)
	}
	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s %s</title>\n%s</head>\n<body>\n",
		stdhtml.EscapeString(r.Suite), r.Started.Format("2006-01-02"), style)
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Write stores report.md and report.html under dir/<run id> and returns both paths
func Write(dir string, r *scenario.Report) (mdPath, htmlPath string, err error) {
	dir = filepath.Join(dir, r.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}
	mdPath = filepath.Join(dir, "report.md")
	if err := os.WriteFile(mdPath, []byte(Markdown(r)), 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", mdPath, err)
	}
	page, err := HTML(r)
	if err != nil {
		return "", "", err
	}
	htmlPath = filepath.Join(dir, "report.html")
	if err := os.WriteFile(htmlPath, page, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", htmlPath, err)
	}
	return mdPath, htmlPath, nil
}

func verdict(r *scenario.Report) string {
	if r.OK() {
		return "PASS"
	}
	return "FAIL"
}

func status(o scenario.Outcome) string {
	switch {
	case o.Failed():
		return "❌ failed"
	case o.Passed():
		return "✅ passed"
	default:
		if msg := o.Error(); msg != "" {
			return "⏭ skipped (" + cell(msg) + ")"
		}
		return "⏭ skipped"
	}
}

// cell keeps a value on one table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return "-"
	}
	return s
}

const style = `<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; }
pre { background: #f6f6f6; padding: 8px; }
</style>
`
