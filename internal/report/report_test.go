package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchlab/rtdcheck/internal/history"
	"github.com/dispatchlab/rtdcheck/internal/scenario"
)

func sampleReport() *scenario.Report {
	start := time.Date(2025, 4, 8, 6, 0, 0, 0, time.UTC)
	return &scenario.Report{
		RunID:    "run-1",
		Suite:    "rtd-regression",
		Trigger:  "cron",
		Started:  start,
		Finished: start.Add(90 * time.Second),
		Outcomes: []scenario.Outcome{
			{Name: "login and open RTD", Kind: scenario.KindNavigate, Status: history.StatusPassed, Duration: 2 * time.Second},
			{
				Name: "amount greater than 100", Kind: scenario.KindAmountFilter, Filter: "amount gt 100",
				Status: history.StatusFailed, Pages: 3, APIValues: 25, UIValues: 25,
				Err:       errors.New("ui[4] = 90 does not satisfy > 100"),
				Artifacts: "test-results/amount-greater-than-100",
			},
			{Name: "export", Kind: scenario.KindExport, Status: history.StatusSkipped, Err: errors.New("disabled")},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport())

	assert.Contains(t, md, "# rtd-regression")
	assert.Contains(t, md, "- Trigger: cron")
	assert.Contains(t, md, "- Duration: 1m30s")
	assert.Contains(t, md, "**FAIL** (1 passed, 1 failed, 1 skipped)")
	assert.Contains(t, md, "| amount greater than 100 | amount_filter | amount gt 100 | ❌ failed | 3 | 25 | 25 | 0s |")
	assert.Contains(t, md, "⏭ skipped (disabled)")
	assert.Contains(t, md, "### amount greater than 100")
	assert.Contains(t, md, "Artifacts: `test-results/amount-greater-than-100`")
	assert.Contains(t, md, "ui[4] = 90 does not satisfy > 100")
	assert.NotContains(t, md, "### export")
}

func TestMarkdownAllPassed(t *testing.T) {
	r := sampleReport()
	r.Outcomes = r.Outcomes[:1]
	md := Markdown(r)
	assert.Contains(t, md, "**PASS**")
	assert.NotContains(t, md, "## Failures")
}

func TestCell(t *testing.T) {
	assert.Equal(t, `a \| b c`, cell("a | b\nc"))
	assert.Equal(t, "-", cell(""))
}

func TestHTML(t *testing.T) {
	page, err := HTML(sampleReport())
	require.NoError(t, err)
	s := string(page)
	assert.Contains(t, s, "<title>rtd-regression 2025-04-08</title>")
	assert.Contains(t, s, "<table>")
	assert.Contains(t, s, "<h2>Failures</h2>")
	assert.Contains(t, s, "<strong>FAIL</strong>")
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	md, page, err := Write(dir, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1", "report.md"), md)
	assert.Equal(t, filepath.Join(dir, "run-1", "report.html"), page)

	data, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Equal(t, Markdown(sampleReport()), string(data))
	assert.FileExists(t, page)
}
