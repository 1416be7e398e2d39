package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/models"
)

func fixture() *models.SuiteReport {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &models.SuiteReport{
		RunID:     "run-1",
		Suite:     "css",
		StartedAt: start,
		Duration:  2500 * time.Millisecond,
		Scenarios: []models.ScenarioResult{
			{
				Name:     "verifies quick outline",
				Outcome:  models.OutcomePass,
				Duration: 1200 * time.Millisecond,
				Artifacts: []models.Artifact{{Label: "outline", Files: []models.ArtifactFile{
					{Kind: models.ArtifactScreenshot, Path: "results/css/01_outline.png"},
				}}},
			},
			{
				Name:     "verifies warnings for the empty rule",
				Outcome:  models.OutcomeFail,
				Tier:     models.TierAssertion,
				Error:    "expected a warning problem",
				Duration: 800 * time.Millisecond,
				Artifacts: []models.Artifact{{Label: "failure", Files: []models.ArtifactFile{
					{Kind: models.ArtifactScreenshot, Path: "results/empty/01_failure.png"},
					{Kind: models.ArtifactDOM, Path: "results/empty/01_failure.html"},
				}}},
			},
			{
				Name:     "panics",
				Outcome:  models.OutcomeFail,
				Tier:     models.TierScenario,
				Error:    "scenario panicked: boom\ngoroutine 1",
				Duration: 5 * time.Millisecond,
			},
			{
				Name:    "after crash",
				Outcome: models.OutcomeFail,
				Tier:    models.TierInfrastructure,
				Error:   "not run: application under test crashed",
			},
			{
				Name:    "skipped",
				Outcome: models.OutcomeSkip,
				Error:   "flaky on ci",
			},
		},
	}
}

func TestJUnit_Golden(t *testing.T) {
	out, err := JUnit(fixture())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "junit", out)
}

func TestSummary_Totals(t *testing.T) {
	passing := &models.SuiteReport{Suite: "ok", Duration: time.Second, Scenarios: []models.ScenarioResult{{Name: "a", Outcome: models.OutcomePass}}}
	s := NewSummary("run-1", fixture(), passing)

	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.False(t, s.Success)
	assert.Equal(t, "3.5s", s.Duration)

	data, err := s.JSON()
	require.NoError(t, err)
	assert.True(t, gjson.ValidBytes(data))
	assert.Equal(t, "run-1", gjson.GetBytes(data, "run_id").String())
	assert.Equal(t, "assertion", gjson.GetBytes(data, "suites.0.scenarios.1.tier").String())
	assert.Equal(t, int64(5), gjson.GetBytes(data, "suites.0.scenarios.#").Int())
	assert.Contains(t, string(data), "\n  \"passed\": 2", "indented output")
}

func TestSummary_SuccessOnlyWhenClean(t *testing.T) {
	clean := &models.SuiteReport{Suite: "ok", Scenarios: []models.ScenarioResult{{Name: "a", Outcome: models.OutcomePass}}}
	assert.True(t, NewSummary("r", clean).Success)

	clean.SuiteError = "failed to stop"
	assert.False(t, NewSummary("r", clean).Success)
}

func TestSummary_Markdown(t *testing.T) {
	md, err := NewSummary("run-1", fixture()).Markdown()
	require.NoError(t, err)
	text := string(md)

	assert.Contains(t, text, "# Smoke run run-1")
	assert.Contains(t, text, "**FAILED**: 1 passed, 3 failed, 1 skipped in 2.5s")
	assert.Contains(t, text, "## Suite: css")
	assert.Contains(t, text, "| ✅ | verifies quick outline |  | 1.2s |  |")
	assert.Contains(t, text, "| ❌ | panics | scenario | 5ms | scenario panicked: boom |")
	assert.Contains(t, text, "- [results/empty/01_failure.html](results/empty/01_failure.html)")
}

func TestHTML(t *testing.T) {
	md, err := NewSummary("run-1", fixture()).Markdown()
	require.NoError(t, err)

	page, err := HTML("Smoke <run>", md)
	require.NoError(t, err)
	text := string(page)

	assert.Contains(t, text, "<title>Smoke &lt;run&gt;</title>")
	assert.Contains(t, text, "<h1>Smoke run run-1</h1>")
	assert.Contains(t, text, "<table>")
	assert.Contains(t, text, `<a href="results/css/01_outline.png">`)
}

func TestConsole_Plain(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, false).Suite(fixture())
	out := buf.String()

	assert.Contains(t, out, "Suite: css")
	assert.Contains(t, out, "PASS verifies quick outline (1.2s)")
	assert.Contains(t, out, "FAIL panics (5ms)")
	assert.Contains(t, out, "scenario panicked: boom\n")
	assert.NotContains(t, out, "goroutine 1")
	assert.Contains(t, out, "artifact: results/css/01_outline.png")
	assert.Contains(t, out, "1 passed, 3 failed, 1 skipped")
	assert.NotContains(t, out, "\x1b[", "no escape codes when unstyled")
}

func TestWriter_WritesEnabledFormats(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, common.ReportConfig{JUnit: true, Summary: true, HTML: true}, arbor.NewLogger())

	files, err := w.Write("run-1", fixture())
	require.NoError(t, err)
	assert.Len(t, files, 4)
	for _, name := range []string{JUnitFile, SummaryJSONFile, SummaryMDFile, SummaryHTMLFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	only := t.TempDir()
	files, err = NewWriter(only, common.ReportConfig{JUnit: true}, arbor.NewLogger()).Write("run-1", fixture())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(only, JUnitFile)}, files)
	_, err = os.Stat(filepath.Join(only, SummaryMDFile))
	assert.True(t, os.IsNotExist(err))
}
