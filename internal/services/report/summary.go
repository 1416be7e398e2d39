package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/pretty"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/smoke/internal/models"
)

// Summary is the machine-readable outcome of a run
type Summary struct {
	RunID    string                `json:"run_id"`
	Passed   int                   `json:"passed"`
	Failed   int                   `json:"failed"`
	Skipped  int                   `json:"skipped"`
	Success  bool                  `json:"success"`
	Duration string                `json:"duration"`
	Suites   []*models.SuiteReport `json:"suites"`
}

// NewSummary totals the suite reports of one run
func NewSummary(runID string, reports ...*models.SuiteReport) Summary {
	s := Summary{RunID: runID, Success: true, Suites: reports}
	var total time.Duration
	for _, r := range reports {
		p, f, sk := r.Counts()
		s.Passed += p
		s.Failed += f
		s.Skipped += sk
		if !r.Passed() {
			s.Success = false
		}
		total += r.Duration
	}
	s.Duration = total.Round(time.Millisecond).String()
	return s
}

// JSON renders the summary as indented JSON
func (s Summary) JSON() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	return pretty.Pretty(raw), nil
}

var markdownFuncs = template.FuncMap{
	"counts": func(r *models.SuiteReport) string {
		p, f, s := r.Counts()
		return fmt.Sprintf("%d passed, %d failed, %d skipped", p, f, s)
	},
	"icon": func(o models.Outcome) string {
		switch o {
		case models.OutcomePass:
			return "✅"
		case models.OutcomeFail:
			return "❌"
		}
		return "⏭️"
	},
	"dur": func(d time.Duration) string {
		return d.Round(time.Millisecond).String()
	},
	"cell": func(s string) string {
		s = firstLine(s)
		return strings.ReplaceAll(s, "|", `\|`)
	},
}

var markdownTemplate = template.Must(template.New("summary").Funcs(markdownFuncs).Parse(`# Smoke run {{.RunID}}

**{{if .Success}}PASSED{{else}}FAILED{{end}}**: {{.Passed}} passed, {{.Failed}} failed, {{.Skipped}} skipped in {{.Duration}}
{{range .Suites}}
## Suite: {{.Suite}}

{{counts .}} in {{dur .Duration}}
{{if .SuiteError}}
> **Suite error:** {{cell .SuiteError}}
{{end}}
| | Scenario | Tier | Duration | Detail |
|---|---|---|---|---|
{{range .Scenarios}}| {{icon .Outcome}} | {{cell .Name}} | {{.Tier}} | {{dur .Duration}} | {{cell .Error}} |
{{end}}{{range .Scenarios}}{{if .Artifacts}}
### {{.Name}}

{{range .Artifacts}}{{range .Files}}- [{{.Path}}]({{.Path}})
{{end}}{{end}}{{end}}{{end}}{{end}}`))

// Markdown renders the summary as a Markdown document
func (s Summary) Markdown() ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("failed to render markdown summary: %w", err)
	}
	return buf.Bytes(), nil
}

// HTML renders markdown as a standalone HTML page
func HTML(title string, markdown []byte) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	var body bytes.Buffer
	if err := md.Convert(markdown, &body); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n",
		template.HTMLEscapeString(title), pageStyle)
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

const pageStyle = `body{font-family:sans-serif;max-width:960px;margin:2em auto}` +
	`table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}`
