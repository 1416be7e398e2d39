package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ternarybob/smoke/internal/models"
)

// Console prints run results to a terminal
type Console struct {
	out      io.Writer
	renderer *glamour.TermRenderer // nil = plain markdown

	passStyle lipgloss.Style
	failStyle lipgloss.Style
	skipStyle lipgloss.Style
	dimStyle  lipgloss.Style
	headStyle lipgloss.Style
}

// NewConsole creates a console printer. With styled=false output is plain
// text, which keeps CI logs free of escape codes.
func NewConsole(out io.Writer, styled bool) *Console {
	c := &Console{
		out:       out,
		passStyle: lipgloss.NewStyle(),
		failStyle: lipgloss.NewStyle(),
		skipStyle: lipgloss.NewStyle(),
		dimStyle:  lipgloss.NewStyle(),
		headStyle: lipgloss.NewStyle(),
	}
	if !styled {
		return c
	}

	c.passStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	c.failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).Bold(true)
	c.skipStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"})
	c.dimStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	c.headStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		c.renderer = renderer
	}
	return c
}

// Suite prints one line per scenario and the suite totals
func (c *Console) Suite(r *models.SuiteReport) {
	fmt.Fprintln(c.out, c.headStyle.Render("Suite: "+r.Suite))
	for _, s := range r.Scenarios {
		var mark string
		switch s.Outcome {
		case models.OutcomePass:
			mark = c.passStyle.Render("PASS")
		case models.OutcomeFail:
			mark = c.failStyle.Render("FAIL")
		default:
			mark = c.skipStyle.Render("SKIP")
		}
		fmt.Fprintf(c.out, "  %s %s %s\n", mark, s.Name, c.dimStyle.Render("("+s.Duration.Round(time.Millisecond).String()+")"))
		if s.Error != "" {
			fmt.Fprintf(c.out, "       %s\n", c.dimStyle.Render(firstLine(s.Error)))
		}
		for _, a := range s.Artifacts {
			for _, f := range a.Files {
				fmt.Fprintf(c.out, "       %s\n", c.dimStyle.Render("artifact: "+f.Path))
			}
		}
	}
	if r.SuiteError != "" {
		fmt.Fprintf(c.out, "  %s %s\n", c.failStyle.Render("SUITE ERROR"), firstLine(r.SuiteError))
	}
	if len(r.AppLog) > 0 {
		fmt.Fprintf(c.out, "  %s\n", c.dimStyle.Render("application log:"))
		for _, line := range r.AppLog {
			fmt.Fprintf(c.out, "       %s\n", c.dimStyle.Render(line))
		}
	}
	p, f, s := r.Counts()
	fmt.Fprintf(c.out, "  %d passed, %d failed, %d skipped\n", p, f, s)
}

// Markdown prints a markdown document, rendered when styling is on
func (c *Console) Markdown(md []byte) {
	if c.renderer != nil {
		if out, err := c.renderer.RenderBytes(md); err == nil {
			c.out.Write(out)
			return
		}
	}
	c.out.Write(md)
}
