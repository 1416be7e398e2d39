package sim

import "github.com/ternarybob/smoke/internal/models"

const emptyRuleMessage = "Do not use empty rulesets"

type diagnostic struct {
	severity models.ProblemSeverity
	message  string
	source   string
	line     int
	col      int
}

// lint computes diagnostics for b with the current settings
func (a *App) lint(b *buffer) []diagnostic {
	if b.language() != "css" || a.settings.get("css.validate") == "false" {
		return nil
	}

	level := a.settings.get("css.lint.emptyRules")
	if level == "ignore" {
		return nil
	}
	severity, err := models.ParseProblemSeverity(level)
	if err != nil {
		severity = models.SeverityWarning
	}

	var diags []diagnostic
	for _, rule := range scanCSS(b.text) {
		if !rule.empty {
			continue
		}
		line, col := b.position(rule.start)
		diags = append(diags, diagnostic{
			severity: severity,
			message:  emptyRuleMessage,
			source:   "css",
			line:     line,
			col:      col,
		})
	}
	return diags
}

// scheduleLint recomputes diagnostics for path after the debounce delay
func (a *App) scheduleLint(path string) {
	a.after("lint:"+path, a.opts.LintDelay, func() {
		b, ok := a.buffers[path]
		if !ok {
			delete(a.diagnostics, path)
		} else {
			a.diagnostics[path] = a.lint(b)
		}
		a.renderEditor()
		a.renderPanel()
		a.renderStatus()
	})
}

// relintAll is used after a settings change
func (a *App) relintAll() {
	for path := range a.buffers {
		a.scheduleLint(path)
	}
}

func (a *App) problemCounts() (warnings, errors int) {
	for _, diags := range a.diagnostics {
		for _, d := range diags {
			if d.severity == models.SeverityError {
				errors++
			} else {
				warnings++
			}
		}
	}
	return warnings, errors
}
