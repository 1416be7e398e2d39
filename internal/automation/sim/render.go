package sim

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/ternarybob/smoke/internal/models"
)

const workbenchHTML = `<div class="monaco-workbench" role="application">` +
	`<div class="part titlebar"><div class="window-title">Smoke Editor</div></div>` +
	`<div class="part editor" id="sim-editor"></div>` +
	`<div id="sim-quick-open"></div>` +
	`<div class="part panel-container" id="sim-panel"></div>` +
	`<div class="part statusbar" id="sim-statusbar"></div>` +
	`</div>`

func (a *App) renderWorkbench() {
	a.doc.Find("body").SetHtml(workbenchHTML)
	a.ready = true
	a.renderEditor()
	a.renderQuickOpen()
	a.renderPanel()
	a.renderStatus()
	a.logger.Debug().Msg("Sim workbench ready")
}

func (a *App) renderEditor() {
	if !a.ready {
		return
	}
	var b strings.Builder

	if a.active == "" {
		b.WriteString(`<div class="editor-group-container empty"><div class="watermark">Show All Commands Ctrl+Shift+P</div></div>`)
		a.doc.Find("#sim-editor").SetHtml(b.String())
		return
	}

	b.WriteString(`<div class="editor-group-container"><div class="tabs-container">`)
	for _, p := range a.order {
		classes := "tab"
		if p == a.active {
			classes += " active"
		}
		if a.buffers[p].dirty {
			classes += " dirty"
		}
		fmt.Fprintf(&b, `<div class="%s" title="%s" data-sim-action="activate" data-sim-path="%s">%s</div>`,
			classes, esc(p), esc(p), esc(path.Base(p)))
	}
	b.WriteString(`</div>`)

	buf := a.buffers[a.active]
	if a.active == settingsPath {
		searchClass := "input"
		if a.focus == focusSettingsSearch {
			searchClass += " focused"
		}
		b.WriteString(`<div class="preferences-editor">`)
		fmt.Fprintf(&b, `<div class="settings-search-input"><input type="text" class="%s" placeholder="Search settings" data-sim-action="focus-search"></div>`, searchClass)
		b.WriteString(`<div class="default-preferences-editor-container">`)
		b.WriteString(a.editorHTML("defaultSettings.json", defaultSettingsText(), nil, false, -1))
		b.WriteString(`</div><div class="editable-preferences-editor-container">`)
		b.WriteString(a.editorHTML(settingsPath, buf.lines(), a.diagnostics[settingsPath], a.focus == focusEditor, buf.cursor))
		b.WriteString(`</div></div>`)
	} else {
		b.WriteString(`<div class="editor-container">`)
		b.WriteString(a.editorHTML(a.active, buf.lines(), a.diagnostics[a.active], a.focus == focusEditor, buf.cursor))
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)

	a.doc.Find("#sim-editor").SetHtml(b.String())
}

func (a *App) editorHTML(uri string, lines []string, diags []diagnostic, focused bool, cursor int) string {
	var b strings.Builder
	classes := "monaco-editor"
	if focused {
		classes += " focused"
	}
	mode := newBuffer(uri, "").language()
	fmt.Fprintf(&b, `<div class="%s" data-uri="%s" data-mode-id="%s" data-cursor="%d" data-sim-action="focus-editor" data-sim-path="%s">`,
		classes, esc(uri), mode, cursor, esc(uri))

	b.WriteString(`<div class="view-lines">`)
	for i, line := range lines {
		fmt.Fprintf(&b, `<div class="view-line" data-line="%d"><span>%s</span></div>`, i+1, esc(line))
	}
	b.WriteString(`</div><div class="view-overlays">`)
	for _, d := range diags {
		fmt.Fprintf(&b, `<div data-line="%d"><div class="cdr squiggly-%s" title="%s"></div></div>`,
			d.line, d.severity, esc(d.message))
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func (a *App) renderQuickOpen() {
	if !a.ready {
		return
	}
	q := a.quickOpen
	if q == nil {
		a.doc.Find("#sim-quick-open").SetHtml("")
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="quick-open-widget">`)
	inputClass := "input"
	if a.focus == focusQuickOpen {
		inputClass += " focused"
	}
	value := q.query
	if q.mode == modeOutline {
		value = "@" + value
	}
	fmt.Fprintf(&b, `<div class="quick-open-input"><input type="text" class="%s" value="%s"></div>`, inputClass, esc(value))
	b.WriteString(`<div class="quick-open-tree">`)
	if q.rowsReady {
		rows := a.quickOpenRows()
		if len(rows) == 0 {
			b.WriteString(`<div class="message">No results found</div>`)
		}
		for i, row := range rows {
			classes := "monaco-tree-row"
			if i == q.selected {
				classes += " focused"
			}
			fmt.Fprintf(&b, `<div class="%s" aria-label="%s" data-sim-action="accept" data-sim-index="%d"><div class="quick-open-entry"><span class="label-name">%s</span><span class="label-description">%s</span></div></div>`,
				classes, esc(row.label), i, esc(row.label), esc(row.description))
		}
	}
	b.WriteString(`</div></div>`)

	a.doc.Find("#sim-quick-open").SetHtml(b.String())
}

func (a *App) renderPanel() {
	if !a.ready {
		return
	}
	if !a.problems {
		a.doc.Find("#sim-panel").SetHtml("")
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="panel markers-panel"><div class="panel-title">Problems</div>`)
	total := 0
	for _, p := range a.order {
		total += len(a.panelMarkers(p))
	}
	if total == 0 {
		b.WriteString(`<div class="message">No problems have been detected in the workspace so far.</div>`)
	} else {
		b.WriteString(`<div class="monaco-tree" aria-label="Problems grouped by files">`)
		for _, p := range a.order {
			diags := a.panelMarkers(p)
			if len(diags) == 0 {
				continue
			}
			fmt.Fprintf(&b, `<div class="monaco-tree-row file"><span class="label-name">%s</span><span class="count">%d</span></div>`,
				esc(path.Base(p)), len(diags))
			for _, d := range diags {
				fmt.Fprintf(&b, `<div class="monaco-tree-row marker" data-sim-action="reveal" data-sim-path="%s"><div class="marker-icon icon %s"></div><span class="marker-message">%s</span><span class="marker-source">%s</span><span class="marker-line">[%d, %d]</span></div>`,
					esc(p), d.severity, esc(d.message), esc(d.source), d.line, d.col)
			}
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)

	a.doc.Find("#sim-panel").SetHtml(b.String())
}

// panelMarkers is what the problems panel lists for path
func (a *App) panelMarkers(path string) []diagnostic {
	if len(a.pinned[path]) == 0 {
		return a.diagnostics[path]
	}
	markers := make([]diagnostic, 0, len(a.diagnostics[path])+len(a.pinned[path]))
	markers = append(markers, a.diagnostics[path]...)
	return append(markers, a.pinned[path]...)
}

func (a *App) renderStatus() {
	if !a.ready {
		return
	}
	warnings, errors := a.problemCounts()
	a.doc.Find("#sim-statusbar").SetHtml(fmt.Sprintf(
		`<div class="statusbar-item problems" data-warnings="%d" data-errors="%d">%s %d %s %d</div>`,
		warnings, errors, models.SeverityError, errors, models.SeverityWarning, warnings))
}

func defaultSettingsText() []string {
	lines := []string{"{"}
	for i, d := range defaultSettings {
		value := d.value
		if value != "true" && value != "false" && strings.Trim(value, "0123456789") != "" {
			value = `"` + value + `"`
		}
		sep := ","
		if i == len(defaultSettings)-1 {
			sep = ""
		}
		lines = append(lines, fmt.Sprintf(`  "%s": %s%s`, d.key, value, sep))
	}
	return append(lines, "}")
}

func esc(s string) string {
	return html.EscapeString(s)
}
