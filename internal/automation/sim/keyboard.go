package sim

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/smoke/internal/models"
)

type quickOpenMode int

const (
	modeFiles quickOpenMode = iota
	modeOutline
)

type quickOpenState struct {
	mode      quickOpenMode
	query     string
	selected  int
	rowsReady bool
}

type quickOpenRow struct {
	label       string
	description string
	path        string
	offset      int
}

// keyPress applies one chord to the focused part of the workbench
func (a *App) keyPress(chord models.KeyChord) {
	ctrl := chord.Has(models.ModCtrl) || chord.Has(models.ModMeta)
	shift := chord.Has(models.ModShift)
	key := chord.Key

	switch {
	case ctrl && shift && strings.EqualFold(key, "o"):
		a.openQuickOpen(modeOutline)
	case ctrl && shift && strings.EqualFold(key, "m"):
		a.problems = !a.problems
		a.renderPanel()
	case ctrl && !shift && strings.EqualFold(key, "p"):
		a.openQuickOpen(modeFiles)
	case ctrl && key == ",":
		a.openSettings()
	case ctrl && strings.EqualFold(key, "a"):
		if b := a.focusedBuffer(); b != nil {
			b.selectAll = true
		}
	case ctrl && strings.EqualFold(key, "s"):
		a.save()
	case ctrl && strings.EqualFold(key, "w"):
		a.closeEditor(a.active)
	case ctrl || chord.Has(models.ModAlt):
		a.logger.Trace().Str("chord", chord.String()).Msg("Sim ignored chord")
	case key == "Escape":
		a.closeQuickOpen()
	case key == "Enter":
		a.enter()
	case key == "Backspace":
		a.backspace()
	case key == "ArrowDown", key == "ArrowUp":
		a.arrowVertical(key == "ArrowDown")
	case key == "ArrowLeft", key == "ArrowRight":
		if b := a.focusedBuffer(); b != nil {
			if key == "ArrowLeft" {
				b.moveCursor(-1)
			} else {
				b.moveCursor(1)
			}
			a.renderEditor()
		}
	case key == "Home":
		if b := a.focusedBuffer(); b != nil {
			b.lineStart()
			a.renderEditor()
		}
	case key == "End":
		if b := a.focusedBuffer(); b != nil {
			b.lineEnd()
			a.renderEditor()
		}
	case key == "Tab":
		a.typeText("\t")
	case len([]rune(key)) == 1:
		a.typeText(key)
	default:
		a.logger.Trace().Str("chord", chord.String()).Msg("Sim ignored key")
	}
}

// typeText inserts text into the focused input or editor
func (a *App) typeText(text string) {
	switch a.focus {
	case focusQuickOpen:
		a.quickOpen.query += strings.ReplaceAll(text, "\n", "")
		a.quickOpen.selected = 0
		a.refreshQuickOpenRows()
	case focusEditor:
		b := a.buffers[a.active]
		b.insert(text)
		a.renderEditor()
		a.scheduleLint(a.active)
	case focusSettingsSearch:
		// Search filtering is not modelled; the input swallows the text
	default:
		a.logger.Trace().Int("chars", len(text)).Msg("Sim dropped text with nothing focused")
	}
}

func (a *App) focusedBuffer() *buffer {
	if a.focus != focusEditor {
		return nil
	}
	return a.buffers[a.active]
}

func (a *App) openQuickOpen(mode quickOpenMode) {
	a.quickOpen = &quickOpenState{mode: mode}
	a.focus = focusQuickOpen
	a.renderEditor()
	a.refreshQuickOpenRows()
}

// refreshQuickOpenRows hides the rows and shows them again after the render delay
func (a *App) refreshQuickOpenRows() {
	a.quickOpen.rowsReady = false
	a.renderQuickOpen()
	q := a.quickOpen
	a.after("quick-open", a.opts.RenderDelay, func() {
		if a.quickOpen != q {
			return
		}
		q.rowsReady = true
		a.renderQuickOpen()
	})
}

func (a *App) closeQuickOpen() {
	if a.quickOpen == nil {
		return
	}
	a.quickOpen = nil
	a.focus = focusNone
	if a.active != "" {
		a.focus = focusEditor
	}
	a.renderQuickOpen()
	a.renderEditor()
}

func (a *App) quickOpenRows() []quickOpenRow {
	q := a.quickOpen
	if q == nil {
		return nil
	}

	if q.mode == modeOutline {
		b, ok := a.buffers[a.active]
		if !ok || b.language() != "css" {
			return nil
		}
		var rows []quickOpenRow
		filter := strings.ToLower(q.query)
		for _, rule := range scanCSS(b.text) {
			if filter != "" && !strings.Contains(strings.ToLower(rule.selector), filter) {
				continue
			}
			rows = append(rows, quickOpenRow{label: rule.selector, path: a.active, offset: rule.start})
		}
		return rows
	}

	query := strings.ToLower(q.query)
	type scored struct {
		row   quickOpenRow
		score int
	}
	var matches []scored
	for _, f := range a.files {
		base := strings.ToLower(path.Base(f))
		score := 0
		switch {
		case query == "":
			score = 2
		case base == query:
			score = 0
		case strings.HasPrefix(base, query):
			score = 1
		case strings.Contains(strings.ToLower(f), query):
			score = 2
		default:
			continue
		}
		dir := path.Dir(f)
		if dir == "." {
			dir = ""
		}
		matches = append(matches, scored{row: quickOpenRow{label: path.Base(f), description: dir, path: f}, score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	rows := make([]quickOpenRow, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, m.row)
	}
	return rows
}

func (a *App) accept(index int) {
	q := a.quickOpen
	if q == nil || !q.rowsReady {
		return
	}
	rows := a.quickOpenRows()
	if index < 0 || index >= len(rows) {
		return
	}
	row := rows[index]

	a.quickOpen = nil
	a.renderQuickOpen()

	if q.mode == modeOutline {
		if b, ok := a.buffers[row.path]; ok {
			b.cursor = row.offset
			b.selectAll = false
		}
		a.focus = focusEditor
		a.renderEditor()
		return
	}
	a.openFile(row.path)
}

func (a *App) enter() {
	switch a.focus {
	case focusQuickOpen:
		a.accept(a.quickOpen.selected)
	case focusEditor:
		a.typeText("\n")
	case focusSettingsSearch:
		a.focus = focusEditor
		a.renderEditor()
	}
}

func (a *App) backspace() {
	switch a.focus {
	case focusQuickOpen:
		if q := a.quickOpen; q.query != "" {
			r := []rune(q.query)
			q.query = string(r[:len(r)-1])
			a.refreshQuickOpenRows()
		}
	case focusEditor:
		a.buffers[a.active].backspace()
		a.renderEditor()
		a.scheduleLint(a.active)
	}
}

func (a *App) arrowVertical(down bool) {
	switch a.focus {
	case focusQuickOpen:
		q := a.quickOpen
		n := len(a.quickOpenRows())
		if n == 0 {
			return
		}
		if down {
			q.selected = (q.selected + 1) % n
		} else {
			q.selected = (q.selected - 1 + n) % n
		}
		a.renderQuickOpen()
	case focusSettingsSearch:
		// Down from the search box moves into the user settings editor
		a.focus = focusEditor
		a.renderEditor()
	}
}

// openFile opens (or re-activates) a workspace file and focuses its editor.
// Unsaved edits of an already open file are kept.
func (a *App) openFile(rel string) {
	if _, ok := a.buffers[rel]; !ok {
		data, err := os.ReadFile(filepath.Join(a.opts.Workspace, filepath.FromSlash(rel)))
		if err != nil {
			a.logger.Warn().Err(err).Str("file", rel).Msg("Sim failed to open file")
			return
		}
		a.buffers[rel] = newBuffer(rel, string(data))
		a.order = append(a.order, rel)
		a.scheduleLint(rel)
	}
	a.active = rel
	a.focus = focusEditor
	a.renderEditor()
}

func (a *App) openSettings() {
	if _, ok := a.buffers[settingsPath]; !ok {
		a.buffers[settingsPath] = newBuffer(settingsPath, a.settings.text)
		a.order = append(a.order, settingsPath)
	}
	a.quickOpen = nil
	a.active = settingsPath
	a.focus = focusSettingsSearch
	a.renderQuickOpen()
	a.renderEditor()
}

func (a *App) closeEditor(rel string) {
	if rel == "" {
		return
	}
	delete(a.buffers, rel)
	delete(a.diagnostics, rel)
	for i, p := range a.order {
		if p == rel {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	a.active = ""
	a.focus = focusNone
	if n := len(a.order); n > 0 {
		a.active = a.order[n-1]
		a.focus = focusEditor
	}
	a.renderEditor()
	a.renderPanel()
	a.renderStatus()
}

// save keeps workspace files in memory; only settings.json changes behaviour
func (a *App) save() {
	b, ok := a.buffers[a.active]
	if !ok {
		return
	}
	if a.active == settingsPath {
		if err := a.settings.apply(b.String()); err != nil {
			a.logger.Warn().Err(err).Msg("Sim rejected settings.json")
			return
		}
		a.relintAll()
	}
	b.dirty = false
	a.renderEditor()
}

// click performs the action attached to the clicked element or its nearest ancestor
func (a *App) click(action, target string, index int) {
	switch action {
	case "accept":
		a.accept(index)
	case "focus-editor":
		if target == "defaultSettings.json" {
			return
		}
		if a.quickOpen != nil {
			a.quickOpen = nil
			a.renderQuickOpen()
		}
		a.focus = focusEditor
		a.renderEditor()
	case "focus-search":
		a.focus = focusSettingsSearch
		a.renderEditor()
	case "activate", "reveal":
		if _, ok := a.buffers[target]; ok {
			a.active = target
			a.focus = focusEditor
			a.renderEditor()
		}
	}
}
