package workbench

import (
	"fmt"

	"github.com/ternarybob/smoke/internal/models"
)

// Selectors shared by the harness and the editor's DOM. A change in the
// editor's markup breaks these, not the harness.
const (
	Root models.Selector = ".monaco-workbench"

	QuickOpenWidget models.Selector = ".quick-open-widget"
	QuickOpenInput  models.Selector = ".quick-open-widget .quick-open-input input.focused"
	QuickOpenRows   models.Selector = ".quick-open-widget .quick-open-tree .monaco-tree-row"
	QuickOpenLabels models.Selector = ".quick-open-widget .quick-open-tree .monaco-tree-row .label-name"

	ProblemsPanel models.Selector = ".panel.markers-panel"

	SettingsSearch     models.Selector = ".settings-search-input input.focused"
	UserSettingsEditor models.Selector = ".editable-preferences-editor-container .monaco-editor.focused"
)

// QuickOpenRow matches the quick open entry labelled name
func QuickOpenRow(name string) models.Selector {
	return models.Selector(fmt.Sprintf(`%s[aria-label="%s"]`, QuickOpenRows, name))
}

// FocusedEditor matches the focused editor whose document ends with file
func FocusedEditor(file string) models.Selector {
	return models.Selector(fmt.Sprintf(`.monaco-editor.focused[data-uri$="%s"]`, file))
}

// EditorLines matches the rendered text of the editor showing file
func EditorLines(file string) models.Selector {
	return models.Selector(fmt.Sprintf(`.monaco-editor[data-uri$="%s"] .view-lines`, file))
}

// DirtyTab matches the tab of file while it has unsaved changes
func DirtyTab(file string) models.Selector {
	return models.Selector(fmt.Sprintf(`.tabs-container .tab.dirty[title$="%s"]`, file))
}

// ProblemInEditor matches an in-editor squiggle of the given severity
func ProblemInEditor(severity models.ProblemSeverity) models.Selector {
	return models.Selector(fmt.Sprintf(".view-overlays .cdr.squiggly-%s", severity))
}

// ProblemInProblemsView matches a problems panel entry of the given severity
func ProblemInProblemsView(severity models.ProblemSeverity) models.Selector {
	return models.Selector(fmt.Sprintf(`div[aria-label="Problems grouped by files"] .icon.%s`, severity))
}
