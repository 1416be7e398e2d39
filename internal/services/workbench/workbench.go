package workbench

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/input"
	"github.com/ternarybob/smoke/internal/services/locator"
	"github.com/ternarybob/smoke/internal/services/runner"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

var (
	chordQuickOpen = models.MustParseKeyChord("Ctrl+P")
	chordOutline   = models.MustParseKeyChord("Ctrl+Shift+O")
	chordProblems  = models.MustParseKeyChord("Ctrl+Shift+M")
	chordSettings  = models.MustParseKeyChord("Ctrl+,")
	chordSave      = models.MustParseKeyChord("Ctrl+S")
	chordEnter     = models.MustParseKeyChord("Enter")
	chordEscape    = models.MustParseKeyChord("Escape")
	chordDown      = models.MustParseKeyChord("ArrowDown")
	chordRight     = models.MustParseKeyChord("ArrowRight")
)

// Workbench groups the editor's page objects. Every method issues input and
// then waits for the UI to show the result.
type Workbench struct {
	QuickOpen *QuickOpen
	Editor    *Editor
	Problems  *Problems
	Settings  *SettingsEditor
}

// New builds the page objects over the harness services
func New(loc *locator.Locator, in *input.Service, w *waiter.Waiter, logger arbor.ILogger) *Workbench {
	p := &page{locator: loc, input: in, waiter: w, logger: logger}
	return &Workbench{
		QuickOpen: &QuickOpen{page: p},
		Editor:    &Editor{page: p},
		Problems:  &Problems{page: p},
		Settings:  &SettingsEditor{page: p},
	}
}

// FromScenario builds the page objects for a running scenario
func FromScenario(sc *runner.Scenario) *Workbench {
	return New(sc.Locator(), sc.Input(), sc.Waiter(), sc.Logger())
}

type page struct {
	locator *locator.Locator
	input   *input.Service
	waiter  *waiter.Waiter
	logger  arbor.ILogger
}

func (p *page) press(ctx context.Context, chord models.KeyChord) error {
	return p.input.KeyPress(ctx, chord)
}

func (p *page) waitFor(ctx context.Context, sel models.Selector) error {
	_, err := p.locator.WaitForElement(ctx, sel, 0)
	return err
}

func (p *page) waitGone(ctx context.Context, sel models.Selector) error {
	return p.locator.WaitForAbsent(ctx, sel, 0)
}

// QuickOpen is the file picker
type QuickOpen struct {
	page *page
}

// Open shows the picker with an empty query
func (q *QuickOpen) Open(ctx context.Context) error {
	if err := q.page.press(ctx, chordQuickOpen); err != nil {
		return err
	}
	return q.page.waitFor(ctx, QuickOpenInput)
}

// OpenFile opens name through quick open and waits for its editor to take focus
func (q *QuickOpen) OpenFile(ctx context.Context, name string) error {
	if err := q.Open(ctx); err != nil {
		return fmt.Errorf("open quick open: %w", err)
	}
	if err := q.page.input.TypeText(ctx, name); err != nil {
		return err
	}
	if err := q.page.waitFor(ctx, QuickOpenRow(name)); err != nil {
		return fmt.Errorf("quick open never listed %s: %w", name, err)
	}
	if err := q.page.press(ctx, chordEnter); err != nil {
		return err
	}
	if err := q.page.waitFor(ctx, FocusedEditor(name)); err != nil {
		return fmt.Errorf("editor for %s never took focus: %w", name, err)
	}

	q.page.logger.Debug().Str("file", name).Msg("File opened")
	return nil
}

// Elements waits for the picker's rows to render and returns them
func (q *QuickOpen) Elements(ctx context.Context) ([]models.ElementHandle, error) {
	if err := q.page.waitFor(ctx, QuickOpenRows); err != nil {
		return nil, err
	}
	return q.page.locator.Find(ctx, QuickOpenLabels)
}

// WaitForElements waits until the rows satisfy accept, for example a count
func (q *QuickOpen) WaitForElements(ctx context.Context, description string, accept func(names []string) bool) ([]string, error) {
	spec := q.page.waiter.Spec("quick open rows " + description)
	return waiter.Until(ctx, q.page.waiter, spec, func(ctx context.Context) ([]string, bool, error) {
		rows, err := q.page.locator.Find(ctx, QuickOpenLabels)
		if err != nil {
			return nil, false, err
		}
		names := make([]string, 0, len(rows))
		for _, r := range rows {
			names = append(names, r.Text)
		}
		return names, accept(names), nil
	})
}

// Close dismisses the picker
func (q *QuickOpen) Close(ctx context.Context) error {
	if err := q.page.press(ctx, chordEscape); err != nil {
		return err
	}
	return q.page.waitGone(ctx, QuickOpenWidget)
}

// Editor is the active text editor
type Editor struct {
	page *page
}

// OpenOutline shows the symbol outline of the active editor
func (e *Editor) OpenOutline(ctx context.Context) (*Outline, error) {
	if err := e.page.press(ctx, chordOutline); err != nil {
		return nil, err
	}
	if err := e.page.waitFor(ctx, QuickOpenWidget); err != nil {
		return nil, fmt.Errorf("outline did not open: %w", err)
	}
	return &Outline{QuickOpen{page: e.page}}, nil
}

// TypeInEditor types text into the focused editor of file and waits until
// the rendered document contains it
func (e *Editor) TypeInEditor(ctx context.Context, file, text string) error {
	if err := e.page.waitFor(ctx, FocusedEditor(file)); err != nil {
		return fmt.Errorf("editor for %s not focused: %w", file, err)
	}
	if err := e.page.input.TypeText(ctx, text); err != nil {
		return err
	}

	want := normalizeText(text)
	spec := e.page.waiter.Spec(fmt.Sprintf("%q in %s", text, file))
	return e.page.waiter.Wait(ctx, spec, func(ctx context.Context) (bool, error) {
		lines, err := e.page.locator.FindOne(ctx, EditorLines(file))
		if err != nil {
			return false, err
		}
		return strings.Contains(normalizeText(lines.Text), want), nil
	})
}

// normalizeText folds the non-breaking spaces editors render for whitespace
func normalizeText(s string) string {
	return strings.ReplaceAll(s, "\u00a0", " ")
}

// Outline is quick open in symbol mode
type Outline struct {
	QuickOpen
}

// Problems is the aggregated diagnostics panel
type Problems struct {
	page *page
}

// Show toggles the panel open and waits for it
func (p *Problems) Show(ctx context.Context) error {
	if err := p.page.press(ctx, chordProblems); err != nil {
		return err
	}
	return p.page.waitFor(ctx, ProblemsPanel)
}

// Hide toggles the panel closed and waits for it to go
func (p *Problems) Hide(ctx context.Context) error {
	if err := p.page.press(ctx, chordProblems); err != nil {
		return err
	}
	return p.page.waitGone(ctx, ProblemsPanel)
}

// WaitForProblem waits for a squiggle of severity in the editor and, when the
// panel is open, for a matching entry there
func (p *Problems) WaitForProblem(ctx context.Context, severity models.ProblemSeverity, inPanel bool) error {
	if err := p.page.waitFor(ctx, ProblemInEditor(severity)); err != nil {
		return err
	}
	if !inPanel {
		return nil
	}
	return p.page.waitFor(ctx, ProblemInProblemsView(severity))
}

// SettingsEditor is the user settings JSON editor
type SettingsEditor struct {
	page *page
}

// AddUserSetting inserts "key": value at the top of the user settings and
// saves. value is encoded as JSON.
func (s *SettingsEditor) AddUserSetting(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	keyJSON, _ := json.Marshal(key)

	if err := s.page.press(ctx, chordSettings); err != nil {
		return err
	}
	if err := s.page.waitFor(ctx, SettingsSearch); err != nil {
		return fmt.Errorf("settings editor did not open: %w", err)
	}
	if err := s.page.press(ctx, chordDown); err != nil {
		return err
	}
	if err := s.page.waitFor(ctx, UserSettingsEditor); err != nil {
		return fmt.Errorf("user settings editor not focused: %w", err)
	}
	// Past the opening brace
	if err := s.page.press(ctx, chordRight); err != nil {
		return err
	}
	if err := s.page.input.TypeText(ctx, fmt.Sprintf("%s: %s,", keyJSON, encoded)); err != nil {
		return err
	}
	if err := s.page.press(ctx, chordSave); err != nil {
		return err
	}

	// The tab stays dirty when the editor rejects the file
	if err := s.page.waitGone(ctx, DirtyTab("settings.json")); err != nil {
		return fmt.Errorf("settings.json was not saved: %w", err)
	}

	s.page.logger.Info().
		Str("key", key).
		Str("value", string(encoded)).
		Msg("User setting added")
	return nil
}
