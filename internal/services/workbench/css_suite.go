package workbench

import (
	"context"
	"errors"

	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/runner"
)

// CSSFixture is the stylesheet the CSS suite expects in the workspace
const CSSFixture = "style.css"

// CSSSuite checks outline extraction and lint severity for CSS documents
func CSSSuite() runner.Suite {
	return runner.Suite{
		Name: "css",
		Cases: []runner.TestCase{
			{Name: "verifies quick outline", Body: verifyQuickOutline},
			{Name: "verifies warnings for the empty rule", Body: verifyEmptyRuleWarning},
			{Name: "verifies that warning becomes an error once setting changed", Body: verifyEmptyRuleError},
		},
	}
}

func verifyQuickOutline(ctx context.Context, sc *runner.Scenario) error {
	wb := FromScenario(sc)

	if err := wb.QuickOpen.OpenFile(ctx, CSSFixture); err != nil {
		return err
	}
	outline, err := wb.Editor.OpenOutline(ctx)
	if err != nil {
		return err
	}
	var names []string
	_, err = outline.WaitForElements(ctx, "count is 2", func(current []string) bool {
		names = current
		return len(current) == 2
	})
	var timeoutErr *models.TimeoutError
	if errors.As(err, &timeoutErr) {
		return sc.Fail("Did not find two outline elements: %v", names)
	}
	if err != nil {
		return err
	}
	sc.Capture(ctx, "outline")
	sc.Log("Outline entries: %v", names)

	return outline.Close(ctx)
}

func verifyEmptyRuleWarning(ctx context.Context, sc *runner.Scenario) error {
	return emptyRuleShows(ctx, sc, models.SeverityWarning)
}

func verifyEmptyRuleError(ctx context.Context, sc *runner.Scenario) error {
	wb := FromScenario(sc)
	if err := wb.Settings.AddUserSetting(ctx, "css.lint.emptyRules", string(models.SeverityError)); err != nil {
		return err
	}
	return emptyRuleShows(ctx, sc, models.SeverityError)
}

// emptyRuleShows types an empty rule and expects a diagnostic of severity,
// and none of the other severity, in the editor and in the problems panel
func emptyRuleShows(ctx context.Context, sc *runner.Scenario, severity models.ProblemSeverity) error {
	wb := FromScenario(sc)

	if err := wb.QuickOpen.OpenFile(ctx, CSSFixture); err != nil {
		return err
	}
	if err := wb.Editor.TypeInEditor(ctx, CSSFixture, ".foo{}"); err != nil {
		return err
	}
	if err := wb.Problems.WaitForProblem(ctx, severity, false); err != nil {
		return err
	}
	if err := sc.Locator().WaitForAbsent(ctx, ProblemInEditor(otherSeverity(severity)), 0); err != nil {
		return err
	}
	sc.Capture(ctx, "editor-"+string(severity))

	if err := wb.Problems.Show(ctx); err != nil {
		return err
	}
	if err := wb.Problems.WaitForProblem(ctx, severity, true); err != nil {
		return err
	}
	if err := sc.Locator().WaitForAbsent(ctx, ProblemInProblemsView(otherSeverity(severity)), 0); err != nil {
		return err
	}
	sc.Capture(ctx, "problems-"+string(severity))

	return wb.Problems.Hide(ctx)
}

func otherSeverity(s models.ProblemSeverity) models.ProblemSeverity {
	if s == models.SeverityError {
		return models.SeverityWarning
	}
	return models.SeverityError
}
