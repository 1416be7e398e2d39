package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/runner"
	"github.com/ternarybob/smoke/internal/services/workbench"
)

type stepFunc func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error

// Compile turns a validated suite file into a runnable suite
func Compile(file *SuiteFile) (runner.Suite, error) {
	suite := runner.Suite{Name: file.Name}
	for _, spec := range file.Scenarios {
		steps := make([]stepFunc, 0, len(spec.Steps))
		for i, step := range spec.Steps {
			fn, err := compileStep(step)
			if err != nil {
				return runner.Suite{}, fmt.Errorf("scenario %q step %d: %w", spec.Name, i+1, err)
			}
			steps = append(steps, fn)
		}
		suite.Cases = append(suite.Cases, runner.TestCase{
			Name: spec.Name,
			Skip: spec.Skip,
			Body: body(spec, steps),
		})
	}
	return suite, nil
}

func body(spec Scenario, steps []stepFunc) runner.Body {
	return func(ctx context.Context, sc *runner.Scenario) error {
		wb := workbench.FromScenario(sc)
		for i, step := range steps {
			if err := step(ctx, sc, wb); err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, spec.Steps[i].Action, err)
			}
		}
		return nil
	}
}

func compileStep(step Step) (stepFunc, error) {
	if err := validateStep(step); err != nil {
		return nil, err
	}
	timeout := common.ParseDuration(step.Timeout, 0)
	sel := models.Selector(step.Selector)

	switch step.Action {
	case ActionOpenFile:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			return wb.QuickOpen.OpenFile(ctx, step.File)
		}, nil

	case ActionOpenOutline:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			_, err := wb.Editor.OpenOutline(ctx)
			return err
		}, nil

	case ActionCloseQuickOpen:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			return wb.QuickOpen.Close(ctx)
		}, nil

	case ActionType:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			if step.File != "" {
				return wb.Editor.TypeInEditor(ctx, step.File, step.Text)
			}
			return sc.Input().TypeText(ctx, step.Text)
		}, nil

	case ActionKey:
		chord, err := models.ParseKeyChord(step.Key)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			return sc.Input().KeyPress(ctx, chord)
		}, nil

	case ActionClick:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			if _, err := sc.Locator().WaitForElement(ctx, sel, timeout); err != nil {
				return err
			}
			return sc.Input().ClickSelector(ctx, sel)
		}, nil

	case ActionWaitFor:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			_, err := sc.Locator().WaitForElement(ctx, sel, timeout)
			return err
		}, nil

	case ActionWaitAbsent:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			return sc.Locator().WaitForAbsent(ctx, sel, timeout)
		}, nil

	case ActionExpectCount:
		want := *step.Count
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			_, err := sc.Locator().WaitForCount(ctx, sel, want, timeout)
			return asAssertion(sc, err, "expected %d x %s", want, sel)
		}, nil

	case ActionExpectOutlineCount:
		want := *step.Count
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			ctx, cancel := stepContext(ctx, timeout)
			defer cancel()
			_, err := wb.QuickOpen.WaitForElements(ctx, fmt.Sprintf("count is %d", want), func(names []string) bool {
				return len(names) == want
			})
			return asAssertion(sc, err, "expected %d outline entries", want)
		}, nil

	case ActionExpectProblem:
		severity, err := models.ParseProblemSeverity(step.Severity)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			ctx, cancel := stepContext(ctx, timeout)
			defer cancel()
			err := wb.Problems.WaitForProblem(ctx, severity, step.InPanel)
			return asAssertion(sc, err, "expected a %s problem", severity)
		}, nil

	case ActionShowProblems:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			return wb.Problems.Show(ctx)
		}, nil

	case ActionHideProblems:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			return wb.Problems.Hide(ctx)
		}, nil

	case ActionSetSetting:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			return wb.Settings.AddUserSetting(ctx, step.Setting, step.Value)
		}, nil

	case ActionCapture:
		return func(ctx context.Context, sc *runner.Scenario, wb *workbench.Workbench) error {
			sc.Capture(ctx, step.Label)
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}

// stepContext narrows ctx for steps that set their own timeout
func stepContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// asAssertion reports a timed out expectation as an assertion failure.
// Other errors keep their tier.
func asAssertion(sc *runner.Scenario, err error, format string, args ...any) error {
	var timeoutErr *models.TimeoutError
	if err == nil || !errors.As(err, &timeoutErr) {
		return err
	}
	return fmt.Errorf("%w: %v", sc.Fail(format, args...), err)
}
