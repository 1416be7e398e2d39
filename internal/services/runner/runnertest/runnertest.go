// Package runnertest runs smoke suites from go test.
package runnertest

import (
	"context"
	"testing"

	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/runner"
)

// Run runs suite and reports every scenario as a go test subtest, so suites
// can live in ordinary _test.go files and show up in `go test -v` output.
func Run(t *testing.T, r *runner.Runner, suite runner.Suite) *models.SuiteReport {
	t.Helper()

	report := r.Run(context.Background(), suite)
	if report.SuiteError != "" {
		t.Errorf("suite %s: %s", suite.Name, report.SuiteError)
	}

	for _, result := range report.Scenarios {
		result := result
		t.Run(result.Name, func(t *testing.T) {
			for _, a := range result.Artifacts {
				for _, f := range a.Files {
					t.Logf("artifact: %s", f.Path)
				}
			}
			switch result.Outcome {
			case models.OutcomeSkip:
				t.Skip(result.Error)
			case models.OutcomeFail:
				t.Errorf("[%s] %s", result.Tier, result.Error)
			}
		})
	}
	return report
}
