package models

import "time"

// Outcome is the result of one scenario
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
	OutcomeSkip Outcome = "skip"
)

// ScenarioResult is the reported outcome of a single scenario
type ScenarioResult struct {
	Name      string        `json:"name"`
	Outcome   Outcome       `json:"outcome"`
	Tier      ErrorTier     `json:"tier,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Artifacts []Artifact    `json:"artifacts,omitempty"`
}

// SuiteReport is the reported outcome of one suite run
type SuiteReport struct {
	RunID       string              `json:"run_id"`
	Suite       string              `json:"suite"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    time.Duration       `json:"duration"`
	SuiteError  string              `json:"suite_error,omitempty"`
	Aborted     bool                `json:"aborted"`
	Transitions []SessionTransition `json:"transitions,omitempty"`
	Scenarios   []ScenarioResult    `json:"scenarios"`
	AppLog      []string            `json:"app_log,omitempty"` // Warnings and errors from the last launch, failed suites only
}

// Counts returns pass, fail and skip totals
func (r *SuiteReport) Counts() (passed, failed, skipped int) {
	for _, s := range r.Scenarios {
		switch s.Outcome {
		case OutcomePass:
			passed++
		case OutcomeFail:
			failed++
		case OutcomeSkip:
			skipped++
		}
	}
	return passed, failed, skipped
}

// Passed reports whether the suite ran cleanly with no failures
func (r *SuiteReport) Passed() bool {
	_, failed, _ := r.Counts()
	return failed == 0 && r.SuiteError == ""
}
