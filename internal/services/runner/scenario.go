package runner

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/capture"
	"github.com/ternarybob/smoke/internal/services/input"
	"github.com/ternarybob/smoke/internal/services/locator"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// Body is a scenario's test code. Returning an error fails the scenario.
type Body func(ctx context.Context, sc *Scenario) error

// TestCase is one independent scenario of a suite
type TestCase struct {
	Name string
	Body Body
	Skip string // Non-empty skips the case with this reason
}

// Suite is an ordered list of scenarios sharing one application session
type Suite struct {
	Name  string
	Cases []TestCase
}

// Scenario is the handle a running test case uses to reach the harness.
// It is only valid for the duration of the body.
type Scenario struct {
	name     string
	logger   arbor.ILogger
	locator  *locator.Locator
	input    *input.Service
	waiter   *waiter.Waiter
	capturer *capture.ScenarioCapturer

	mu        sync.Mutex
	artifacts []models.Artifact
}

func (s *Scenario) Name() string { return s.name }
func (s *Scenario) Logger() arbor.ILogger { return s.logger }
func (s *Scenario) Locator() *locator.Locator { return s.locator }
func (s *Scenario) Input() *input.Service { return s.input }
func (s *Scenario) Waiter() *waiter.Waiter { return s.waiter }

// Capture records a checkpoint artifact. Failures are logged by the capturer
// and never reach the scenario.
func (s *Scenario) Capture(ctx context.Context, label string) {
	if s.capturer == nil {
		return
	}
	artifact, err := s.capturer.Capture(ctx, label)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.artifacts = append(s.artifacts, *artifact)
	s.mu.Unlock()
}

// Artifacts returns the artifacts captured so far
func (s *Scenario) Artifacts() []models.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Artifact(nil), s.artifacts...)
}

// Log writes an info line tagged with the scenario name
func (s *Scenario) Log(format string, args ...any) {
	s.logger.Info().Str("scenario", s.name).Msg(fmt.Sprintf(format, args...))
}

// Fail returns an assertion failure
func (s *Scenario) Fail(format string, args ...any) error {
	return &models.AssertionError{Message: fmt.Sprintf(format, args...)}
}

// Expect returns an assertion failure when cond is false
func (s *Scenario) Expect(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return s.Fail(format, args...)
}

// ExpectEqual returns an assertion failure when want and got differ
func (s *Scenario) ExpectEqual(want, got any, format string, args ...any) error {
	if reflect.DeepEqual(want, got) {
		return nil
	}
	return s.Fail("%s: want %v, got %v", fmt.Sprintf(format, args...), want, got)
}
