package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/models"
)

// ErrNoSuites is returned by LoadDir for a directory without suite files
var ErrNoSuites = errors.New("no suite files")

// Load reads and validates a YAML suite. Unknown fields are rejected so a
// typo fails the load instead of silently skipping a step.
func Load(path string) (*SuiteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	suite.path = path
	return suite, nil
}

// Parse decodes and validates a YAML suite
func Parse(data []byte) (*SuiteFile, error) {
	var suite SuiteFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// LoadDir loads every *.yaml and *.yml suite in dir, sorted by file name
func LoadDir(dir string) ([]*SuiteFile, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSuites, dir)
	}

	suites := make([]*SuiteFile, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// Validate checks struct tags and then the fields each action needs
func Validate(suite *SuiteFile) error {
	validate, err := common.NewValidator()
	if err != nil {
		return err
	}
	if err := validate.Struct(suite); err != nil {
		return err
	}

	seen := map[string]bool{}
	var errs []error
	for _, sc := range suite.Scenarios {
		if seen[sc.Name] {
			errs = append(errs, fmt.Errorf("duplicate scenario name %q", sc.Name))
		}
		seen[sc.Name] = true

		for i, step := range sc.Steps {
			if err := validateStep(step); err != nil {
				errs = append(errs, fmt.Errorf("scenario %q step %d (%s): %w", sc.Name, i+1, step.Action, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validateStep(step Step) error {
	switch step.Action {
	case ActionOpenFile:
		return requireField("file", step.File)
	case ActionType:
		return requireField("text", step.Text)
	case ActionKey:
		if err := requireField("key", step.Key); err != nil {
			return err
		}
		_, err := models.ParseKeyChord(step.Key)
		return err
	case ActionClick, ActionWaitFor, ActionWaitAbsent:
		return models.Selector(step.Selector).Validate()
	case ActionExpectCount:
		if step.Count == nil {
			return fmt.Errorf("count is required")
		}
		return models.Selector(step.Selector).Validate()
	case ActionExpectOutlineCount:
		if step.Count == nil {
			return fmt.Errorf("count is required")
		}
		return nil
	case ActionExpectProblem:
		_, err := models.ParseProblemSeverity(step.Severity)
		return err
	case ActionSetSetting:
		if err := requireField("setting", step.Setting); err != nil {
			return err
		}
		if step.Value == nil {
			return fmt.Errorf("value is required")
		}
		return nil
	case ActionCapture:
		return requireField("label", step.Label)
	case ActionOpenOutline, ActionCloseQuickOpen, ActionShowProblems, ActionHideProblems:
		return nil
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

func requireField(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}
