package scenario

// SuiteFile is one YAML suite: a name and its ordered scenarios
type SuiteFile struct {
	Name        string     `yaml:"name" validate:"required"`
	Description string     `yaml:"description,omitempty"`
	Scenarios   []Scenario `yaml:"scenarios" validate:"required,min=1,dive"`

	path string
}

// Path returns the file the suite was loaded from
func (s *SuiteFile) Path() string {
	return s.path
}

// Scenario is one independent test case made of steps
type Scenario struct {
	Name  string `yaml:"name" validate:"required"`
	Skip  string `yaml:"skip,omitempty"` // Reason; non-empty skips the scenario
	Steps []Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is a single action. Which fields apply depends on Action.
type Step struct {
	Action   string `yaml:"action" validate:"required"`
	File     string `yaml:"file,omitempty"`     // open_file
	Text     string `yaml:"text,omitempty"`     // type
	Key      string `yaml:"key,omitempty"`      // key, e.g. "Ctrl+Shift+O"
	Selector string `yaml:"selector,omitempty"` // click, wait_for, wait_absent, expect_count
	Count    *int   `yaml:"count,omitempty" validate:"omitempty,min=0"`
	Severity string `yaml:"severity,omitempty"` // expect_problem
	InPanel  bool   `yaml:"in_panel,omitempty"` // expect_problem also checks the problems view
	Setting  string `yaml:"setting,omitempty"`  // set_setting
	Value    any    `yaml:"value,omitempty"`    // set_setting
	Label    string `yaml:"label,omitempty"`    // capture
	Timeout  string `yaml:"timeout,omitempty" validate:"duration"`
}

// Step actions
const (
	ActionOpenFile           = "open_file"
	ActionOpenOutline        = "open_outline"
	ActionCloseQuickOpen     = "close_quick_open"
	ActionType               = "type"
	ActionKey                = "key"
	ActionClick              = "click"
	ActionWaitFor            = "wait_for"
	ActionWaitAbsent         = "wait_absent"
	ActionExpectCount        = "expect_count"
	ActionExpectOutlineCount = "expect_outline_count"
	ActionExpectProblem      = "expect_problem"
	ActionShowProblems       = "show_problems"
	ActionHideProblems       = "hide_problems"
	ActionSetSetting         = "set_setting"
	ActionCapture            = "capture"
)
