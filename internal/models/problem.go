package models

import "fmt"

// ProblemSeverity is the severity of a diagnostic surfaced by the editor
type ProblemSeverity string

const (
	SeverityWarning ProblemSeverity = "warning"
	SeverityError   ProblemSeverity = "error"
)

// ParseProblemSeverity accepts "warning" or "error"
func ParseProblemSeverity(s string) (ProblemSeverity, error) {
	switch ProblemSeverity(s) {
	case SeverityWarning, SeverityError:
		return ProblemSeverity(s), nil
	}
	return "", fmt.Errorf("unknown problem severity %q (want warning or error)", s)
}
