package report

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/smoke/internal/models"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       string          `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []junitProperty `xml:"properties>property,omitempty"`
	Cases      []junitCase     `xml:"testcase"`
	SystemErr  string          `xml:"system-err,omitempty"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Body    string `xml:",chardata"`
}

// JUnit renders reports as JUnit XML. Infrastructure failures are <error>,
// everything else that failed is <failure>. Artifact files are listed in
// system-out as [[ATTACHMENT|path]] lines, which CI plugins pick up.
func JUnit(reports ...*models.SuiteReport) ([]byte, error) {
	root := junitSuites{Name: "smoke"}
	var total time.Duration

	for _, r := range reports {
		suite := junitSuite{
			Name:      r.Suite,
			Time:      seconds(r.Duration),
			Timestamp: r.StartedAt.UTC().Format("2006-01-02T15:04:05"),
			Properties: []junitProperty{
				{Name: "run_id", Value: r.RunID},
				{Name: "aborted", Value: fmt.Sprintf("%t", r.Aborted)},
			},
			SystemErr: r.SuiteError,
		}

		for _, s := range r.Scenarios {
			tc := junitCase{
				Name:      s.Name,
				Classname: r.Suite,
				Time:      seconds(s.Duration),
				SystemOut: attachments(s.Artifacts),
			}
			switch {
			case s.Outcome == models.OutcomeSkip:
				tc.Skipped = &junitMessage{Message: s.Error}
				suite.Skipped++
			case s.Outcome == models.OutcomeFail && s.Tier == models.TierInfrastructure:
				tc.Error = &junitMessage{Message: firstLine(s.Error), Type: string(s.Tier), Body: s.Error}
				suite.Errors++
			case s.Outcome == models.OutcomeFail:
				tc.Failure = &junitMessage{Message: firstLine(s.Error), Type: string(s.Tier), Body: s.Error}
				suite.Failures++
			}
			suite.Cases = append(suite.Cases, tc)
		}
		suite.Tests = len(suite.Cases)

		root.Suites = append(root.Suites, suite)
		root.Tests += suite.Tests
		root.Failures += suite.Failures
		root.Errors += suite.Errors
		root.Skipped += suite.Skipped
		total += r.Duration
	}
	root.Time = seconds(total)

	out, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal junit report: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func attachments(artifacts []models.Artifact) string {
	var b strings.Builder
	for _, a := range artifacts {
		for _, f := range a.Files {
			fmt.Fprintf(&b, "[[ATTACHMENT|%s]]\n", f.Path)
		}
	}
	return b.String()
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
