// Package applog reads the output captured from the application under test.
// The launcher appends every launch to one file, each preceded by a
// "=== <binary> <args> ===" header line.
package applog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"
)

// FileName is the log file the exec launcher writes into its log directory
const FileName = "app.log"

const launchHeader = "=== "

var (
	// [main 2025-10-17T09:12:01.123Z] [error] message
	electronLine = regexp.MustCompile(`^\[[^\]]+\] \[(trace|debug|info|warning|warn|error|critical)\] ?(.*)$`)
	// [1234:1017/091201.123456:ERROR:file.cc(42)] message
	chromiumLine = regexp.MustCompile(`^\[\d+:\d+/[\d.]+:(VERBOSE\d*|INFO|WARNING|ERROR|FATAL):[^\]]*\] ?(.*)$`)
)

type Service struct {
	dir    string
	logger arbor.ILogger
}

func NewService(dir string, logger arbor.ILogger) *Service {
	return &Service{
		dir:    dir,
		logger: logger,
	}
}

// Path returns the log file location
func (s *Service) Path() string {
	return filepath.Join(s.dir, FileName)
}

// LastLaunch returns the entries written since the most recent launch header.
// limit keeps the last N entries (0 = all); levels filters by level name and
// accepts both long and 3-letter forms.
func (s *Service) LastLaunch(limit int, levels ...string) ([]Entry, error) {
	file, err := os.Open(s.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to open application log: %w", err)
	}
	defer file.Close()

	filter := make(map[string]bool)
	for _, l := range levels {
		filter[shortLevel(l)] = true
	}

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, launchHeader) {
			entries = entries[:0]
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := ParseLine(line)
		if len(filter) > 0 && !filter[entry.Level] {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading application log: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	s.logger.Trace().
		Str("path", s.Path()).
		Int("entries", len(entries)).
		Msg("Read application log")

	return entries, nil
}

// ParseLine classifies one output line. JSON lines use their "level" and
// "message" (or "msg") fields; Electron and Chromium prefixes are recognized;
// anything else is INF.
func ParseLine(line string) Entry {
	if gjson.Valid(line) {
		parsed := gjson.Parse(line)
		if parsed.IsObject() {
			msg := parsed.Get("message").String()
			if msg == "" {
				msg = parsed.Get("msg").String()
			}
			level := parsed.Get("level").String()
			if level == "" {
				level = "info"
			}
			return Entry{Level: shortLevel(level), Message: msg, Raw: line}
		}
	}

	if m := electronLine.FindStringSubmatch(line); m != nil {
		return Entry{Level: shortLevel(m[1]), Message: m[2], Raw: line}
	}
	if m := chromiumLine.FindStringSubmatch(line); m != nil {
		return Entry{Level: shortLevel(m[1]), Message: m[2], Raw: line}
	}

	return Entry{Level: "INF", Message: line, Raw: line}
}

// shortLevel converts level names to 3-letter codes
func shortLevel(level string) string {
	l := strings.ToUpper(level)
	switch {
	case l == "INFO" || l == "INF":
		return "INF"
	case l == "WARN" || l == "WARNING" || l == "WRN":
		return "WRN"
	case l == "ERROR" || l == "ERR" || l == "FATAL" || l == "CRITICAL":
		return "ERR"
	case l == "DEBUG" || l == "DBG" || l == "TRACE" || strings.HasPrefix(l, "VERBOSE"):
		return "DBG"
	default:
		return "INF"
	}
}
