package applog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const sampleLog = `=== /usr/bin/code [--user-data-dir /tmp/a] ===
[main 2025-10-17T09:12:01.123Z] [error] stale error from the first launch
=== /usr/bin/code [--user-data-dir /tmp/b] ===
[main 2025-10-17T09:13:00.000Z] [info] update#setState idle
[4021:1017/091301.123456:ERROR:gpu_init.cc(523)] Passthrough is not supported

{"level":"warn","msg":"extension host slow"}
plain text from a wrapper script
`

func writeLog(t *testing.T, contents string) *Service {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(contents), 0644))
	return NewService(dir, arbor.NewLogger())
}

func TestLastLaunch_OnlyLatestLaunch(t *testing.T) {
	s := writeLog(t, sampleLog)

	entries, err := s.LastLaunch(0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "update#setState idle", entries[0].Message)
	for _, e := range entries {
		assert.NotContains(t, e.Raw, "stale error")
	}
}

func TestLastLaunch_FilterAndLimit(t *testing.T) {
	s := writeLog(t, sampleLog)

	entries, err := s.LastLaunch(0, "error", "warn")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ERR", entries[0].Level)
	assert.Equal(t, "Passthrough is not supported", entries[0].Message)
	assert.Equal(t, "WRN", entries[1].Level)
	assert.Equal(t, "extension host slow", entries[1].Message)

	entries, err = s.LastLaunch(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "plain text from a wrapper script", entries[0].Message)
}

func TestLastLaunch_MissingFile(t *testing.T) {
	s := NewService(t.TempDir(), arbor.NewLogger())
	_, err := s.LastLaunch(10)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		level string
		msg   string
	}{
		{`{"level":"error","message":"boom"}`, "ERR", "boom"},
		{`{"message":"no level"}`, "INF", "no level"},
		{`[main 2025-10-17T09:13:00.000Z] [warning] careful`, "WRN", "careful"},
		{`[1:1017/091301.1:VERBOSE1:x.cc(1)] chatter`, "DBG", "chatter"},
		{`[1:1017/091301.1:FATAL:x.cc(1)] dead`, "ERR", "dead"},
		{`["an", "array"]`, "INF", `["an", "array"]`},
		{`hello`, "INF", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			e := ParseLine(tt.line)
			assert.Equal(t, tt.level, e.Level)
			assert.Equal(t, tt.msg, e.Message)
			assert.Equal(t, tt.line, e.Raw)
		})
	}
}
