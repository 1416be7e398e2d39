package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestSnapshotToMarkdown(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	html := `<!DOCTYPE html><html><head><style>.a{}</style></head><body>
		<script>window.x = 1</script>
		<h1>Problems</h1>
		<ul><li>Do not use empty rulesets</li></ul>
	</body></html>`

	out, err := svc.SnapshotToMarkdown(html)

	require.NoError(t, err)
	assert.Contains(t, out, "# Problems")
	assert.Contains(t, out, "Do not use empty rulesets")
	assert.NotContains(t, out, "window.x")
	assert.NotContains(t, out, ".a{}")
}

func TestValidateHTML(t *testing.T) {
	assert.Error(t, ValidateHTML(""))
	assert.Error(t, ValidateHTML("   "))
	assert.Error(t, ValidateHTML("plain text"))
	assert.NoError(t, ValidateHTML("<p>x</p>"))

	_, err := NewService(arbor.NewLogger()).SnapshotToMarkdown("no markup")
	assert.Error(t, err)
}
