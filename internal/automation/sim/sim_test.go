package sim

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/models"
)

const styleCSS = "body {\n  padding: 50px;\n}\n\na {\n  color: #00B7FF;\n}\n"

func fastOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte(styleCSS), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "views"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views", "index.html"), []byte("<p>hi</p>"), 0644))
	return Options{
		Workspace:    dir,
		StartupDelay: 10 * time.Millisecond,
		RenderDelay:  10 * time.Millisecond,
		LintDelay:    20 * time.Millisecond,
	}
}

func startDriver(t *testing.T, opts Options) (*Driver, *Process) {
	t.Helper()
	launcher := NewLauncher(opts, arbor.NewLogger())
	proc, err := launcher.Launch(context.Background(), models.LaunchSpec{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Kill() })

	drv, err := Connector{}.Connect(context.Background(), proc)
	require.NoError(t, err)
	d := drv.(*Driver)

	eventually(t, d, ".monaco-workbench", 1)
	return d, launcher.Last()
}

func count(t *testing.T, d *Driver, sel models.Selector) int {
	t.Helper()
	handles, err := d.QueryAll(context.Background(), sel)
	require.NoError(t, err)
	return len(handles)
}

func eventually(t *testing.T, d *Driver, sel models.Selector, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return count(t, d, sel) == n
	}, 2*time.Second, 10*time.Millisecond, "waiting for %d x %s", n, sel)
}

func press(t *testing.T, d *Driver, chord string) {
	t.Helper()
	require.NoError(t, d.KeyPress(context.Background(), models.MustParseKeyChord(chord)))
}

func openFile(t *testing.T, d *Driver, name string) {
	t.Helper()
	press(t, d, "Ctrl+P")
	require.NoError(t, d.TypeText(context.Background(), name))
	eventually(t, d, models.Selector(`.quick-open-tree .monaco-tree-row[aria-label="`+name+`"]`), 1)
	press(t, d, "Enter")
	eventually(t, d, models.Selector(`.monaco-editor.focused[data-uri="`+name+`"]`), 1)
}

func TestScanCSS(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		selectors []string
		empty     []bool
	}{
		{"two rules", styleCSS, []string{"body", "a"}, []bool{false, false}},
		{"empty rule first", ".foo{}" + styleCSS, []string{".foo", "body", "a"}, []bool{true, false, false}},
		{"whitespace body", "a {   \n }", []string{"a"}, []bool{true}},
		{"comment only body", "a { /* nothing */ }", []string{"a"}, []bool{true}},
		{"comment before rule", "/* header { } */\nh1 { margin: 0 }", []string{"h1"}, []bool{false}},
		{"nested media", "@media print { a { color: red } }", []string{"@media print"}, []bool{false}},
		{"brace in string", `a::after { content: "}" }`, []string{"a::after"}, []bool{false}},
		{"import statement", `@import "x.css"; p {}`, []string{"p"}, []bool{true}},
		{"unterminated", "a { color: red", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := scanCSS([]rune(tt.input))
			var selectors []string
			var empty []bool
			for _, r := range rules {
				selectors = append(selectors, r.selector)
				empty = append(empty, r.empty)
			}
			assert.Equal(t, tt.selectors, selectors)
			assert.Equal(t, tt.empty, empty)
		})
	}
}

func TestUserSettings(t *testing.T) {
	s := newUserSettings()
	assert.Equal(t, "warning", s.get("css.lint.emptyRules"))

	require.NoError(t, s.apply("{\"css.lint.emptyRules\": \"error\",\n // comment\n}"))
	assert.Equal(t, "error", s.get("css.lint.emptyRules"))
	assert.Equal(t, "14", s.get("editor.fontSize"))

	assert.Error(t, s.apply(`{"a": `))
	assert.Error(t, s.apply(`[1, 2]`))
	assert.Equal(t, "error", s.get("css.lint.emptyRules"), "invalid input keeps previous settings")
}

func TestUserSettings_LoadFromUserDataDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "User"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "User", "settings.json"), []byte(`{"css.lint.emptyRules": "ignore"}`), 0644))

	opts := fastOptions(t)
	opts.UserDataDir = dir
	d, _ := startDriver(t, opts)

	assert.Equal(t, "ignore", d.App().Setting("css.lint.emptyRules"))
}

func TestApp_StartsOnSplash(t *testing.T) {
	opts := fastOptions(t)
	opts.NeverReady = true
	launcher := NewLauncher(opts, arbor.NewLogger())
	proc, err := launcher.Launch(context.Background(), models.LaunchSpec{})
	require.NoError(t, err)
	defer proc.Kill()

	drv, err := Connector{}.Connect(context.Background(), proc)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	handles, err := drv.QueryAll(context.Background(), ".monaco-workbench")
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestQuickOpen_OpensFile(t *testing.T) {
	d, _ := startDriver(t, fastOptions(t))

	openFile(t, d, "style.css")

	assert.Equal(t, 0, count(t, d, ".quick-open-widget"))
	assert.Equal(t, 1, count(t, d, `.tabs-container .tab.active[title="style.css"]`))
	text, ok := d.App().Buffer("style.css")
	require.True(t, ok)
	assert.Equal(t, styleCSS, text)
}

func TestQuickOpen_RowsOrderedByMatch(t *testing.T) {
	d, _ := startDriver(t, fastOptions(t))

	press(t, d, "Ctrl+P")
	eventually(t, d, ".quick-open-tree .monaco-tree-row", 2)

	rows, err := d.QueryAll(context.Background(), ".quick-open-tree .monaco-tree-row")
	require.NoError(t, err)
	assert.Equal(t, "style.css", rows[0].Attributes["aria-label"])
	assert.Equal(t, "index.html", rows[1].Attributes["aria-label"])
	assert.True(t, rows[0].HasClass("focused"))

	require.NoError(t, d.TypeText(context.Background(), "ind"))
	eventually(t, d, ".quick-open-tree .monaco-tree-row", 1)

	press(t, d, "Escape")
	eventually(t, d, ".quick-open-widget", 0)
}

func TestQuickOutline_ListsTopLevelRules(t *testing.T) {
	d, _ := startDriver(t, fastOptions(t))
	openFile(t, d, "style.css")

	press(t, d, "Ctrl+Shift+O")
	eventually(t, d, ".quick-open-widget .quick-open-tree .monaco-tree-row", 2)

	rows, err := d.QueryAll(context.Background(), ".quick-open-tree .monaco-tree-row .label-name")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "body", rows[0].Text)
	assert.Equal(t, "a", rows[1].Text)
}

func TestLint_EmptyRuleSeverityFollowsSetting(t *testing.T) {
	d, _ := startDriver(t, fastOptions(t))
	openFile(t, d, "style.css")

	require.NoError(t, d.TypeText(context.Background(), ".foo{}"))
	eventually(t, d, ".view-overlays .cdr.squiggly-warning", 1)

	press(t, d, "Ctrl+Shift+M")
	eventually(t, d, `div[aria-label="Problems grouped by files"] .icon.warning`, 1)
	press(t, d, "Ctrl+Shift+M")
	eventually(t, d, ".panel.markers-panel", 0)

	// Settings flow: search box, down into the user editor, past the brace
	press(t, d, "Ctrl+,")
	eventually(t, d, ".settings-search-input input.focused", 1)
	press(t, d, "ArrowDown")
	eventually(t, d, ".editable-preferences-editor-container .monaco-editor.focused", 1)
	press(t, d, "ArrowRight")
	require.NoError(t, d.TypeText(context.Background(), `"css.lint.emptyRules": "error",`))
	press(t, d, "Ctrl+S")
	eventually(t, d, ".tabs-container .tab.dirty", 1) // style.css still has unsaved edits
	assert.Equal(t, "error", d.App().Setting("css.lint.emptyRules"))

	openFile(t, d, "style.css")
	eventually(t, d, ".view-overlays .cdr.squiggly-error", 1)
	eventually(t, d, ".view-overlays .cdr.squiggly-warning", 0)
}

func TestClick_StaleHandle(t *testing.T) {
	d, _ := startDriver(t, fastOptions(t))

	press(t, d, "Ctrl+P")
	eventually(t, d, ".quick-open-tree .monaco-tree-row", 2)
	rows, err := d.QueryAll(context.Background(), ".quick-open-tree .monaco-tree-row")
	require.NoError(t, err)

	// Typing re-renders the list, detaching the old rows
	require.NoError(t, d.TypeText(context.Background(), "s"))
	err = d.Click(context.Background(), rows[0])
	assert.ErrorIs(t, err, models.ErrStaleElement)

	// "s" matches style.css by prefix and views/index.html by path
	eventually(t, d, ".quick-open-tree .monaco-tree-row", 2)
	fresh, err := d.QueryAll(context.Background(), ".quick-open-tree .monaco-tree-row")
	require.NoError(t, err)
	require.NoError(t, d.Click(context.Background(), fresh[0]))
	eventually(t, d, `.monaco-editor.focused[data-uri="style.css"]`, 1)
}

func TestQueryAll_StableIdentityAndOrder(t *testing.T) {
	d, _ := startDriver(t, fastOptions(t))
	openFile(t, d, "style.css")

	first, err := d.QueryAll(context.Background(), ".view-line")
	require.NoError(t, err)
	second, err := d.QueryAll(context.Background(), ".view-line")
	require.NoError(t, err)

	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, i, first[i].Index)
		assert.Equal(t, first[i].NodeID, second[i].NodeID)
		assert.Equal(t, first[i].Attributes["data-line"], second[i].Attributes["data-line"])
	}

	_, err = d.QueryAll(context.Background(), "div[")
	assert.ErrorIs(t, err, models.ErrInvalidSelector)
}

func TestScreenshotAndSnapshot(t *testing.T) {
	d, _ := startDriver(t, fastOptions(t))
	openFile(t, d, "style.css")

	shot, err := d.Screenshot(context.Background())
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(shot))
	require.NoError(t, err)
	assert.Equal(t, shotWidth, img.Bounds().Dx())

	dom, err := d.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, dom, "<!DOCTYPE html>")
	assert.Contains(t, dom, "monaco-workbench")
	assert.Contains(t, dom, "padding: 50px;")
}

func TestProcess_Lifecycle(t *testing.T) {
	t.Run("terminate exits cleanly", func(t *testing.T) {
		_, p := startDriver(t, fastOptions(t))
		require.NoError(t, p.Terminate())
		assert.NoError(t, p.Wait())
		assert.True(t, p.App().Closed())
	})

	t.Run("ignored terminate needs kill", func(t *testing.T) {
		launcher := NewLauncher(fastOptions(t), arbor.NewLogger())
		launcher.IgnoreTerminate = true
		proc, err := launcher.Launch(context.Background(), models.LaunchSpec{})
		require.NoError(t, err)
		p := launcher.Last()

		require.NoError(t, proc.Terminate())
		time.Sleep(20 * time.Millisecond)
		assert.False(t, p.Exited())

		require.NoError(t, proc.Kill())
		assert.Error(t, proc.Wait())
	})

	t.Run("shutdown through driver", func(t *testing.T) {
		d, p := startDriver(t, fastOptions(t))
		require.NoError(t, d.Shutdown(context.Background()))
		assert.NoError(t, p.Wait())

		_, err := d.QueryAll(context.Background(), "body")
		assert.ErrorIs(t, err, errTargetClosed)
	})

	t.Run("crash", func(t *testing.T) {
		_, p := startDriver(t, fastOptions(t))
		p.Crash()
		assert.Error(t, p.Wait())

		_, err := Connector{}.Connect(context.Background(), p)
		assert.Error(t, err)
	})
}
