package sim

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// defaultSettings are the values shown in the read-only default settings pane
var defaultSettings = []struct {
	key   string
	value string
}{
	{"css.lint.emptyRules", "warning"},
	{"css.validate", "true"},
	{"editor.fontSize", "14"},
	{"files.autoSave", "off"},
}

// userSettings holds the saved user settings.json as plain JSON
type userSettings struct {
	json []byte
	text string // Last saved source text, comments and trailing commas kept
}

func newUserSettings() *userSettings {
	return &userSettings{json: []byte("{}"), text: "{\n}"}
}

func (s *userSettings) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return s.apply(string(data))
}

// apply replaces the settings with source, which may contain comments and
// trailing commas. Invalid JSON leaves the previous settings in place.
func (s *userSettings) apply(source string) error {
	converted := jsonc.ToJSON([]byte(source))
	if !gjson.ValidBytes(converted) {
		return fmt.Errorf("settings.json is not valid JSON")
	}
	if !gjson.ParseBytes(converted).IsObject() {
		return fmt.Errorf("settings.json must contain an object")
	}
	s.json = converted
	s.text = source
	return nil
}

// get returns the user value for key, falling back to the default
func (s *userSettings) get(key string) string {
	if r := gjson.GetBytes(s.json, escapePath(key)); r.Exists() {
		return r.String()
	}
	for _, d := range defaultSettings {
		if d.key == key {
			return d.value
		}
	}
	return ""
}

// escapePath makes a dotted settings key a single gjson path segment
func escapePath(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
