package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// SeedUserSettings merges settings into <userDataDir>/User/settings.json,
// creating it when missing. Keys are whole setting ids such as
// "css.lint.emptyRules", never nested paths.
func SeedUserSettings(userDataDir string, settings map[string]any) error {
	dir := filepath.Join(userDataDir, "User")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	path := filepath.Join(dir, "settings.json")

	doc := []byte("{}")
	if existing, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(existing))) > 0 {
		doc = jsonc.ToJSON(existing)
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var err error
		doc, err = sjson.SetBytes(doc, settingPath(key), settings[key])
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	if err := os.WriteFile(path, pretty.Pretty(doc), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// settingPath escapes a dotted setting id into one sjson path segment
func settingPath(key string) string {
	return strings.NewReplacer(".", `\.`, ":", `\:`, "*", `\*`, "?", `\?`).Replace(key)
}
