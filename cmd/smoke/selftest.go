package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/services/runner"
	"github.com/ternarybob/smoke/internal/services/workbench"
)

// selftestFiles seed the simulator workspace
var selftestFiles = map[string]string{
	workbench.CSSFixture: "body {\n  padding: 50px;\n  font: 14px \"Lucida Grande\", Helvetica, Arial, sans-serif;\n}\n\na {\n  color: #00B7FF;\n}\n",
	"views/index.html":   "<!DOCTYPE html>\n<html>\n<body>\n<h1>Smoke</h1>\n</body>\n</html>\n",
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the built-in CSS suite against the simulated editor",
	Long: `Runs the built-in suite against the in-process simulator. Useful to check
the harness itself, its reports and artifacts, without the real application.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.MkdirTemp("", "smoke-selftest-")
		if err != nil {
			return fmt.Errorf("failed to create selftest workspace: %w", err)
		}
		defer os.RemoveAll(dir)

		for name, contents := range selftestFiles {
			path := filepath.Join(dir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}
		}

		if err := loadConfig(cmd, common.FlagOverrides{Kind: "sim", Workspace: dir}); err != nil {
			return err
		}
		return execute([]runner.Suite{workbench.CSSSuite()})
	},
}
