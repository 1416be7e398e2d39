package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/smoke/internal/services/scenario"
)

var validateCmd = &cobra.Command{
	Use:   "validate <suite.yaml ...>",
	Short: "Check scenario files without launching the application",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			f, err := scenario.Load(path)
			if err == nil {
				_, err = scenario.Compile(f)
			}
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d scenarios)\n", path, len(f.Scenarios))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files invalid", failed, len(args))
		}
		return nil
	},
}
