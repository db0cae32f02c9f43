package diracci

import (
	"fmt"
	"os"

	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/trigger"
	"github.com/spf13/cobra"
)

var shouldRunExitCode bool

var shouldRunCmd = &cobra.Command{
	Use:   "should-run",
	Short: "Decide whether the workflow event should run the integration tests",
	Long: `should-run reads GITHUB_EVENT_NAME and GITHUB_EVENT_PATH. Pushes to any
repository other than the canonical one are skipped; pull requests and other
events run. The decision is printed and, inside a workflow, appended to
GITHUB_OUTPUT as run=true|false.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := trigger.FromEnv(cfg.Repository)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run=%t (%s)\n", d.Run, d.Reason)

		if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open GITHUB_OUTPUT: %w", err)
			}
			defer f.Close()
			if _, err := fmt.Fprintf(f, "run=%t\n", d.Run); err != nil {
				return fmt.Errorf("write GITHUB_OUTPUT: %w", err)
			}
		}

		if shouldRunExitCode && !d.Run {
			return &failure.ExitStatusError{Code: failure.ExitFailure}
		}
		return nil
	},
}

func init() {
	shouldRunCmd.Flags().BoolVar(&shouldRunExitCode, "exit-code", false, "exit with status 1 when the tests should be skipped")
}
