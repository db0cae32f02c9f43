package diracci

import (
	"fmt"

	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/spf13/cobra"
)

var (
	wrapperSel    selection
	wrapperOutput string
)

var wrapperCmd = &cobra.Command{
	Use:   "wrapper [index|name]",
	Short: "Generate the script forwarding a combination into the testing host",
	Long: `Wrapper writes a bash script that runs its arguments inside the testing
host with the resolved variables, CI_REGISTRY_IMAGE and the configured
pass-through variables attached. The script runs under set -euo pipefail and
exits with the status of the forwarded command.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMatrix()
		if err != nil {
			return err
		}
		c, err := wrapperSel.combination(m, args)
		if err != nil {
			return err
		}
		env, err := m.Resolve(c)
		if err != nil {
			return err
		}
		w, err := newWrapper(env)
		if err != nil {
			return err
		}

		if wrapperOutput == "" || wrapperOutput == "-" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), w.Script())
			return err
		}
		if err := w.WriteScript(wrapperOutput); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", wrapperOutput)
		return nil
	},
}

var wrapperExecSel selection

var wrapperExecCmd = &cobra.Command{
	Use:   "exec [index|name] -- command [args...]",
	Short: "Run a command in the testing host with a combination's variables",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var selector []string
		if n := cmd.ArgsLenAtDash(); n > 0 {
			selector, args = args[:n], args[n:]
		} else if n < 0 {
			return fmt.Errorf("separate the command with --")
		}
		if len(selector) > 1 {
			return fmt.Errorf("expected at most one combination before --, got %d", len(selector))
		}
		if len(args) == 0 {
			return fmt.Errorf("no command given after --")
		}

		m, err := loadMatrix()
		if err != nil {
			return err
		}
		c, err := wrapperExecSel.combination(m, selector)
		if err != nil {
			return err
		}
		env, err := m.Resolve(c)
		if err != nil {
			return err
		}
		w, err := newWrapper(env)
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		code, err := w.Run(cmd.Context(), eng, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if code != 0 {
			return &failure.ExitStatusError{Code: code}
		}
		return nil
	},
}

func init() {
	wrapperSel.addFlags(wrapperCmd.Flags())
	wrapperCmd.Flags().StringVarP(&wrapperOutput, "output", "o", "", "write the script to this file (default stdout)")

	wrapperExecSel.addFlags(wrapperExecCmd.Flags())
	wrapperCmd.AddCommand(wrapperExecCmd)
}
