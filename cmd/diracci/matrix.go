package diracci

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DIRACGrid/diracci/internal/export"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/pipeline"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Inspect and run the configuration matrix",
}

var matrixListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the declared combinations with every axis resolved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMatrix()
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())

		header := table.Row{"#", "Name"}
		for _, axis := range m.Axes {
			header = append(header, axis.EnvName())
		}
		t.AppendHeader(header)

		for i, c := range m.Include {
			row := table.Row{i, c.Label()}
			for _, axis := range m.Axes {
				val := m.Value(axis, c)
				cell := val.String()
				if _, explicit := c.Values[axis.Name]; !explicit {
					cell = text.Colors{text.FgHiBlack}.Sprint(cell)
				}
				row = append(row, cell)
			}
			t.AppendRow(row)
		}
		t.Render()

		for _, axis := range m.Axes {
			if values := m.Values(axis.Name); len(values) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", axis.Name, strings.Join(values, ", "))
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fail-fast: %t, timeout: %s\n", m.FailFast, m.Timeout)
		return nil
	},
}

var (
	resolveSel    selection
	resolveFormat string
)

var matrixResolveCmd = &cobra.Command{
	Use:   "resolve [index|name]",
	Short: "Print the variables a combination resolves to",
	Long: `Resolve applies the defaults to every axis the combination leaves unset and
prints the variables forwarded into the testing host. Optional axes resolving
to the default sentinel are left out.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.For(resolveFormat)
		if err != nil {
			return err
		}
		m, err := loadMatrix()
		if err != nil {
			return err
		}
		c, err := resolveSel.combination(m, args)
		if err != nil {
			return err
		}
		env, err := m.Resolve(c)
		if err != nil {
			return err
		}
		out, err := exporter.Export(env)
		if err != nil {
			return fmt.Errorf("%s export failed: %w", exporter.Name(), err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var matrixRunKeep bool

var matrixRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every combination one after another",
	Long: `Run executes the full phase sequence for each declared combination. The
combinations share the engine and fixed container names, so they run
sequentially; a failed combination never stops the remaining ones.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMatrix()
		if err != nil {
			return err
		}
		if len(m.Include) == 0 {
			return fmt.Errorf("the matrix declares no combinations")
		}
		if m.FailFast {
			logging.Warn("Matrix", "fail-fast is set but ignored: every combination runs")
		}

		summary := table.NewWriter()
		summary.SetOutputMirror(cmd.OutOrStdout())
		summary.SetTitle("Matrix")
		summary.AppendHeader(table.Row{"#", "Combination", "Result", "Exit"})

		var errs []error
		for i, c := range m.Include {
			logging.Info("Matrix", "Combination %d/%d: %s", i+1, len(m.Include), c.Label())

			report, err := runCombination(cmd.Context(), m, c, matrixRunKeep && i == len(m.Include)-1, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if report != nil {
				report.Render(cmd.OutOrStdout(), c.Label())
			}

			result := text.Colors{text.FgGreen}.Sprint(pipeline.StatusPassed)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.Label(), err))
				result = text.Colors{text.FgRed}.Sprint(pipeline.StatusFailed)
			}
			summary.AppendRow(table.Row{i, c.Label(), result, failure.ExitCode(err)})

			if cmd.Context().Err() != nil {
				break
			}
		}
		summary.Render()

		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		return nil
	},
}

func init() {
	resolveSel.addFlags(matrixResolveCmd.Flags())
	matrixResolveCmd.Flags().StringVarP(&resolveFormat, "output", "o", "shell", fmt.Sprintf("output format %v", export.Formats()))
	matrixRunCmd.Flags().BoolVar(&matrixRunKeep, "keep", false, "leave the last combination's containers running")

	matrixCmd.AddCommand(matrixListCmd, matrixResolveCmd, matrixRunCmd)
}
