package diracci

import (
	"strings"

	"github.com/DIRACGrid/diracci/internal/sutenv"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var envDocsCmd = &cobra.Command{
	Use:   "env-docs",
	Short: "Document the variables the DIRAC installation reads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Variable", "Values", "Per role", "Effect"})
		for _, v := range sutenv.All() {
			values := strings.Join(v.Values, ", ")
			if values == "" {
				values = "any"
			}
			perRole := ""
			if v.PerRole {
				perRole = "yes"
			}
			t.AppendRow(table.Row{v.Name, values, perRole, v.Effect})
		}
		t.Render()
		return nil
	},
}
