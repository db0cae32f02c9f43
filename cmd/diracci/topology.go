package diracci

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/topology"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Inspect and manage the backing services",
}

var topologySel selection

// selectedDescriptor loads the descriptor with the inputs of the selected
// combination.
func selectedDescriptor(ctx context.Context, args []string) (*topology.Descriptor, error) {
	m, err := loadMatrix()
	if err != nil {
		return nil, err
	}
	c, err := topologySel.combination(m, args)
	if err != nil {
		return nil, err
	}
	env, err := m.Resolve(c)
	if err != nil {
		return nil, err
	}
	return loadDescriptor(ctx, env)
}

var topologyShowCmd = &cobra.Command{
	Use:   "show [index|name]",
	Short: "Show the services of the topology",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := selectedDescriptor(cmd.Context(), args)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetTitle(fmt.Sprintf("%s (%s)", d.Project, d.Source))
		t.AppendHeader(table.Row{"Service", "Image", "Container", "Ports", "Health budget", "Environment"})
		for _, name := range d.Names() {
			svc := d.Services[name]

			ports := make([]string, 0, len(svc.Ports))
			for _, p := range svc.Ports {
				if p.Published != "" {
					ports = append(ports, fmt.Sprintf("%s:%d", p.Published, p.Target))
				} else {
					ports = append(ports, fmt.Sprint(p.Target))
				}
			}

			budget := "-"
			if svc.HealthCheck != nil {
				budget = svc.HealthCheck.Budget().String()
			}

			masked := svc.MaskedEnvironment()
			env := make([]string, 0, len(masked))
			for k, val := range masked {
				env = append(env, k+"="+val)
			}
			sort.Strings(env)

			t.AppendRow(table.Row{
				name,
				svc.Image,
				svc.Container(d.Project),
				strings.Join(ports, " "),
				budget,
				strings.Join(env, "\n"),
			})
		}
		t.Render()
		return nil
	},
}

var topologyPlanCmd = &cobra.Command{
	Use:   "plan [index|name]",
	Short: "Show the start order and the conditions each service waits for",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := selectedDescriptor(cmd.Context(), args)
		if err != nil {
			return err
		}
		order, err := d.StartOrder()
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Step", "Service", "Waits for", "Needed by"})
		for i, name := range order {
			var waits []string
			for _, dep := range d.Services[name].DependsOn {
				waits = append(waits, fmt.Sprintf("%s (%s)", dep.Service, dep.Condition))
			}
			t.AppendRow(table.Row{i + 1, name, strings.Join(waits, ", "), strings.Join(d.Dependents(name), ", ")})
		}
		t.Render()
		return nil
	},
}

var topologyUpCmd = &cobra.Command{
	Use:   "up [index|name]",
	Short: "Start the services in dependency order, gated on their health checks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := selectedDescriptor(cmd.Context(), args)
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.JobTimeout)
		defer cancel()

		gate := &topology.Gate{
			Runtime: eng,
			OnReady: func(service string, condition topology.Condition) {
				logging.Info("Topology", "%s: %s", service, condition)
			},
		}
		if err := gate.Up(ctx, d); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return &failure.TimeoutError{Ceiling: cfg.JobTimeout, Phase: "topology up"}
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d services up\n", len(d.Services))
		return nil
	},
}

var topologyDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Remove every container and the network of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()
		return eng.Down(cmd.Context(), cfg.Compose.Project)
	},
}

func init() {
	topologySel.addFlags(topologyCmd.PersistentFlags())
	topologyCmd.AddCommand(topologyShowCmd, topologyPlanCmd, topologyUpCmd, topologyDownCmd)
}
