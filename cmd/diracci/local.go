package diracci

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"sync"
	"syscall"

	"github.com/DIRACGrid/diracci/internal/engine"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/pipeline"
	"github.com/DIRACGrid/diracci/internal/runit"
	"github.com/DIRACGrid/diracci/internal/topology"
	"github.com/DIRACGrid/diracci/internal/wrapper"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const testScript = "TestCode/DIRAC/tests/CI/run_tests.sh"

var (
	green = text.Colors{text.FgGreen}
	red   = text.Colors{text.FgRed}
)

func roleWrapper(role string, workdir string, interactive bool) *wrapper.Wrapper {
	return wrapper.ForRole(role, cfg.Install.User, cfg.Install.Root, workdir, interactive)
}

// requireRunning fails when the role container is not up.
func requireRunning(ctx context.Context, eng *engine.Engine, role string) error {
	running, err := eng.Running(ctx, role)
	if err != nil {
		return err
	}
	if !running {
		return failure.NewSetupError(role, "container is not running, start it with diracci create", nil)
	}
	return nil
}

var (
	createSel           selection
	createInstallServer bool
	createInstallClient bool
)

var createCmd = &cobra.Command{
	Use:   "create [index|name]",
	Short: "Start a local instance of the integration tests",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMatrix()
		if err != nil {
			return err
		}
		c, err := createSel.combination(m, args)
		if err != nil {
			return err
		}
		env, err := m.Resolve(c)
		if err != nil {
			return err
		}
		desc, err := loadDescriptor(cmd.Context(), env)
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

		fmt.Fprintln(cmd.ErrOrStderr(), green.Sprint("Preparing environment"))
		if err := startTestingHost(cmd.Context(), eng, hostSpec(), 0); err != nil {
			return err
		}

		phases := []pipeline.Phase{pipeline.PhasePrepare}
		if createInstallServer {
			phases = append(phases, pipeline.PhaseInstallServer)
		}
		if createInstallClient {
			phases = append(phases, pipeline.PhaseInstallClient)
		}

		gate := &topology.Gate{Runtime: eng}
		runner := &pipeline.Runner{
			Wrapper:  w,
			Exec:     eng,
			Commands: cfg.Phases,
			Phases:   phases,
			Setup: func(ctx context.Context) error {
				return gate.Up(ctx, desc)
			},
			Timeout: cfg.JobTimeout,
			Stdout:  cmd.OutOrStdout(),
			Stderr:  cmd.ErrOrStderr(),
		}
		report, err := runner.Run(cmd.Context())
		if report != nil {
			report.Render(cmd.OutOrStdout(), c.Label())
		}
		return err
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Destroy a local instance of the integration tests",
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

func roleTestCmd(role, title string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-" + role,
		Short: fmt.Sprintf("Run the %s integration tests", role),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := requireRunning(cmd.Context(), eng, role); err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			fmt.Fprintln(stderr, green.Sprintf("Running %s tests", role))

			w := roleWrapper(role, "", false)
			code, err := w.Run(cmd.Context(), eng, []string{"bash", testScript}, cmd.OutOrStdout(), stderr)
			if err != nil {
				return err
			}

			color := green
			if code != 0 {
				color = red
			}
			fmt.Fprintln(stderr, color.Sprintf("%s tests finished with %d", title, code))
			if code != 0 {
				return &failure.ExitStatusError{Code: code}
			}
			return nil
		},
	}
}

var (
	testServerCmd = roleTestCmd(wrapper.ServerContainer, "Server")
	testClientCmd = roleTestCmd(wrapper.ClientContainer, "Client")
)

func roleShellCmd(role, installDir string) *cobra.Command {
	return &cobra.Command{
		Use:   "exec-" + role,
		Short: fmt.Sprintf("Start an interactive session in the %s container", role),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			argv := roleWrapper(role, "", true).Args("bash", "-c",
				fmt.Sprintf(". $HOME/CONFIG && . $HOME/%s/bashrc && exec bash", installDir))

			docker, err := exec.LookPath(argv[0])
			if err != nil {
				return fmt.Errorf("interactive sessions need the docker CLI: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), green.Sprintf("Opening prompt inside %s container", role))
			return syscall.Exec(docker, argv, os.Environ())
		},
	}
}

var (
	execServerCmd = roleShellCmd(wrapper.ServerContainer, "ServerInstallDIR")
	execClientCmd = roleShellCmd(wrapper.ClientContainer, "ClientInstallDIR")
)

// listServices returns the runit services of the server that wrote a log.
func listServices(ctx context.Context, eng *engine.Engine) ([]string, error) {
	if err := requireRunning(ctx, eng, wrapper.ServerContainer); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	w := roleWrapper(wrapper.ServerContainer, "", false)
	code, err := w.Run(ctx, eng, []string{"bash", "-c", runit.ListScript}, &stdout, &stderr)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("listing services failed with %d: %s", code, bytes.TrimSpace(stderr.Bytes()))
	}
	return runit.ParseServices(stdout.String()), nil
}

var listServicesCmd = &cobra.Command{
	Use:   "list-services",
	Short: "List the services which have been running",
	Long: `List the services which have been running.

Only the services for which log/current exists are shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		services, err := listServices(cmd.Context(), eng)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Known services:")
		for _, s := range services {
			fmt.Fprintf(cmd.ErrOrStderr(), "* %s\n", s)
		}
		return nil
	},
}

var runsvctrlCmd = &cobra.Command{
	Use:   "runsvctrl <command> <pattern>",
	Short: "Execute runsvctrl inside the server container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, pattern := args[0], args[1]

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		services, err := listServices(cmd.Context(), eng)
		if err != nil {
			return err
		}
		matched, err := runit.Filter(services, pattern)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			return fmt.Errorf("no services match %q", pattern)
		}

		root := cfg.Install.Root
		if root == "" {
			root = wrapper.DefaultInstallRoot
		}
		w := roleWrapper(wrapper.ServerContainer, path.Join(root, runit.Dir), false)
		code, err := w.Run(cmd.Context(), eng, runit.RunsvctrlArgs(command, matched), cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if code != 0 {
			return &failure.ExitStatusError{Code: code}
		}
		return nil
	},
}

var (
	logsPattern string
	logsLines   int
	logsFollow  bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show DIRAC's logs from the server container",
	Long: `For services matching --pattern show the most recent --lines from the
logs. With --follow the logs are streamed until interrupted. Lines are
coloured by their log level.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		services, err := listServices(cmd.Context(), eng)
		if err != nil {
			return err
		}
		matched, err := runit.Filter(services, logsPattern)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			logging.Warn("Logs", "No services match %q", logsPattern)
			return nil
		}

		var mu sync.Mutex
		w := roleWrapper(wrapper.ServerContainer, "", false)
		g, ctx := errgroup.WithContext(cmd.Context())
		for _, service := range matched {
			g.Go(func() error {
				out := runit.NewLineWriter(cmd.ErrOrStderr(), &mu)
				defer out.Flush()
				code, err := w.Run(ctx, eng, runit.TailArgs(service, logsLines, logsFollow), out, cmd.ErrOrStderr())
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("%s: %w", service, err)
				}
				if code != 0 {
					logging.Warn("Logs", "tail of %s exited with %d", service, code)
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	createSel.addFlags(createCmd.Flags())
	createCmd.Flags().BoolVar(&createInstallServer, "install-server", true, "install the DIRAC server")
	createCmd.Flags().BoolVar(&createInstallClient, "install-client", true, "install the DIRAC client")

	logsCmd.Flags().StringVar(&logsPattern, "pattern", "*", "services to show, as a shell pattern")
	logsCmd.Flags().IntVar(&logsLines, "lines", 10, "number of lines to show from each log")
	logsCmd.Flags().BoolVar(&logsFollow, "follow", true, "keep streaming the logs")
}
