package diracci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DIRACGrid/diracci/internal/config"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string

	v   = viper.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "diracci",
	Short: "Run the DIRAC integration tests across a configuration matrix",
	Long: `diracci stands up the DIRAC integration test environment and runs the tests:
1. Matrix - Resolve a combination of HOST_OS, MYSQL_VER, ES_VER, ... to variables
2. Topology - Start the backing services, gated on their health checks
3. Wrapper - Forward the resolved variables into the testing host
4. Phases - prepare, install, test, collect logs and check errors

A local DIRAC setup can be created and tested by running:

  diracci create
  diracci test-server
  diracci test-client`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command and exits with the status of its error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var status *failure.ExitStatusError
		if !errors.As(err, &status) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(failure.ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .diracci.yaml in the working or home directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cobra.CheckErr(v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))

	rootCmd.AddCommand(matrixCmd, wrapperCmd, topologyCmd, runCmd, shouldRunCmd, envDocsCmd)
	rootCmd.AddCommand(createCmd, destroyCmd, testServerCmd, testClientCmd,
		execServerCmd, execClientCmd, listServicesCmd, runsvctrlCmd, logsCmd)
}

func initConfig(cmd *cobra.Command) error {
	config.SetDefaults(v)
	if err := config.BindEnv(v); err != nil {
		return fmt.Errorf("failed to bind environment: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".diracci")
	}

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(readErr, &notFound) {
			return fmt.Errorf("failed to read config: %w", readErr)
		}
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(level, cmd.ErrOrStderr())

	if readErr == nil {
		logging.Debug("Config", "Using config file: %s", v.ConfigFileUsed())
	}
	return nil
}
