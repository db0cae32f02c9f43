package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key read from the environment
// (job_timeout -> DIRACCI_JOB_TIMEOUT, host.name -> DIRACCI_HOST_NAME).
const EnvPrefix = "DIRACCI"

// Config is the explicit configuration record handed to every component.
type Config struct {
	// Repository is the canonical owner/name; pushes elsewhere are skipped.
	Repository string        `mapstructure:"repository"`
	Registry   string        `mapstructure:"registry"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	LogDir     string        `mapstructure:"log_dir"`
	LogLevel   string        `mapstructure:"log_level"`

	Matrix  MatrixConfig  `mapstructure:"matrix"`
	Compose ComposeConfig `mapstructure:"compose"`
	Host    HostConfig    `mapstructure:"host"`
	Install InstallConfig `mapstructure:"install"`

	// Phases maps a phase name to the shell command run for it in the host.
	Phases map[string]string `mapstructure:"phases"`
	// PassThrough names extra variables forwarded from the orchestrator's
	// environment into the host when set.
	PassThrough []string `mapstructure:"passthrough"`

	// MatrixDefaults holds MATRIX_DEFAULT_* values set in the config file or
	// the environment, keyed by the full variable name.
	MatrixDefaults map[string]string `mapstructure:"-"`
}

type MatrixConfig struct {
	File string `mapstructure:"file"`
	Job  string `mapstructure:"job"`
}

type ComposeConfig struct {
	File    string `mapstructure:"file"`
	Project string `mapstructure:"project"`
	EnvFile string `mapstructure:"env_file"`
}

type HostConfig struct {
	Name    string   `mapstructure:"name"`
	Image   string   `mapstructure:"image"`
	Source  string   `mapstructure:"source"`
	Workdir string   `mapstructure:"workdir"`
	Socket  string   `mapstructure:"socket"`
	Command []string `mapstructure:"command"`
}

type InstallConfig struct {
	Root string `mapstructure:"root"`
	User string `mapstructure:"user"`
}

// DefaultPhaseCommands are the commands run in the testing host for each
// phase when the configuration does not override them.
var DefaultPhaseCommands = map[string]string{
	"prepare":        "source tests/CI/run_docker_setup.sh && prepareEnvironment",
	"install-server": "source tests/CI/run_docker_setup.sh && installServer",
	"install-client": "source tests/CI/run_docker_setup.sh && installClient",
	"test-server":    "source tests/CI/run_docker_setup.sh && testServer",
	"test-client":    "source tests/CI/run_docker_setup.sh && testClient",
	"collect-logs":   "source tests/CI/run_docker_setup.sh && collectLogs",
	"check-errors":   "source tests/CI/run_docker_setup.sh && checkErrors",
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("repository", "DIRACGrid/DIRAC")
	v.SetDefault("job_timeout", "2h")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")

	v.SetDefault("matrix.file", ".github/workflows/integration.yml")
	v.SetDefault("matrix.job", "")

	v.SetDefault("compose.file", "tests/CI/docker-compose.yml")
	v.SetDefault("compose.project", "dirac")
	v.SetDefault("compose.env_file", "")

	v.SetDefault("host.name", "dirac-testing-host")
	v.SetDefault("host.image", "diracgrid/docker-compose-dirac:latest")
	v.SetDefault("host.source", ".")
	v.SetDefault("host.workdir", "/repo")
	v.SetDefault("host.socket", "/var/run/docker.sock")
	v.SetDefault("host.command", []string{"sleep", "infinity"})

	v.SetDefault("install.root", "/home/dirac")
	v.SetDefault("install.user", "dirac")

	v.SetDefault("phases", DefaultPhaseCommands)
	v.SetDefault("passthrough", []string{})
}

// BindEnv wires the environment into v: DIRACCI_* for every key,
// CI_REGISTRY_IMAGE for the registry and MATRIX_DEFAULT_* for each default
// key the standard axes read.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("registry", EnvPrefix+"_REGISTRY", "CI_REGISTRY_IMAGE"); err != nil {
		return err
	}
	for _, key := range defaultKeys() {
		if err := v.BindEnv(matrixDefaultPath(key), matrix.DefaultsPrefix+key); err != nil {
			return err
		}
	}
	return nil
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Phases from a config file only override the keys they name.
	phases := make(map[string]string, len(DefaultPhaseCommands))
	for k, cmd := range DefaultPhaseCommands {
		phases[k] = cmd
	}
	for k, cmd := range cfg.Phases {
		phases[k] = cmd
	}
	cfg.Phases = phases

	cfg.MatrixDefaults = make(map[string]string)
	for _, key := range defaultKeys() {
		path := matrixDefaultPath(key)
		if v.IsSet(path) {
			cfg.MatrixDefaults[matrix.DefaultsPrefix+key] = v.GetString(path)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values no command can work without.
func (c *Config) Validate() error {
	if c.JobTimeout <= 0 {
		return fmt.Errorf("job_timeout must be positive, got %s", c.JobTimeout)
	}
	if c.Host.Name == "" {
		return fmt.Errorf("host.name must not be empty")
	}
	if c.Compose.Project == "" {
		return fmt.Errorf("compose.project must not be empty")
	}
	return nil
}

func defaultKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, axis := range matrix.StandardAxes() {
		key := axis.DefaultName()
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func matrixDefaultPath(key string) string {
	return "matrix.defaults." + strings.ToLower(key)
}
