package diracci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/DIRACGrid/diracci/internal/engine"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/DIRACGrid/diracci/internal/topology"
	"github.com/DIRACGrid/diracci/internal/wrapper"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// selection is the combination chosen on the command line: an optional
// selector (index or label in the matrix) refined by --set assignments.
type selection struct {
	sets []string
}

func (s *selection) addFlags(fs *pflag.FlagSet) {
	fs.StringArrayVar(&s.sets, "set", nil, "override an axis, NAME=value (repeatable, \"default\" leaves it unset, empty falls back to the default)")
}

func (s *selection) combination(m *matrix.Matrix, args []string) (matrix.Combination, error) {
	c := matrix.Combination{Values: map[string]string{}}
	if len(args) > 0 {
		found, err := m.Find(args[0])
		if err != nil {
			return matrix.Combination{}, err
		}
		c.Name = found.Name
		for k, val := range found.Values {
			c.Values[k] = val
		}
	}

	overrides, err := matrix.ParseAssignments(s.sets)
	if err != nil {
		return matrix.Combination{}, err
	}
	if overrides.Name != "" {
		c.Name = overrides.Name
	}
	for _, pair := range s.sets {
		if name, raw, ok := strings.Cut(pair, "="); ok && matrix.ParseValue(raw).IsAbsent() {
			delete(c.Values, name)
		}
	}
	for k, val := range overrides.Values {
		c.Values[k] = val
	}
	return c, nil
}

// loadMatrix reads the configured matrix source. Defaults from the
// configuration and MATRIX_DEFAULT_* override those of the source.
func loadMatrix() (*matrix.Matrix, error) {
	m := matrix.NewStandard()
	if cfg.Matrix.File != "" {
		if _, err := os.Stat(cfg.Matrix.File); err == nil {
			m, err = matrix.Load(cfg.Matrix.File, cfg.Matrix.Job, m)
			if err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("matrix source: %w", err)
		} else {
			logging.Debug("Matrix", "No matrix source at %s, using the standard axes", cfg.Matrix.File)
		}
	}
	m.OverlayDefaults(cfg.MatrixDefaults)
	return m, nil
}

// descriptorInputs are the values the topology descriptor may reference.
func descriptorInputs(env matrix.Environment) (map[string]string, error) {
	registry := map[string]string{}
	if cfg.Registry != "" {
		registry[wrapper.RegistryVariable] = cfg.Registry
	}
	return topology.BuildInputs(cfg.Compose.EnvFile, env.Map(), registry)
}

func loadDescriptor(ctx context.Context, env matrix.Environment) (*topology.Descriptor, error) {
	inputs, err := descriptorInputs(env)
	if err != nil {
		return nil, err
	}
	path := cfg.Compose.File
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if path, err = topology.FindDescriptor(path); err != nil {
			return nil, err
		}
	}
	return topology.Load(ctx, path, cfg.Compose.Project, inputs)
}

func newWrapper(env matrix.Environment) (*wrapper.Wrapper, error) {
	w, err := wrapper.New(env, wrapper.Options{
		Container:   cfg.Host.Name,
		Registry:    cfg.Registry,
		PassThrough: cfg.PassThrough,
		Lookup:      os.LookupEnv,
	})
	if err != nil {
		return nil, err
	}
	w.WorkingDir = cfg.Host.Workdir
	return w, nil
}

func newEngine() (*engine.Engine, error) {
	eng, err := engine.New(uuid.NewString())
	if err != nil {
		return nil, failure.NewSetupError("engine", "connect", err)
	}
	return eng, nil
}

func hostSpec() engine.HostSpec {
	return engine.HostSpec{
		Project: cfg.Compose.Project,
		Name:    cfg.Host.Name,
		Image:   cfg.Host.Image,
		Source:  cfg.Host.Source,
		Workdir: cfg.Host.Workdir,
		Socket:  cfg.Host.Socket,
		Command: cfg.Host.Command,
	}
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._=-]+`)

// logDir is where the logs of one combination are saved.
func logDir(c matrix.Combination) string {
	return filepath.Join(cfg.LogDir, unsafePathChars.ReplaceAllString(c.Label(), "_"))
}

// saveServiceLogs writes the container log of every topology service to dir.
func saveServiceLogs(ctx context.Context, eng *engine.Engine, d *topology.Descriptor, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	var errs []error
	for _, name := range d.Names() {
		svc := d.Services[name]
		path := filepath.Join(dir, name+".log")
		f, err := os.Create(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := eng.Logs(ctx, svc.Container(d.Project), "all", false, f, f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		logging.Debug("Logs", "Saved %s", path)
	}
	return errors.Join(errs...)
}
