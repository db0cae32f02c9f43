package topology

import (
	"context"
	"fmt"
	"time"

	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"golang.org/x/sync/errgroup"
)

const topologySubsystem = "Topology"

// Health is the health status reported by the container engine.
type Health string

const (
	HealthNone      Health = ""
	HealthStarting  Health = "starting"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
)

// State is a snapshot of a service container.
type State struct {
	Running  bool
	Exited   bool
	ExitCode int
	Health   Health
}

// Runtime starts services and reports their state.
type Runtime interface {
	Start(ctx context.Context, project string, svc Service) error
	Inspect(ctx context.Context, project string, svc Service) (State, error)
}

// DefaultStartedBudget bounds the wait for a service_started dependency.
const DefaultStartedBudget = 30 * time.Second

// Gate starts a descriptor's services in dependency order and holds each
// service back until its dependencies satisfy their conditions.
type Gate struct {
	Runtime Runtime
	// PollInterval caps the time between two inspections. Defaults to one
	// second; the health check interval is used when it is shorter.
	PollInterval time.Duration
	// OnReady is called once per dependency edge when the condition is met.
	OnReady func(service string, condition Condition)
}

// Up starts every service. It stops at the first service whose dependency
// never becomes ready and returns a failure.SetupError; no dependent of that
// service is started.
func (g *Gate) Up(ctx context.Context, d *Descriptor) error {
	order, err := d.StartOrder()
	if err != nil {
		return failure.NewSetupError(d.Project, "invalid topology", err)
	}

	for _, name := range order {
		svc := d.Services[name]
		if err := g.awaitDependencies(ctx, d, svc); err != nil {
			return err
		}

		logging.Info(topologySubsystem, "Starting %s (%s)", name, svc.Image)
		if err := g.Runtime.Start(ctx, d.Project, svc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return failure.NewSetupError(name, "start", err)
		}
	}
	return nil
}

func (g *Gate) awaitDependencies(ctx context.Context, d *Descriptor, svc Service) error {
	if len(svc.DependsOn) == 0 {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, dep := range svc.DependsOn {
		depSvc := d.Services[dep.Service]
		cond := dep.Condition
		eg.Go(func() error {
			if err := g.await(egCtx, d.Project, depSvc, cond); err != nil {
				return err
			}
			if g.OnReady != nil {
				g.OnReady(depSvc.Name, cond)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		// A sibling's failure cancels egCtx; report the parent's own
		// cancellation only when it is the cause.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (g *Gate) await(ctx context.Context, project string, svc Service, cond Condition) error {
	switch cond {
	case ConditionHealthy:
		if svc.HealthCheck == nil {
			return failure.NewSetupError(svc.Name, "service_healthy requested but no health check is defined", nil)
		}
		return g.poll(ctx, project, svc, svc.HealthCheck.Budget(), svc.HealthCheck.Interval, func(st State) (bool, error) {
			switch {
			case st.Health == HealthHealthy:
				return true, nil
			case st.Health == HealthUnhealthy:
				return false, failure.NewSetupError(svc.Name, "health check reported unhealthy", nil)
			case st.Exited:
				return false, failure.NewSetupError(svc.Name, fmt.Sprintf("exited with code %d before becoming healthy", st.ExitCode), nil)
			}
			return false, nil
		})

	case ConditionCompletedSuccessfully:
		return g.poll(ctx, project, svc, 0, 0, func(st State) (bool, error) {
			if !st.Exited {
				return false, nil
			}
			if st.ExitCode != 0 {
				return false, failure.NewSetupError(svc.Name, fmt.Sprintf("completed with exit code %d", st.ExitCode), nil)
			}
			return true, nil
		})

	default:
		return g.poll(ctx, project, svc, DefaultStartedBudget, 0, func(st State) (bool, error) {
			return st.Running || st.Exited, nil
		})
	}
}

// poll inspects svc until check reports done or fails. A zero budget waits
// until ctx is done.
func (g *Gate) poll(ctx context.Context, project string, svc Service, budget, interval time.Duration, check func(State) (bool, error)) error {
	every := g.PollInterval
	if every <= 0 {
		every = time.Second
	}
	if interval > 0 && interval < every {
		every = interval
	}

	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}

	for {
		st, err := g.Runtime.Inspect(ctx, project, svc)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return failure.NewSetupError(svc.Name, "inspect", err)
		}

		done, err := check(st)
		if err != nil {
			return err
		}
		if done {
			logging.Debug(topologySubsystem, "%s is ready", svc.Name)
			return nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return failure.NewSetupError(svc.Name, fmt.Sprintf("not ready within %s", budget), nil)
		}

		timer := time.NewTimer(every)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
