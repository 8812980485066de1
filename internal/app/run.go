package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/vlgtrace/internal/build"
	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
	"github.com/specialistvlad/vlgtrace/internal/live"
	"github.com/specialistvlad/vlgtrace/internal/protocol"
	"github.com/specialistvlad/vlgtrace/internal/recorder"
	"github.com/specialistvlad/vlgtrace/internal/runner"
	"github.com/specialistvlad/vlgtrace/internal/runstate"
	"github.com/specialistvlad/vlgtrace/internal/runstore"
)

// Run executes the requested steps: compile, then simulate.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	if a.config.Compile {
		if err := a.Build(ctx); err != nil {
			return err
		}
	}
	if a.config.Simulate {
		if err := a.Simulate(ctx); err != nil {
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// Build transpiles the workspace sources and compiles them.
func (a *App) Build(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	builder := build.New(a.project.BuildOptions(a.config.Dir))
	if _, err := builder.Build(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

// Simulate starts a new run of the compiled simulation, records its traces
// and answers its interrupts until it finishes.
func (a *App) Simulate(ctx context.Context) error {
	store, err := runstore.Open(a.path(a.project.Simulation.DataDir))
	if err != nil {
		return err
	}
	now := time.Now()
	run, err := store.Begin(a.project.Settings(), now)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}

	logger := a.logger.With("run", run.Index)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("🚀 Starting simulation...", "id", run.ID, "dir", run.Dir)

	opts := recorder.Options{
		Dir:              run.Dir,
		MaxFlushInterval: run.Settings.FlushInterval(),
		MaxBufferedRows:  run.Settings.MaxSaveDataLen,
	}
	if pub := a.connectLive(ctx, run); pub != nil {
		defer pub.Close()
		opts.Sink = pub
	}

	state := runstate.New(now)
	rec := recorder.New(state, opts)

	p, err := a.manager.Start(ctx, runner.Spec{
		Name: a.project.Simulation.Simulator,
		Args: []string{a.path(a.project.Build.Output)},
		Dir:  a.config.Dir,
	})
	if err != nil {
		return fmt.Errorf("starting simulator: %w", err)
	}

	dec := protocol.NewDecoder(state, p.Stdin, rec.OnInterrupt, run.Settings.MaxItt)
	runErr := runner.Drive(ctx, p, dec)

	// Rows emitted after the last interrupt are only on disk after this.
	if err := rec.Flush(context.WithoutCancel(ctx), true); err != nil {
		logger.Error("Final flush failed.", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("simulation failed: %w", runErr)
	}
	logger.Info("🏁 Simulation finished.", "time", state.LogicalTime(), "interrupts", state.InterruptCount())
	return nil
}

func (a *App) connectLive(ctx context.Context, run *runstore.Run) *live.Publisher {
	cfg := a.project.Live
	if cfg == nil {
		return nil
	}
	pub, err := live.Connect(ctx, live.Options{
		URL:                cfg.URL,
		Namespace:          cfg.Namespace,
		Event:              cfg.Event,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Run:                run.ID,
		Index:              run.Index,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Live publishing disabled.", "error", err)
		return nil
	}
	return pub
}
