package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"

	"github.com/specialistvlad/vlgtrace/internal/app"
	"github.com/specialistvlad/vlgtrace/internal/cli"
	"github.com/specialistvlad/vlgtrace/internal/config"
)

// main is the entrypoint for the vlgtrace application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	switch opts.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	vlgApp, err := app.NewApp(ctx, outW, opts.App, config.NewLoader())
	if err != nil {
		return err
	}

	// Interrupt the simulator as soon as a signal arrives, and again on the
	// way out; only the first call acts.
	cancelWatch := context.AfterFunc(ctx, func() {
		vlgApp.Shutdown(context.WithoutCancel(ctx))
	})
	defer cancelWatch()
	defer vlgApp.Shutdown(context.WithoutCancel(ctx))

	return vlgApp.Run(ctx)
}
