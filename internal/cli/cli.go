package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/specialistvlad/vlgtrace/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Options is the parsed command line.
type Options struct {
	App *app.Config
	// Profile is "", "cpu" or "mem".
	Profile string
}

// Parse processes command-line arguments. It returns the populated Options,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("vlgtrace", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
vlgtrace - Instruments annotated Verilog modules and records their traces.

Usage:
  vlgtrace -c|-r|-a [options]

Actions:
  -c  transpile and compile the workspace
  -r  run the compiled simulation and record a new run
  -a  compile, then run

Options:
`)
		flagSet.PrintDefaults()
	}

	compileFlag := flagSet.Bool("c", false, "Transpile and compile.")
	runFlag := flagSet.Bool("r", false, "Run the simulation.")
	allFlag := flagSet.Bool("a", false, "Compile, then run.")
	dirFlag := flagSet.String("dir", "", "Workspace directory. Defaults to the current directory.")
	configFlag := flagSet.String("config", "", "Project file. Defaults to <dir>/vlgtrace.hcl.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", defaultLogFormat(output), "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	profileFlag := flagSet.String("profile", "", "Write a profile to the working directory. Options: 'cpu' or 'mem'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}

	compile := *compileFlag || *allFlag
	simulate := *runFlag || *allFlag
	if !compile && !simulate {
		slog.Debug("No action requested, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	profile := strings.ToLower(*profileFlag)
	switch profile {
	case "", "cpu", "mem":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid profile: must be 'cpu' or 'mem'"}
	}

	dir := *dirFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, false, &ExitError{Code: 1, Message: err.Error()}
		}
		dir = wd
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Dir:             dir,
		ConfigPath:      *configFlag,
		Compile:         compile,
		Simulate:        simulate,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return &Options{App: config, Profile: profile}, false, nil
}

// defaultLogFormat picks text for an interactive terminal and json otherwise.
func defaultLogFormat(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "text"
	}
	return "json"
}
