package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
	"github.com/specialistvlad/vlgtrace/internal/signifier"
)

// fileRoot holds the top-level blocks of a project file. Attributes are
// pointers so that only the ones present override the defaults.
type fileRoot struct {
	Build      *buildBlock      `hcl:"build,block"`
	Simulation *simulationBlock `hcl:"simulation,block"`
	Live       *liveBlock       `hcl:"live,block"`
}

type buildBlock struct {
	SourceDir         *string  `hcl:"source_dir,optional"`
	BuildDir          *string  `hcl:"build_dir,optional"`
	Extensions        []string `hcl:"extensions,optional"`
	Output            *string  `hcl:"output,optional"`
	Compiler          *string  `hcl:"compiler,optional"`
	TickInterval      *int     `hcl:"tick_interval,optional"`
	InterruptInterval *int     `hcl:"interrupt_interval,optional"`
	InterruptTarget   *string  `hcl:"interrupt_target,optional"`
	RangeOrder        *string  `hcl:"range_order,optional"`
}

type simulationBlock struct {
	Simulator          *string `hcl:"simulator,optional"`
	DataDir            *string `hcl:"data_dir,optional"`
	MaxFlushIntervalMS *int    `hcl:"max_flush_interval_ms,optional"`
	MaxBufferedRows    *int    `hcl:"max_buffered_rows,optional"`
	MaxInterrupts      *int    `hcl:"max_interrupts,optional"`
}

type liveBlock struct {
	URL       string  `hcl:"url"`
	Namespace *string `hcl:"namespace,optional"`
	Event     *string `hcl:"event,optional"`
	Insecure  *bool   `hcl:"insecure_skip_verify,optional"`
}

// Loader reads project files. Env and Cwd feed the expression context.
type Loader struct {
	Env map[string]string
	Cwd string
}

// NewLoader returns a Loader over the process environment.
func NewLoader() *Loader {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok && k != "" {
			env[k] = v
		}
	}
	cwd, _ := os.Getwd()
	return &Loader{Env: env, Cwd: cwd}
}

// EvalContext exposes env.<NAME> and cwd to expressions.
func (l *Loader) EvalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value, len(l.Env))
	for k, v := range l.Env {
		env[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
			"cwd": cty.StringVal(l.Cwd),
		},
	}
}

// Load reads the project file at path. A missing file yields the defaults.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx).With("path", path)

	src, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("No project file, using defaults.")
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	cfg, err := l.Parse(src, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Project file loaded.", "live", cfg.Live != nil)
	return cfg, nil
}

// Parse decodes project file content. filename only labels diagnostics.
func (l *Loader) Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, l.EvalContext(), &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	cfg := Defaults()
	if err := root.apply(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

func (r *fileRoot) apply(cfg *Config) error {
	if b := r.Build; b != nil {
		set(&cfg.Build.SourceDir, b.SourceDir)
		set(&cfg.Build.BuildDir, b.BuildDir)
		set(&cfg.Build.Output, b.Output)
		set(&cfg.Build.Compiler, b.Compiler)
		set(&cfg.Build.TickInterval, b.TickInterval)
		set(&cfg.Build.InterruptInterval, b.InterruptInterval)
		set(&cfg.Build.InterruptTarget, b.InterruptTarget)
		if b.Extensions != nil {
			cfg.Build.Extensions = b.Extensions
		}
		if b.RangeOrder != nil {
			order, err := signifier.ParseRangeOrder(*b.RangeOrder)
			if err != nil {
				return err
			}
			cfg.Build.RangeOrder = order
		}
	}
	if s := r.Simulation; s != nil {
		set(&cfg.Simulation.Simulator, s.Simulator)
		set(&cfg.Simulation.DataDir, s.DataDir)
		set(&cfg.Simulation.MaxFlushIntervalMS, s.MaxFlushIntervalMS)
		set(&cfg.Simulation.MaxBufferedRows, s.MaxBufferedRows)
		set(&cfg.Simulation.MaxInterrupts, s.MaxInterrupts)
	}
	if lb := r.Live; lb != nil {
		live := defaultLive()
		live.URL = lb.URL
		set(&live.Namespace, lb.Namespace)
		set(&live.Event, lb.Event)
		set(&live.InsecureSkipVerify, lb.Insecure)
		cfg.Live = &live
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
