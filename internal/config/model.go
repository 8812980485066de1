package config

import (
	"fmt"
	"path/filepath"

	"github.com/specialistvlad/vlgtrace/internal/build"
	"github.com/specialistvlad/vlgtrace/internal/inject"
	"github.com/specialistvlad/vlgtrace/internal/runstore"
	"github.com/specialistvlad/vlgtrace/internal/signifier"
)

// FileName is the project file looked up in the workspace.
const FileName = "vlgtrace.hcl"

// Config is the resolved project configuration.
type Config struct {
	Build      Build
	Simulation Simulation
	// Live is nil unless the project file has a live block.
	Live *Live
}

// Build drives transpiling and compiling.
type Build struct {
	SourceDir         string
	BuildDir          string
	Extensions        []string
	Output            string
	Compiler          string
	TickInterval      int
	InterruptInterval int
	InterruptTarget   string
	RangeOrder        signifier.RangeOrder
}

// Simulation drives the simulator and the recorder. The numeric limits seed
// a new run.json; an existing run.json takes precedence.
type Simulation struct {
	Simulator          string
	DataDir            string
	MaxFlushIntervalMS int
	MaxBufferedRows    int
	MaxInterrupts      int
}

// Live configures the optional socket.io publisher.
type Live struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// Defaults returns the configuration used without a project file.
func Defaults() *Config {
	b := build.DefaultOptions()
	inj := inject.DefaultOptions()
	s := runstore.DefaultSettings()
	return &Config{
		Build: Build{
			SourceDir:         b.SourceDir,
			BuildDir:          b.BuildDir,
			Extensions:        b.Extensions,
			Output:            b.Output,
			Compiler:          b.Compiler,
			TickInterval:      inj.TickInterval,
			InterruptInterval: inj.InterruptInterval,
			InterruptTarget:   inj.InterruptTarget,
			RangeOrder:        signifier.AnyOrder,
		},
		Simulation: Simulation{
			Simulator:          "vvp",
			DataDir:            filepath.Join("temp", "sim"),
			MaxFlushIntervalMS: s.MaxSaveTimeMS,
			MaxBufferedRows:    s.MaxSaveDataLen,
			MaxInterrupts:      s.MaxItt,
		},
	}
}

func defaultLive() Live {
	return Live{Namespace: "/", Event: "trace"}
}

// InjectOptions returns the injector settings of the build block.
func (c *Config) InjectOptions() inject.Options {
	return inject.Options{
		Parser:            signifier.Parser{Order: c.Build.RangeOrder},
		TickInterval:      c.Build.TickInterval,
		InterruptInterval: c.Build.InterruptInterval,
		InterruptTarget:   c.Build.InterruptTarget,
	}
}

// BuildOptions returns builder settings rooted at dir.
func (c *Config) BuildOptions(dir string) build.Options {
	return build.Options{
		Dir:        dir,
		SourceDir:  c.Build.SourceDir,
		BuildDir:   c.Build.BuildDir,
		Extensions: c.Build.Extensions,
		Output:     c.Build.Output,
		Compiler:   c.Build.Compiler,
		Transpiler: inject.New(c.InjectOptions()),
	}
}

// Settings returns the run.json defaults of the simulation block.
func (c *Config) Settings() runstore.Settings {
	return runstore.Settings{
		MaxSaveTimeMS:  c.Simulation.MaxFlushIntervalMS,
		MaxSaveDataLen: c.Simulation.MaxBufferedRows,
		MaxItt:         c.Simulation.MaxInterrupts,
	}
}

func (c *Config) validate() error {
	if len(c.Build.Extensions) == 0 {
		return fmt.Errorf("build.extensions must not be empty")
	}
	if filepath.Clean(c.Build.BuildDir) == filepath.Clean(c.Build.SourceDir) {
		return fmt.Errorf("build.build_dir must differ from build.source_dir")
	}
	if c.Build.Compiler == "" {
		return fmt.Errorf("build.compiler must not be empty")
	}
	if c.Simulation.Simulator == "" {
		return fmt.Errorf("simulation.simulator must not be empty")
	}
	if c.Simulation.MaxFlushIntervalMS < 0 || c.Simulation.MaxBufferedRows < 0 {
		return fmt.Errorf("simulation flush limits must not be negative")
	}
	if c.Live != nil && c.Live.URL == "" {
		return fmt.Errorf("live.url is required")
	}
	return nil
}
