package app

import "errors"

// Config holds the command-line level settings of one invocation.
type Config struct {
	// Dir is the workspace holding the sources and the project file.
	Dir string
	// ConfigPath is the project file; it may not exist.
	ConfigPath string

	Compile  bool
	Simulate bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Dir == "" {
		return nil, errors.New("Dir is a required configuration field and cannot be empty")
	}
	if !cfg.Compile && !cfg.Simulate {
		return nil, errors.New("nothing to do: enable compile, simulate or both")
	}
	return &cfg, nil
}
