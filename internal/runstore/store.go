// Package runstore manages the on-disk layout shared by all runs:
//
//	<root>/run.json          settings, created with defaults on first use
//	<root>/lr.txt            index of the most recent run
//	<root>/runs/run-<N>/     one directory per run
//	<root>/runs/run-<N>/meta.json
//
// The recorder writes trace tables and the output log into the run
// directory.
package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	settingsFile = "run.json"
	counterFile  = "lr.txt"
	runsDir      = "runs"
	metaFile     = "meta.json"
)

// Settings is the run configuration record stored in run.json.
type Settings struct {
	MaxSaveTimeMS  int `json:"maxSaveTimeMS"`
	MaxSaveDataLen int `json:"maxSaveDataLen"`
	MaxItt         int `json:"maxItt"`
}

// DefaultSettings returns the values written to a fresh run.json.
func DefaultSettings() Settings {
	return Settings{
		MaxSaveTimeMS:  100,
		MaxSaveDataLen: 1000,
		MaxItt:         10,
	}
}

// FlushInterval returns MaxSaveTimeMS as a duration.
func (s Settings) FlushInterval() time.Duration {
	return time.Duration(s.MaxSaveTimeMS) * time.Millisecond
}

// Run identifies one execution and where its data goes.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Index     int       `json:"index"`
	Dir       string    `json:"-"`
	StartedAt time.Time `json:"started_at"`
	Settings  Settings  `json:"settings"`
}

// Store is rooted at the simulation data directory.
type Store struct {
	root string
}

// Open creates the root and runs directories if needed.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, runsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating run store at %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's directory.
func (s *Store) Root() string {
	return s.root
}

// RunDir returns the directory for run index.
func (s *Store) RunDir(index int) string {
	return filepath.Join(s.root, runsDir, "run-"+strconv.Itoa(index))
}

// Begin loads the settings, claims the next run index, creates the run
// directory and records its metadata. defaults are written to run.json when
// the file does not exist yet.
func (s *Store) Begin(defaults Settings, now time.Time) (*Run, error) {
	settings, err := s.LoadSettings(defaults)
	if err != nil {
		return nil, err
	}
	index, err := s.NextIndex()
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New(),
		Index:     index,
		Dir:       s.RunDir(index),
		StartedAt: now,
		Settings:  settings,
	}
	if err := os.MkdirAll(run.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	if err := writeJSON(filepath.Join(run.Dir, metaFile), run); err != nil {
		return nil, err
	}
	return run, nil
}

// LoadSettings reads run.json, creating it from defaults when absent.
func (s *Store) LoadSettings(defaults Settings) (Settings, error) {
	path := filepath.Join(s.root, settingsFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaults, writeJSON(path, defaults)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("reading %s: %w", path, err)
	}

	settings := defaults
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return settings, nil
}

// NextIndex advances the run counter and returns the new index. The first
// run is 0; an unreadable counter restarts at 0.
func (s *Store) NextIndex() (int, error) {
	path := filepath.Join(s.root, counterFile)
	index := 0

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return 0, fmt.Errorf("reading %s: %w", path, err)
	default:
		if last, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil && last >= 0 {
			index = last + 1
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(index)), 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return index, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
