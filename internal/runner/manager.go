// Package runner launches simulator processes and feeds their output to the
// protocol decoder.
//
// A Manager owns every process it starts. TerminateAll signals all of them
// once and refuses further starts; it is safe to call from a signal handler
// and again on normal exit.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
)

// ErrTerminated is returned by Start after TerminateAll.
var ErrTerminated = errors.New("runner: manager terminated")

// Spec describes a process to launch.
type Spec struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env []string
}

// Process is a running child with its standard streams attached.
type Process struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	manager *Manager
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait waits for the process to exit and releases it from its manager.
// Stdout and Stderr must be fully read before calling Wait.
func (p *Process) Wait() error {
	err := p.cmd.Wait()
	p.manager.release(p)
	return err
}

// Manager tracks live child processes.
type Manager struct {
	mu         sync.Mutex
	procs      map[*Process]struct{}
	terminated bool
	once       sync.Once
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{procs: make(map[*Process]struct{})}
}

// Start launches spec and registers the process.
func (m *Manager) Start(ctx context.Context, spec Spec) (*Process, error) {
	logger := ctxlog.FromContext(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminated {
		return nil, ErrTerminated
	}

	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	p := &Process{cmd: cmd, manager: m}
	var err error
	if p.Stdin, err = cmd.StdinPipe(); err != nil {
		return nil, fmt.Errorf("attaching stdin: %w", err)
	}
	if p.Stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, fmt.Errorf("attaching stdout: %w", err)
	}
	if p.Stderr, err = cmd.StderrPipe(); err != nil {
		return nil, fmt.Errorf("attaching stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", spec.Name, err)
	}

	m.procs[p] = struct{}{}
	logger.Debug("Process started.", "name", spec.Name, "pid", p.Pid())
	return p, nil
}

// Active returns the number of processes not yet waited for.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.procs)
}

// TerminateAll interrupts every live process and closes its input. Only the
// first call has any effect.
func (m *Manager) TerminateAll(ctx context.Context) {
	m.once.Do(func() {
		logger := ctxlog.FromContext(ctx)

		m.mu.Lock()
		m.terminated = true
		procs := make([]*Process, 0, len(m.procs))
		for p := range m.procs {
			procs = append(procs, p)
		}
		m.mu.Unlock()

		for _, p := range procs {
			logger.Info("Terminating process.", "pid", p.Pid())
			if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logger.Warn("Failed to signal process.", "pid", p.Pid(), "error", err)
			}
			p.Stdin.Close()
		}
	})
}

func (m *Manager) release(p *Process) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, p)
}
