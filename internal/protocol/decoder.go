package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
	"github.com/specialistvlad/vlgtrace/internal/runstate"
)

// InterruptFunc is called for every interrupt line before the simulator is
// resumed. final is true for the interrupt that ends the run.
type InterruptFunc func(ctx context.Context, final bool) error

// readSize is the chunk size used by Run.
const readSize = 4096

// Decoder turns simulator output into run state and answers interrupts.
// A Decoder is driven by a single goroutine; lines are handled strictly in
// arrival order.
type Decoder struct {
	state         *runstate.State
	commands      io.Writer
	onInterrupt   InterruptFunc
	maxInterrupts int

	pending  []byte
	finished bool
}

// NewDecoder returns a Decoder that records into state and writes resume
// commands to commands. maxInterrupts <= 0 never finishes the run.
func NewDecoder(state *runstate.State, commands io.Writer, onInterrupt InterruptFunc, maxInterrupts int) *Decoder {
	if onInterrupt == nil {
		onInterrupt = func(context.Context, bool) error { return nil }
	}
	return &Decoder{
		state:         state,
		commands:      commands,
		onInterrupt:   onInterrupt,
		maxInterrupts: maxInterrupts,
	}
}

// Finished reports whether the finish command has been sent.
func (d *Decoder) Finished() bool {
	return d.finished
}

// Run reads r until EOF, feeding every chunk through the decoder. A
// trailing line without a newline is handled once the stream ends.
func (d *Decoder) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			d.Feed(ctx, buf[:n])
		}
		if errors.Is(err, io.EOF) {
			d.Close(ctx)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading simulator output: %w", err)
		}
	}
}

// Feed consumes one chunk of output. Complete lines are handled
// immediately; a trailing partial line is kept for the next chunk.
func (d *Decoder) Feed(ctx context.Context, chunk []byte) {
	d.pending = append(d.pending, chunk...)
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			return
		}
		line := string(bytes.ReplaceAll(d.pending[:i], []byte("\r"), nil))
		d.pending = d.pending[i+1:]
		d.handle(ctx, line)
	}
}

// Close handles any buffered partial line.
func (d *Decoder) Close(ctx context.Context) {
	if len(d.pending) == 0 {
		return
	}
	line := string(bytes.ReplaceAll(d.pending, []byte("\r"), nil))
	d.pending = nil
	if line != "" {
		d.handle(ctx, line)
	}
}

func (d *Decoder) handle(ctx context.Context, text string) {
	if err := d.HandleLine(ctx, text); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to answer simulator interrupt.", "error", err)
	}
}

// HandleLine classifies one complete line and applies it to the run state.
// The only error it returns is a failure to write a command back to the
// simulator; malformed or unknown lines are dropped.
func (d *Decoder) HandleLine(ctx context.Context, text string) error {
	logger := ctxlog.FromContext(ctx)

	if !IsTagged(text) {
		if d.state.AppendOutput(text) {
			logger.Info("> " + text)
		}
		return nil
	}

	line, ok := ParseLine(text)
	if !ok {
		logger.Debug("Dropping malformed telemetry line.", "line", text)
		return nil
	}

	switch line.Kind {
	case KindHeader:
		d.state.AppendHeader(line.Trace, line.Columns())
	case KindValues:
		d.state.AppendValues(line.Trace, line.Columns())
	case KindTick:
		d.state.Tick()
	case KindInterrupt:
		return d.interrupt(ctx, line)
	case KindOutputStart:
		d.state.SetFreeOutput(true)
	case KindOutputEnd:
		d.state.SetFreeOutput(false)
	default:
		logger.Debug("Ignoring unknown telemetry kind.", "kind", line.Kind, "trace", line.Trace)
	}
	return nil
}

// interrupt waits for the callback, then sends exactly one command.
func (d *Decoder) interrupt(ctx context.Context, line Line) error {
	logger := ctxlog.FromContext(ctx)
	count := d.state.Interrupt()
	final := d.maxInterrupts > 0 && count >= d.maxInterrupts

	logger.Debug("Simulator interrupted.", "trace", line.Trace, "count", count, "final", final)
	if err := d.onInterrupt(ctx, final); err != nil {
		logger.Warn("Interrupt handler failed.", "count", count, "error", err)
	}

	cmd := CommandContinue
	if final {
		cmd = CommandFinish
		d.finished = true
	}
	if _, err := io.WriteString(d.commands, cmd+"\n"); err != nil {
		return fmt.Errorf("writing %q to simulator: %w", cmd, err)
	}
	return nil
}
