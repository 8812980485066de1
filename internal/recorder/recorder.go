// Package recorder persists the rows and free output buffered in a
// runstate.State into the run directory.
//
// Each trace gets its own comma-delimited table, <trace>.csv, and all free
// output goes to _out.log. Files are only ever appended to.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
	"github.com/specialistvlad/vlgtrace/internal/runstate"
)

// OutputLog is the file name of the free-output log inside a run directory.
const OutputLog = "_out.log"

// ErrPersistence wraps every failed write. A failed write leaves its rows
// buffered so the next flush retries them.
var ErrPersistence = errors.New("persistence failure")

// Sink receives every batch of rows after it has been written to disk.
type Sink interface {
	Publish(ctx context.Context, trace string, rows [][]string) error
}

// Options configure a Recorder.
type Options struct {
	// Dir is the run directory. It must exist.
	Dir string
	// MaxFlushInterval is the age after which an unforced flush proceeds.
	MaxFlushInterval time.Duration
	// MaxBufferedRows is the collection length at which an unforced flush proceeds.
	MaxBufferedRows int
	// Sink is optional.
	Sink Sink
	// Now defaults to time.Now.
	Now func() time.Time
}

// Recorder flushes a run's buffers to disk.
type Recorder struct {
	state *runstate.State
	opts  Options
}

// New returns a Recorder draining state.
func New(state *runstate.State, opts Options) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{state: state, opts: opts}
}

// OnInterrupt flushes on every simulator interrupt, forcing the final one.
func (r *Recorder) OnInterrupt(ctx context.Context, final bool) error {
	return r.Flush(ctx, final)
}

// Flush writes buffered rows and output lines. Unless force is set, it does
// nothing while the last flush is recent and every buffer is short. Writes
// run concurrently; Flush returns once all of them have finished, with the
// joined persistence failures if any.
func (r *Recorder) Flush(ctx context.Context, force bool) error {
	logger := ctxlog.FromContext(ctx)
	snap := r.state.Snapshot()

	if !force && !r.due(snap) {
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	for _, trace := range snap.Traces {
		rows := snap.Rows[trace]
		if len(rows) == 0 {
			continue
		}
		g.Go(func() error {
			path := filepath.Join(r.opts.Dir, TableFileName(trace))
			if err := appendFile(path, EncodeRows(rows)); err != nil {
				fail(fmt.Errorf("%w: trace %s: %w", ErrPersistence, trace, err))
				return nil
			}
			r.state.DrainRows(trace, len(rows))
			r.publish(ctx, trace, rows)
			return nil
		})
	}

	if len(snap.Output) > 0 {
		g.Go(func() error {
			var b strings.Builder
			for _, l := range snap.Output {
				b.WriteString(l.String())
				b.WriteByte('\n')
			}
			if err := appendFile(filepath.Join(r.opts.Dir, OutputLog), b.String()); err != nil {
				fail(fmt.Errorf("%w: output log: %w", ErrPersistence, err))
				return nil
			}
			r.state.DrainOutput(len(snap.Output))
			return nil
		})
	}

	_ = g.Wait()
	r.state.MarkFlushed(r.opts.Now())

	if len(errs) > 0 {
		err := errors.Join(errs...)
		logger.Warn("Flush incomplete; data stays buffered.", "error", err)
		return err
	}
	logger.Debug("Flushed run data.", "traces", len(snap.Traces), "output_lines", len(snap.Output), "forced", force)
	return nil
}

func (r *Recorder) due(snap runstate.Snapshot) bool {
	if r.opts.Now().Sub(r.state.LastFlush()) >= r.opts.MaxFlushInterval {
		return true
	}
	return r.opts.MaxBufferedRows > 0 && snap.Largest() >= r.opts.MaxBufferedRows
}

func (r *Recorder) publish(ctx context.Context, trace string, rows [][]string) {
	if r.opts.Sink == nil {
		return
	}
	if err := r.opts.Sink.Publish(ctx, trace, rows); err != nil {
		ctxlog.FromContext(ctx).Warn("Live publish failed.", "trace", trace, "error", err)
	}
}

func appendFile(path, data string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if err := appendOrTruncate(f, info.Size(), data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type appendTarget interface {
	io.StringWriter
	Truncate(size int64) error
}

// appendOrTruncate writes data after size bytes. A failed write cuts the file
// back to size, so rows kept for a retry are never written twice.
func appendOrTruncate(f appendTarget, size int64, data string) error {
	if _, err := f.WriteString(data); err != nil {
		if terr := f.Truncate(size); terr != nil {
			return errors.Join(err, fmt.Errorf("truncating partial write: %w", terr))
		}
		return err
	}
	return nil
}

// TableFileName maps a trace name to a file name that stays inside the run
// directory.
func TableFileName(trace string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, trace)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "_"
	}
	return name + ".csv"
}
