package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
	"github.com/specialistvlad/vlgtrace/internal/protocol"
)

// maxStderrLine is the longest stderr line logged as a whole.
const maxStderrLine = 1 << 20

// Drive decodes the process's stdout until it closes, logs its stderr, then
// waits for the process to exit. The decoder is the only reader of stdout,
// so interrupt commands are written strictly in line order.
func Drive(ctx context.Context, p *Process, dec *protocol.Decoder) error {
	logger := ctxlog.FromContext(ctx).With("pid", p.Pid())
	ctx = ctxlog.WithLogger(ctx, logger)

	var g errgroup.Group
	g.Go(func() error {
		return dec.Run(ctx, p.Stdout)
	})
	g.Go(func() error {
		sc := bufio.NewScanner(p.Stderr)
		sc.Buffer(make([]byte, 0, 64*1024), maxStderrLine)
		for sc.Scan() {
			logger.Warn("Simulator stderr.", "line", sc.Text())
		}
		if err := sc.Err(); err != nil {
			logger.Warn("Simulator stderr no longer logged.", "error", err)
			// Keep draining so the simulator never blocks on a full pipe.
			io.Copy(io.Discard, p.Stderr)
		}
		return nil
	})

	decodeErr := g.Wait()
	waitErr := p.Wait()

	if decodeErr != nil {
		return fmt.Errorf("decoding simulator output: %w", decodeErr)
	}
	if waitErr != nil {
		return fmt.Errorf("simulator exited: %w", waitErr)
	}
	logger.Debug("Simulator exited cleanly.")
	return nil
}
