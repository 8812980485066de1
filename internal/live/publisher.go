// Package live streams flushed trace rows to a socket.io server while a
// simulation runs. It is optional; the recorder's files remain the record.
package live

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
)

const connectTimeout = 15 * time.Second

// Options configure a Publisher.
type Options struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	// Run and Index tag every event.
	Run   uuid.UUID
	Index int
}

// Batch is the payload of one event.
type Batch struct {
	Run   string     `json:"run"`
	Index int        `json:"index"`
	Trace string     `json:"trace"`
	Rows  [][]string `json:"rows"`
}

// Publisher emits batches over a connected socket.
type Publisher struct {
	opts   Options
	client *socket.Socket
	emit   func(event string, payload any)
}

// Connect dials the server over websocket and waits for the namespace to
// accept the connection.
func Connect(ctx context.Context, opts Options) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("url", opts.URL, "namespace", opts.Namespace)
	logger.Debug("Connecting live publisher...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	sockOpts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		sockOpts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	client := manager.Socket(opts.Namespace, sockOpts)

	connected := make(chan error, 1)
	client.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	client.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	client.Connect()

	select {
	case err := <-connected:
		if err != nil {
			client.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		client.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		client.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}

	logger.Info("Live publisher connected.", "sid", client.Id())
	p := newPublisher(opts, func(event string, payload any) {
		client.Emit(event, payload)
	})
	p.client = client
	return p, nil
}

func newPublisher(opts Options, emit func(string, any)) *Publisher {
	if opts.Event == "" {
		opts.Event = "trace"
	}
	return &Publisher{opts: opts, emit: emit}
}

// NewBatch builds the payload for rows of trace.
func (p *Publisher) NewBatch(trace string, rows [][]string) Batch {
	return Batch{
		Run:   p.opts.Run.String(),
		Index: p.opts.Index,
		Trace: trace,
		Rows:  rows,
	}
}

// Publish emits one batch. It never blocks on the server.
func (p *Publisher) Publish(ctx context.Context, trace string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	ctxlog.FromContext(ctx).Debug("Publishing rows.", "event", p.opts.Event, "trace", trace, "rows", len(rows))
	p.emit(p.opts.Event, p.NewBatch(trace, rows))
	return nil
}

// Close disconnects the socket.
func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Disconnect()
	}
	return nil
}
