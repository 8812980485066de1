package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event   string
	payload any
}

func TestPublish_EmitsTaggedBatch(t *testing.T) {
	run := uuid.MustParse("6f1c2b8e-3a4d-4e5f-9a0b-1c2d3e4f5a6b")
	var got []emitted
	p := newPublisher(Options{Run: run, Index: 3}, func(event string, payload any) {
		got = append(got, emitted{event, payload})
	})

	rows := [][]string{{"@time", "clk[b]"}, {"1", "0"}}
	require.NoError(t, p.Publish(context.Background(), "main", rows))
	require.NoError(t, p.Publish(context.Background(), "main", nil))

	require.Len(t, got, 1, "empty batches are not emitted")
	assert.Equal(t, "trace", got[0].event)

	data, err := json.Marshal(got[0].payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"run": "6f1c2b8e-3a4d-4e5f-9a0b-1c2d3e4f5a6b",
		"index": 3,
		"trace": "main",
		"rows": [["@time", "clk[b]"], ["1", "0"]]
	}`, string(data))
}

func TestPublish_CustomEvent(t *testing.T) {
	var event string
	p := newPublisher(Options{Event: "vlg"}, func(e string, _ any) { event = e })
	require.NoError(t, p.Publish(context.Background(), "sub", [][]string{{"1"}}))
	assert.Equal(t, "vlg", event)
	assert.NoError(t, p.Close())
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), Options{URL: "://bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse URL")
}

func TestConnect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Nothing listens on this port; either the dial fails or the context expires.
	_, err := Connect(ctx, Options{URL: "http://127.0.0.1:1", Namespace: "/"})
	require.Error(t, err)
}
