package protocol

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vlgtrace/internal/runstate"
)

type interruptCall struct {
	final bool
	// commands written before the callback ran
	written string
}

func newTestDecoder(max int) (*Decoder, *runstate.State, *bytes.Buffer, *[]interruptCall) {
	state := runstate.New(time.Now())
	cmds := &bytes.Buffer{}
	calls := &[]interruptCall{}
	dec := NewDecoder(state, cmds, func(ctx context.Context, final bool) error {
		*calls = append(*calls, interruptCall{final: final, written: cmds.String()})
		return nil
	}, max)
	return dec, state, cmds, calls
}

func TestDecoder_FinalInterrupt(t *testing.T) {
	dec, state, cmds, calls := newTestDecoder(1)
	ctx := context.Background()

	for _, l := range []string{"@::trk::m 5", "@::mon::m 0b1", "@::int::m 100"} {
		require.NoError(t, dec.HandleLine(ctx, l))
	}

	require.Len(t, *calls, 1)
	assert.True(t, (*calls)[0].final)
	assert.Empty(t, (*calls)[0].written, "callback must complete before the command is written")
	assert.Equal(t, "$finish\n", cmds.String())
	assert.EqualValues(t, 1, state.LogicalTime())
	assert.True(t, dec.Finished())
	assert.Equal(t, [][]string{{"1", "0b1"}}, state.Snapshot().Rows["m"])
}

func TestDecoder_ContinueUntilLimit(t *testing.T) {
	dec, state, cmds, calls := newTestDecoder(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, dec.HandleLine(ctx, "@::int::main 100"))
	}

	assert.Equal(t, "cont\ncont\n$finish\n", cmds.String())
	require.Len(t, *calls, 3)
	assert.False(t, (*calls)[0].final)
	assert.False(t, (*calls)[1].final)
	assert.True(t, (*calls)[2].final)
	assert.Equal(t, 3, state.InterruptCount())
}

func TestDecoder_UnlimitedInterrupts(t *testing.T) {
	dec, _, cmds, _ := newTestDecoder(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, dec.HandleLine(context.Background(), "@::int::main 100"))
	}
	assert.Equal(t, strings.Repeat("cont\n", 5), cmds.String())
	assert.False(t, dec.Finished())
}

func TestDecoder_FreeOutputGating(t *testing.T) {
	dec, state, _, _ := newTestDecoder(0)
	ctx := context.Background()

	lines := []string{
		"hello world",
		"@::trk::m 1",
		"@::ost::m",
		"hello world",
		"@::oen::m",
		"hello world",
	}
	for _, l := range lines {
		require.NoError(t, dec.HandleLine(ctx, l))
	}

	out := state.Snapshot().Output
	require.Len(t, out, 1)
	assert.Equal(t, runstate.OutputLine{Time: 1, Text: "hello world"}, out[0])
}

func TestDecoder_HeaderAndValues(t *testing.T) {
	dec, state, _, _ := newTestDecoder(0)
	ctx := context.Background()

	require.NoError(t, dec.HandleLine(ctx, "@::mod::top clk[b] <@@> data[H]"))
	require.NoError(t, dec.HandleLine(ctx, "@::trk::top 1"))
	require.NoError(t, dec.HandleLine(ctx, "@::mon::top 1 <@@> FF"))

	assert.Equal(t, [][]string{
		{"@time", "clk[b]", "data[H]"},
		{"1", "1", "FF"},
	}, state.Snapshot().Rows["top"])
}

func TestDecoder_IgnoresUnknownAndMalformed(t *testing.T) {
	dec, state, cmds, calls := newTestDecoder(0)
	ctx := context.Background()

	for _, l := range []string{"@::zzz::m 1", "@::", "@::mon", "@::::m x"} {
		require.NoError(t, dec.HandleLine(ctx, l))
	}

	snap := state.Snapshot()
	assert.Empty(t, snap.Rows)
	assert.Empty(t, snap.Output)
	assert.Empty(t, cmds.String())
	assert.Empty(t, *calls)
}

func TestDecoder_FeedSplitsChunks(t *testing.T) {
	dec, state, _, _ := newTestDecoder(0)
	ctx := context.Background()

	dec.Feed(ctx, []byte("@::trk::m 1\r\n@::mo"))
	dec.Feed(ctx, []byte("n::m 7\n@::tr"))
	assert.EqualValues(t, 1, state.LogicalTime())
	assert.Len(t, state.Snapshot().Rows["m"], 1)

	dec.Feed(ctx, []byte("k::m 2\n"))
	assert.EqualValues(t, 2, state.LogicalTime())
}

func TestDecoder_RunHandlesTrailingLine(t *testing.T) {
	dec, state, _, _ := newTestDecoder(0)
	input := "@::ost::_ \nfirst\n@::oen::_ \n@::trk::m 1\n@::trk::m 2"

	err := dec.Run(context.Background(), iotest.OneByteReader(strings.NewReader(input)))
	require.NoError(t, err)
	assert.EqualValues(t, 2, state.LogicalTime())

	out := state.Snapshot().Output
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Text)
}

func TestDecoder_RunStopsOnCancel(t *testing.T) {
	dec, _, _, _ := newTestDecoder(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dec.Run(ctx, strings.NewReader("@::trk::m 1\n"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecoder_RunReportsReadError(t *testing.T) {
	dec, _, _, _ := newTestDecoder(0)
	boom := errors.New("boom")

	err := dec.Run(context.Background(), iotest.ErrReader(boom))
	require.ErrorIs(t, err, boom)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestDecoder_CommandWriteFailure(t *testing.T) {
	state := runstate.New(time.Now())
	dec := NewDecoder(state, failingWriter{}, nil, 0)

	err := dec.HandleLine(context.Background(), "@::int::main 100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cont")
	assert.Equal(t, 1, state.InterruptCount())
}

func TestParseLine(t *testing.T) {
	line, ok := ParseLine("@::mon::m 1 <@@> 2")
	require.True(t, ok)
	assert.Equal(t, Line{Kind: KindValues, Trace: "m", Payload: "1 <@@> 2"}, line)
	assert.Equal(t, []string{"1", "2"}, line.Columns())

	line, ok = ParseLine("@::ost::_ ")
	require.True(t, ok)
	assert.Equal(t, KindOutputStart, line.Kind)
	assert.Equal(t, "_", line.Trace)

	assert.Equal(t, "@::int::main 100", Format(KindInterrupt, "main", "100"))
	assert.Equal(t, "@::oen::_", Format(KindOutputEnd, "_", ""))
}
