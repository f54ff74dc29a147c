package session

import (
	"bufio"
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synopticon/telemetry-fusion/internal/clock"
)

// failingTransport fails every Connect call and is used to drive the
// reconnect-backoff scenario deterministically.
type failingTransport struct {
	mu          sync.Mutex
	connectAtNs []int64
	clk         clock.Clock
	err         error
}

func (f *failingTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectAtNs = append(f.connectAtNs, f.clk.NowNs())
	f.mu.Unlock()
	return f.err
}
func (f *failingTransport) Send(ctx context.Context, frame []byte) bool { return true }
func (f *failingTransport) Receive(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (f *failingTransport) Close() error { return nil }

func (f *failingTransport) attemptTimesMs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.connectAtNs))
	for i, ns := range f.connectAtNs {
		out[i] = ns / int64(time.Millisecond)
	}
	return out
}

var errBoom = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestReconnectBackoffScenario6(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	transport := &failingTransport{clk: clk, err: errBoom}
	cfg := Config{
		Reconnect: ReconnectConfig{
			Enabled:     true,
			Base:        100 * time.Millisecond,
			Max:         1 * time.Second,
			Backoff:     2.0,
			AttemptsMax: 4,
		},
		ConnectTimeout: time.Second,
	}
	sess := New("test", cfg, transport, clk, zerolog.Nop())

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		sess.Connect(ctx)
		close(done)
	}()

	// Drive the virtual clock forward; each failed attempt schedules the
	// next reconnect timer synchronously inside onTransportFail before
	// attemptConnect returns, so advancing past each deadline in sequence
	// deterministically replays the whole schedule.
	deadlines := []time.Duration{0, 100 * time.Millisecond, 300 * time.Millisecond, 700 * time.Millisecond, 1500 * time.Millisecond}
	for i := 1; i < len(deadlines); i++ {
		clk.Advance(deadlines[i] - deadlines[i-1])
		time.Sleep(5 * time.Millisecond) // let goroutines observe the advance
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, StateFailed, sess.State())
	times := transport.attemptTimesMs()
	require.Len(t, times, 5)
	expected := []int64{0, 100, 300, 700, 1500}
	for i, want := range expected {
		assert.InDelta(t, want, times[i], 1)
	}

	select {
	case <-done:
	default:
		t.Fatal("Connect goroutine should have returned")
	}
}

func TestConnectIsNoOpWhenAlreadyConnected(t *testing.T) {
	clk := clock.NewVirtualClock(0, 0)
	transport := &okTransport{}
	sess := New("test", Config{}, transport, clk, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess.Connect(ctx)
	assert.Equal(t, StateConnected, sess.State())
	sess.Connect(ctx) // no-op
	assert.Equal(t, StateConnected, sess.State())
	assert.Equal(t, 1, transport.connects)
}

type okTransport struct {
	connects int
}

func (t *okTransport) Connect(ctx context.Context) error { t.connects++; return nil }
func (t *okTransport) Send(ctx context.Context, frame []byte) bool { return true }
func (t *okTransport) Receive(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (t *okTransport) Close() error { return nil }

func TestLineJSONCodecRoundTrip(t *testing.T) {
	var codec LineJSONCodec
	framed := codec.Encode([]byte(`{"a":1}`))
	r := bufio.NewReader(bytes.NewReader(framed))
	out, err := codec.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))
}

func TestLengthPrefixedCodecRoundTrip(t *testing.T) {
	codec := &LengthPrefixedCodec{Version: 1}
	framed := codec.Encode([]byte("hello"))
	r := bufio.NewReader(bytes.NewReader(framed))
	out, err := codec.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, framed, out)
	assert.Equal(t, "hello", string(out[simConnectHeaderSize:]))
}

func TestLengthPrefixedCodecRejectsOversizedFrame(t *testing.T) {
	header := make([]byte, simConnectHeaderSize)
	// size field claims far more than MaxFrameBytes.
	header[0], header[1], header[2], header[3] = 0xff, 0xff, 0xff, 0x7f
	r := bufio.NewReader(bytes.NewReader(header))
	codec := &LengthPrefixedCodec{}
	_, err := codec.Decode(r)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
