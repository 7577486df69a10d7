package reactor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/intake/internal/ports"
)

type recorder struct {
	mu       sync.Mutex
	data     []string
	errs     []error
	closed   atomic.Bool
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
}

func (r *recorder) OnData(b []byte) {
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.data = append(r.data, string(b))
	r.mu.Unlock()
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) OnClose() { r.closed.Store(true) }

func (r *recorder) snapshot() ([]string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.data...), append([]error(nil), r.errs...)
}

// sockPath returns a short socket path; unix socket paths are limited to ~108 bytes.
func sockPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "rx")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s")
}

func listen(t *testing.T) (*net.UnixConn, string) {
	t.Helper()
	path := sockPath(t)
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	return conn, path
}

func dial(t *testing.T, path string) *net.UnixConn {
	t.Helper()
	c, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func shutdown(t *testing.T, l *Loop) {
	t.Helper()
	l.Stop()
	l.Walk(func(h ports.Handle) { h.Close() })
	l.RunOnce()
	require.NoError(t, l.Close())
}

func TestLoop_DeliversInArrivalOrder(t *testing.T) {
	conn, path := listen(t)
	l := New(nil)
	rec := &recorder{}
	_, err := l.RegisterReadable("events", conn, 1024, rec)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	client := dial(t, path)
	const n = 200
	for i := 0; i < n; i++ {
		_, err := client.Write([]byte(strconv.Itoa(i)))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		d, _ := rec.snapshot()
		return len(d) == n
	}, 2*time.Second, 5*time.Millisecond)

	d, _ := rec.snapshot()
	for i, v := range d {
		assert.Equal(t, strconv.Itoa(i), v)
	}

	shutdown(t, l)
	require.NoError(t, <-done)
	assert.True(t, rec.closed.Load())
}

func TestLoop_CallbacksNeverOverlap(t *testing.T) {
	connA, pathA := listen(t)
	connB, pathB := listen(t)
	l := New(nil)
	rec := &recorder{delay: time.Millisecond}
	_, err := l.RegisterReadable("a", connA, 64, rec)
	require.NoError(t, err)
	_, err = l.RegisterReadable("b", connB, 64, rec)
	require.NoError(t, err)

	go l.Run(context.Background())

	a, b := dial(t, pathA), dial(t, pathB)
	for i := 0; i < 20; i++ {
		_, _ = a.Write([]byte("a"))
		_, _ = b.Write([]byte("b"))
	}

	require.Eventually(t, func() bool {
		d, _ := rec.snapshot()
		return len(d) == 40
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, rec.overlap.Load())

	shutdown(t, l)
}

func TestLoop_OversizedDatagram(t *testing.T) {
	conn, path := listen(t)
	l := New(nil)
	rec := &recorder{}
	_, err := l.RegisterReadable("events", conn, 8, rec)
	require.NoError(t, err)
	go l.Run(context.Background())

	client := dial(t, path)
	_, err = client.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = client.Write([]byte("01234567"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		d, e := rec.snapshot()
		return len(d) == 1 && len(e) == 1
	}, 2*time.Second, 5*time.Millisecond)

	d, e := rec.snapshot()
	assert.Equal(t, "01234567", d[0])
	assert.ErrorIs(t, e[0], ErrPacketTooLarge)

	shutdown(t, l)
}

func TestLoop_StopBeforeRun(t *testing.T) {
	l := New(nil)
	l.Stop()

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not honour an earlier Stop")
	}
}

func TestLoop_RunTwice(t *testing.T) {
	l := New(nil)
	go l.Run(context.Background())
	time.Sleep(20 * time.Millisecond)

	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRunning)
	l.Stop()
}

func TestLoop_RunContextCanceled(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
}

func TestLoop_CloseRequiresClosedHandles(t *testing.T) {
	conn, _ := listen(t)
	l := New(nil)
	_, err := l.RegisterReadable("events", conn, 64, &recorder{})
	require.NoError(t, err)

	assert.ErrorIs(t, l.Close(), ErrHandlesOpen)
	assert.True(t, l.Alive())

	shutdown(t, l)
	assert.False(t, l.Alive())
	assert.NoError(t, l.Close())

	_, err = l.RegisterReadable("late", conn, 64, &recorder{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.Run(context.Background()), ErrClosed)
}

func TestLoop_RegisterValidation(t *testing.T) {
	conn, _ := listen(t)
	defer conn.Close()
	l := New(nil)

	_, err := l.RegisterReadable("nil", conn, 64, nil)
	assert.Error(t, err)
	_, err = l.RegisterReadable("zero", conn, 0, &recorder{})
	assert.Error(t, err)
}

func TestHandle_CloseIdempotent(t *testing.T) {
	conn, _ := listen(t)
	l := New(nil)
	rec := &recorder{}
	h, err := l.RegisterReadable("events", conn, 64, rec)
	require.NoError(t, err)

	h.Close()
	h.Close()
	assert.True(t, h.Closed())
	assert.Equal(t, "events", h.Name())

	l.RunOnce()
	assert.True(t, rec.closed.Load())
	assert.NoError(t, l.Close())
}
