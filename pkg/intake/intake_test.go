package intake

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/intake/internal/domain"
)

func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "in")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func testConfig(t *testing.T) Config {
	dir := shortDir(t)
	cfg := DefaultConfig()
	cfg.SocketPath = filepath.Join(dir, "queue")
	cfg.OverflowPath = filepath.Join(dir, "logs", "flooded.log")
	cfg.QueueCapacity = 16
	cfg.Workers = 1
	return cfg
}

type sink struct {
	mu     sync.Mutex
	events []string
}

func (s *sink) Handle(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev.String())
	return nil
}

func (s *sink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type recordingHandler struct {
	mu      sync.Mutex
	changes []StateChangeEvent
	handled int
}

func (r *recordingHandler) OnStateChange(ev StateChangeEvent) {
	r.mu.Lock()
	r.changes = append(r.changes, ev)
	r.mu.Unlock()
}

func (r *recordingHandler) OnEventHandled(EventHandledEvent) {
	r.mu.Lock()
	r.handled++
	r.mu.Unlock()
}

func (r *recordingHandler) OnEventError(EventErrorEvent) {}

func send(t *testing.T, path string, msgs ...string) {
	t.Helper()
	c, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	defer c.Close()
	for _, m := range msgs {
		_, err := c.Write([]byte(m))
		require.NoError(t, err)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			var sum float64
			for _, m := range mf.GetMetric() {
				sum += m.GetCounter().GetValue()
			}
			return sum
		}
	}
	return 0
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SocketPath = ""
	_, err := New(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.StoreSocket = cfg.SocketPath
	_, err = New(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestIntake_StartStop(t *testing.T) {
	cfg := testConfig(t)
	h := &sink{}
	rec := &recordingHandler{}
	in, err := New(cfg, WithHandler(h), WithEventHandler(rec))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, in.Status())

	require.NoError(t, in.Start(context.Background()))
	assert.Equal(t, StateRunning, in.Status())
	assert.ErrorIs(t, in.Start(context.Background()), domain.ErrAlreadyRunning)

	send(t, cfg.SocketPath, "one", "two", "three")
	require.Eventually(t, func() bool { return len(h.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, h.snapshot())

	require.NoError(t, in.Stop())
	assert.Equal(t, StateStopped, in.Status())
	assert.NoFileExists(t, cfg.SocketPath)
	assert.False(t, in.Degraded(), "shutdown must restore the degrade flag")
	assert.ErrorIs(t, in.Stop(), domain.ErrNotRunning)

	rec.mu.Lock()
	var states []State
	for _, c := range rec.changes {
		states = append(states, c.Current)
	}
	handled := rec.handled
	rec.mu.Unlock()
	assert.Equal(t, []State{StateStarting, StateRunning, StateStopping, StateStopped}, states)
	assert.Equal(t, 3, handled)

	// restart binds a fresh socket
	require.NoError(t, in.Start(context.Background()))
	send(t, cfg.SocketPath, "four")
	require.Eventually(t, func() bool { return len(h.snapshot()) == 4 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, in.Stop())
}

func TestIntake_StartFailsWhenSocketCannotBind(t *testing.T) {
	cfg := testConfig(t)
	cfg.SocketPath = filepath.Join(shortDir(t), "missing", "queue")
	in, err := New(cfg, WithHandler(&sink{}))
	require.NoError(t, err)

	err = in.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.Equal(t, StateCrashed, in.Status())
}

func TestIntake_DegradeWritesOverflowFile(t *testing.T) {
	cfg := testConfig(t)
	h := &sink{}
	in, err := New(cfg, WithHandler(h))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))

	in.SetDegraded(true)
	send(t, cfg.SocketPath, "flood-1", "flood-2")
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(cfg.OverflowPath)
		return err == nil && strings.Count(string(b), "\n") == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, in.Stop())
	assert.True(t, in.Degraded())
	assert.Empty(t, h.snapshot())

	b, err := os.ReadFile(cfg.OverflowPath)
	require.NoError(t, err)
	assert.Equal(t, "flood-1\nflood-2\n", string(b))
}

func TestIntake_DegradeFileWatcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.DegradeFile = filepath.Join(filepath.Dir(cfg.SocketPath), "degraded")
	in, err := New(cfg, WithHandler(&sink{}))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	assert.False(t, in.Degraded())
	require.NoError(t, os.WriteFile(cfg.DegradeFile, nil, 0o600))
	require.Eventually(t, in.Degraded, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.Remove(cfg.DegradeFile))
	require.Eventually(t, func() bool { return !in.Degraded() }, 2*time.Second, 10*time.Millisecond)
}

// blockingHandler holds every event until release is closed.
type blockingHandler struct {
	sink
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (b *blockingHandler) Handle(ctx context.Context, ev domain.Event) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.sink.Handle(ctx, ev)
}

func TestIntake_StopReleasesStalledIngestion(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueueCapacity = 1
	reg := prometheus.NewRegistry()
	h := &blockingHandler{started: make(chan struct{}), release: make(chan struct{})}
	in, err := New(cfg, WithHandler(h), WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))

	// the worker holds "1", the queue holds "2", "3" stalls the reactor
	send(t, cfg.SocketPath, "1")
	<-h.started
	send(t, cfg.SocketPath, "2", "3")
	require.Eventually(t, func() bool {
		return counterValue(t, reg, "intake_endpoint_backpressure_retries_total") > 0
	}, 2*time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- in.Stop() }()

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(cfg.OverflowPath)
		return err == nil && string(b) == "3\n"
	}, 2*time.Second, 5*time.Millisecond)
	close(h.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, []string{"1", "2"}, h.snapshot())
	assert.Equal(t, 1.0, counterValue(t, reg, "intake_endpoint_events_overflowed_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "intake_endpoint_events_queued_total"))
}

// storePeer answers "ok" to every frame on path and reports the commands.
func storePeer(t *testing.T, path string) <-chan string {
	t.Helper()
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 4)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		for {
			var hdr [domain.HeaderSize]byte
			if _, err := io.ReadFull(c, hdr[:]); err != nil {
				return
			}
			body := make([]byte, domain.DecodeHeader(hdr[:]))
			if _, err := io.ReadFull(c, body); err != nil {
				return
			}
			got <- string(domain.TrimPayload(body))
			reply, _ := domain.EncodeFrame("ok", 64)
			if _, err := c.Write(reply); err != nil {
				return
			}
		}
	}()
	return got
}

func TestIntake_ForwardsToStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreSocket = filepath.Join(filepath.Dir(cfg.SocketPath), "store")
	got := storePeer(t, cfg.StoreSocket)

	in, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	send(t, cfg.SocketPath, "agent 001 alert")
	select {
	case cmd := <-got:
		assert.Equal(t, "event agent 001 alert", cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("store never received the event")
	}
}

func TestIntake_ForwardsLargestEvent(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxMsgSize = 64
	cfg.StoreSocket = filepath.Join(filepath.Dir(cfg.SocketPath), "store")
	got := storePeer(t, cfg.StoreSocket)

	reg := prometheus.NewRegistry()
	in, err := New(cfg, WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	payload := strings.Repeat("a", cfg.MaxMsgSize)
	send(t, cfg.SocketPath, payload)
	select {
	case cmd := <-got:
		assert.Equal(t, "event "+payload, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("store never received the event")
	}
}

func TestConfig_StoreFrameSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMsgSize = 64
	cfg.SetDefaults()
	assert.Equal(t, 71, cfg.StoreMaxMsgSize)
	require.NoError(t, cfg.Validate())

	cfg.StoreMaxMsgSize = 64
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)

	cfg.StoreMaxMsgSize = 71
	assert.NoError(t, cfg.Validate())
}

func TestIntake_MetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"
	reg := prometheus.NewRegistry()
	in, err := New(cfg, WithHandler(&sink{}), WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	send(t, cfg.SocketPath, "x")
	require.Eventually(t, func() bool {
		return counterValue(t, reg, "intake_endpoint_events_queued_total") == 1
	}, 2*time.Second, 10*time.Millisecond)

	addr := in.MetricsAddr()
	require.NotEmpty(t, addr)
	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "intake_endpoint_events_received_total 1")
	assert.Contains(t, string(body), "intake_queue_depth")
}
