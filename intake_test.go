package intake_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/intake"
	"github.com/bft-labs/intake/internal/domain"
	core "github.com/bft-labs/intake/pkg/intake"
)

func TestRun_StopsOnCancel(t *testing.T) {
	dir, err := os.MkdirTemp("", "run")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := intake.DefaultConfig()
	cfg.SocketPath = filepath.Join(dir, "q")
	cfg.OverflowPath = ""

	got := make(chan string, 1)
	handler := core.HandlerFunc(func(_ context.Context, ev domain.Event) error {
		got <- ev.String()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- intake.Run(ctx, cfg, core.WithHandler(handler)) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.SocketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	c, err := net.Dial("unixgram", cfg.SocketPath)
	require.NoError(t, err)
	_, err = c.Write([]byte("hello"))
	require.NoError(t, err)
	c.Close()

	select {
	case ev := <-got:
		assert.Equal(t, "hello", ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not handled")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := intake.DefaultConfig()
	cfg.SocketPath = ""
	err := intake.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
