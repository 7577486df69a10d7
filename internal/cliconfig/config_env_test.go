package cliconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"INTAKED_SOCKET_PATH":        "/env/q",
				"INTAKED_MAX_MSG_SIZE":       "1024",
				"INTAKED_RECV_BUFFER_FLOOR":  "65536",
				"INTAKED_QUEUE_CAPACITY":     "32",
				"INTAKED_WORKERS":            "3",
				"INTAKED_RETRY_INTERVAL":     "2ms",
				"INTAKED_OVERFLOW_PATH":      "/env/flood.log",
				"INTAKED_DEGRADE_FILE":       "/env/degraded",
				"INTAKED_STORE_SOCKET":       "/env/store",
				"INTAKED_STORE_MAX_MSG_SIZE": "512",
				"INTAKED_STORE_TIMEOUT":      "1s",
				"INTAKED_METRICS_ADDR":       ":9000",
				"INTAKED_LOG_LEVEL":          "error",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				SocketPath:      "/env/q",
				MaxMsgSize:      1024,
				RecvBufferFloor: 65536,
				QueueCapacity:   32,
				Workers:         3,
				RetryInterval:   2 * time.Millisecond,
				OverflowPath:    "/env/flood.log",
				DegradeFile:     "/env/degraded",
				StoreSocket:     "/env/store",
				StoreMaxMsgSize: 512,
				StoreTimeout:    time.Second,
				MetricsAddr:     ":9000",
				LogLevel:        "error",
			},
			wantErr: false,
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"INTAKED_SOCKET_PATH": "/env/q",
				"INTAKED_WORKERS":     "9",
			},
			changed: map[string]bool{"socket-path": true},
			initial: Config{
				SocketPath: "/flag/q",
			},
			expected: Config{
				SocketPath: "/flag/q",
				Workers:    9,
			},
			wantErr: false,
		},
		{
			name: "ignores non-positive ints",
			envVars: map[string]string{
				"INTAKED_QUEUE_CAPACITY": "0",
			},
			changed:  map[string]bool{},
			initial:  Config{QueueCapacity: 5},
			expected: Config{QueueCapacity: 5},
			wantErr:  false,
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"INTAKED_RETRY_INTERVAL": "not-a-duration",
			},
			changed: map[string]bool{},
			initial: Config{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"INTAKED_WORKERS": "many",
			},
			changed: map[string]bool{},
			initial: Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	fileConf := FileConfig{
		SocketPath:    "/file/q",
		StoreSocket:   "/file/store",
		QueueCapacity: 11,
	}

	t.Setenv("INTAKED_SOCKET_PATH", "/env/q")
	t.Setenv("INTAKED_STORE_SOCKET", "/env/store")
	t.Setenv("INTAKED_LOG_LEVEL", "debug")

	changed := map[string]bool{
		"socket-path": true,
	}

	cfg := Config{
		SocketPath: "/cli/q",
	}

	require.NoError(t, ApplyFileConfig(&cfg, fileConf, changed))
	require.NoError(t, ApplyEnvConfig(&cfg, changed))

	assert.Equal(t, "/cli/q", cfg.SocketPath, "CLI should win")
	assert.Equal(t, "/env/store", cfg.StoreSocket, "env should override file")
	assert.Equal(t, "debug", cfg.LogLevel, "env should set")
	assert.Equal(t, 11, cfg.QueueCapacity, "file should set")
}
