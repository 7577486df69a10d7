package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	SocketPath      string `toml:"socket_path"`
	MaxMsgSize      int    `toml:"max_msg_size"`
	RecvBufferFloor int    `toml:"recv_buffer_floor"`
	QueueCapacity   int    `toml:"queue_capacity"`
	Workers         int    `toml:"workers"`
	RetryInterval   string `toml:"retry_interval"`
	OverflowPath    string `toml:"overflow_path"`
	DegradeFile     string `toml:"degrade_file"`
	StoreSocket     string `toml:"store_socket"`
	StoreMaxMsgSize int    `toml:"store_max_msg_size"`
	StoreTimeout    string `toml:"store_timeout"`
	MetricsAddr     string `toml:"metrics_addr"`
	LogLevel        string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.intaked/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".intaked", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("socket-path", fc.SocketPath, &cfg.SocketPath)
	s.setString("overflow-path", fc.OverflowPath, &cfg.OverflowPath)
	s.setString("degrade-file", fc.DegradeFile, &cfg.DegradeFile)
	s.setString("store-socket", fc.StoreSocket, &cfg.StoreSocket)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("retry-interval", fc.RetryInterval, &cfg.RetryInterval); err != nil {
		return err
	}
	if err := s.setDuration("store-timeout", fc.StoreTimeout, &cfg.StoreTimeout); err != nil {
		return err
	}

	s.setInt("max-msg-size", fc.MaxMsgSize, &cfg.MaxMsgSize)
	s.setInt("recv-buffer-floor", fc.RecvBufferFloor, &cfg.RecvBufferFloor)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setInt("workers", fc.Workers, &cfg.Workers)
	s.setInt("store-max-msg-size", fc.StoreMaxMsgSize, &cfg.StoreMaxMsgSize)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
