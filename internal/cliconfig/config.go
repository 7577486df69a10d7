package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/pkg/intake"
)

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "info"

// Config holds CLI configuration for intaked.
type Config struct {
	SocketPath      string
	MaxMsgSize      int
	RecvBufferFloor int
	QueueCapacity   int
	Workers         int
	RetryInterval   time.Duration

	OverflowPath string
	DegradeFile  string

	StoreSocket     string
	StoreMaxMsgSize int
	StoreTimeout    time.Duration

	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		SocketPath:      intake.DefaultSocketPath,
		MaxMsgSize:      domain.DefaultMaxMsgSize,
		RecvBufferFloor: intake.DefaultRecvBufferFloor,
		QueueCapacity:   intake.DefaultQueueCapacity,
		Workers:         intake.DefaultWorkers,
		RetryInterval:   time.Millisecond,
		OverflowPath:    intake.DefaultOverflowPath,
		StoreTimeout:    intake.DefaultStoreTimeout,
		LogLevel:        DefaultLogLevel,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket-path is required")
	}
	if c.StoreMaxMsgSize <= 0 {
		c.StoreMaxMsgSize = intake.StoreFrameSize(c.MaxMsgSize)
	}
	if c.RecvBufferFloor <= 0 {
		c.RecvBufferFloor = c.MaxMsgSize
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}

	return c.Intake().Validate()
}

// Intake converts the CLI configuration to the library configuration.
func (c Config) Intake() intake.Config {
	return intake.Config{
		SocketPath:      c.SocketPath,
		MaxMsgSize:      c.MaxMsgSize,
		RecvBufferFloor: c.RecvBufferFloor,
		QueueCapacity:   c.QueueCapacity,
		Workers:         c.Workers,
		RetryInterval:   c.RetryInterval,
		OverflowPath:    c.OverflowPath,
		DegradeFile:     c.DegradeFile,
		StoreSocket:     c.StoreSocket,
		StoreMaxMsgSize: c.StoreMaxMsgSize,
		StoreTimeout:    c.StoreTimeout,
		MetricsAddr:     c.MetricsAddr,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
