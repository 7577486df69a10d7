package intake

import (
	"fmt"
	"time"

	"github.com/bft-labs/intake/internal/app"
	"github.com/bft-labs/intake/internal/domain"
)

// Default configuration values.
const (
	DefaultSocketPath      = "/var/run/intake/queue"
	DefaultQueueCapacity   = 4096
	DefaultWorkers         = 2
	DefaultOverflowPath    = "/var/log/intake/flooded.log"
	DefaultStoreTimeout    = 5 * time.Second
	DefaultRecvBufferFloor = domain.DefaultMaxMsgSize
)

// Config holds the configuration of an Intake instance.
type Config struct {
	// SocketPath is where the datagram socket is bound.
	SocketPath string
	// MaxMsgSize caps datagrams and store frames alike.
	MaxMsgSize int
	// RecvBufferFloor is the minimum SO_RCVBUF of the datagram socket.
	RecvBufferFloor int
	// QueueCapacity bounds the event queue.
	QueueCapacity int
	// Workers is the number of queue consumers.
	Workers int
	// RetryInterval is the pause between push attempts on a full queue.
	RetryInterval time.Duration

	// OverflowPath receives events while degrade mode is on. Empty drops them.
	OverflowPath string
	// DegradeFile turns degrade mode on while it exists. Empty disables the watcher.
	DegradeFile string

	// StoreSocket is the backing store's unix stream socket. Empty logs events instead.
	StoreSocket string
	// StoreMaxMsgSize defaults to StoreFrameSize(MaxMsgSize) and may not be
	// smaller.
	StoreMaxMsgSize int
	// StoreTimeout bounds each store request.
	StoreTimeout time.Duration

	// MetricsAddr serves /metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr string
}

// StoreFrameSize is the store frame needed to forward a datagram of
// maxMsgSize bytes: the command prefix, the payload and the terminator.
func StoreFrameSize(maxMsgSize int) int {
	return len(app.EventCommand) + maxMsgSize + 1
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		SocketPath:      DefaultSocketPath,
		MaxMsgSize:      domain.DefaultMaxMsgSize,
		RecvBufferFloor: DefaultRecvBufferFloor,
		QueueCapacity:   DefaultQueueCapacity,
		Workers:         DefaultWorkers,
		RetryInterval:   time.Millisecond,
		OverflowPath:    DefaultOverflowPath,
		StoreTimeout:    DefaultStoreTimeout,
	}
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxMsgSize <= 0 {
		c.MaxMsgSize = domain.DefaultMaxMsgSize
	}
	if c.RecvBufferFloor <= 0 {
		c.RecvBufferFloor = c.MaxMsgSize
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Millisecond
	}
	if c.StoreMaxMsgSize <= 0 {
		c.StoreMaxMsgSize = StoreFrameSize(c.MaxMsgSize)
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
}

// Validate checks the configuration. Errors wrap domain.ErrInvalidConfig.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("%w: socket path is required", domain.ErrInvalidConfig)
	}
	if c.StoreSocket != "" && c.StoreSocket == c.SocketPath {
		return fmt.Errorf("%w: store socket and intake socket must differ", domain.ErrInvalidConfig)
	}
	if c.MaxMsgSize < 2 {
		return fmt.Errorf("%w: max message size must be at least 2", domain.ErrInvalidConfig)
	}
	if c.StoreMaxMsgSize > 0 && c.StoreMaxMsgSize < StoreFrameSize(c.MaxMsgSize) {
		return fmt.Errorf("%w: store max message size must be at least %d to forward %d-byte events",
			domain.ErrInvalidConfig, StoreFrameSize(c.MaxMsgSize), c.MaxMsgSize)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity must be positive", domain.ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive", domain.ErrInvalidConfig)
	}
	return nil
}
