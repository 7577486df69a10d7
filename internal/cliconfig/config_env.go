package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (INTAKED_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("socket-path", os.Getenv("INTAKED_SOCKET_PATH"), &cfg.SocketPath)
	s.setString("overflow-path", os.Getenv("INTAKED_OVERFLOW_PATH"), &cfg.OverflowPath)
	s.setString("degrade-file", os.Getenv("INTAKED_DEGRADE_FILE"), &cfg.DegradeFile)
	s.setString("store-socket", os.Getenv("INTAKED_STORE_SOCKET"), &cfg.StoreSocket)
	s.setString("metrics-addr", os.Getenv("INTAKED_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("INTAKED_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("retry-interval", os.Getenv("INTAKED_RETRY_INTERVAL"), &cfg.RetryInterval); err != nil {
		return err
	}
	if err := s.setDuration("store-timeout", os.Getenv("INTAKED_STORE_TIMEOUT"), &cfg.StoreTimeout); err != nil {
		return err
	}

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"max-msg-size", "INTAKED_MAX_MSG_SIZE", &cfg.MaxMsgSize},
		{"recv-buffer-floor", "INTAKED_RECV_BUFFER_FLOOR", &cfg.RecvBufferFloor},
		{"queue-capacity", "INTAKED_QUEUE_CAPACITY", &cfg.QueueCapacity},
		{"workers", "INTAKED_WORKERS", &cfg.Workers},
		{"store-max-msg-size", "INTAKED_STORE_MAX_MSG_SIZE", &cfg.StoreMaxMsgSize},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	return nil
}
