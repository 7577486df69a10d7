package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/intake/pkg/log"
)

// Logger returns a console logger on stderr at level.
func Logger(level string) zerolog.Logger {
	return log.NewConsoleLogger(os.Stderr, level)
}
