package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/intake/internal/cliconfig"
	"github.com/bft-labs/intake/pkg/intake"
	"github.com/bft-labs/intake/pkg/log"
)

var longHelp = strings.TrimSpace(`
intaked receives events as datagrams on a unix socket and forwards them to a
backing store over a framed stream connection.

Highlights:
  - A bounded queue absorbs bursts; a full queue holds the socket back instead
    of dropping events.
  - Degrade mode (a sentinel file or SIGUSR1/SIGUSR2) diverts events to an
    overflow log so the producers never stall.
  - Configure via file (~/.intaked/config.toml), INTAKED_* env, or flags.
`)

var exampleUsage = strings.TrimSpace(`
  intaked --socket-path /var/run/intake/queue --store-socket /var/run/store/sock
  intaked --config /etc/intaked.toml --metrics-addr 127.0.0.1:9464
  echo "agent 001 alert" | intaked inject
  intaked query "status"
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the configuration shared by every subcommand.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

// load applies the config file, then INTAKED_* env, under the flags already
// parsed into c.cfg, and validates the result.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.log = cliconfig.Logger(c.cfg.LogLevel)
	return nil
}

func main() {
	c := &cli{
		cfg: cliconfig.DefaultConfig(),
		log: cliconfig.Logger(cliconfig.DefaultLogLevel),
	}

	root := &cobra.Command{
		Use:           "intaked",
		Short:         "Receive events on a unix datagram socket and forward them to the store",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.intaked/config.toml)")
	f.StringVar(&c.cfg.SocketPath, "socket-path", c.cfg.SocketPath, "datagram socket to receive events on")
	f.IntVar(&c.cfg.MaxMsgSize, "max-msg-size", c.cfg.MaxMsgSize, "largest accepted message in bytes")
	f.IntVar(&c.cfg.RecvBufferFloor, "recv-buffer-floor", c.cfg.RecvBufferFloor, "minimum socket receive buffer in bytes")
	f.IntVar(&c.cfg.QueueCapacity, "queue-capacity", c.cfg.QueueCapacity, "events held between the socket and the workers")
	f.IntVar(&c.cfg.Workers, "workers", c.cfg.Workers, "number of forwarding workers")
	f.DurationVar(&c.cfg.RetryInterval, "retry-interval", c.cfg.RetryInterval, "pause between push attempts on a full queue")
	f.StringVar(&c.cfg.OverflowPath, "overflow-path", c.cfg.OverflowPath, "file receiving events in degrade mode (empty drops them)")
	f.StringVar(&c.cfg.DegradeFile, "degrade-file", c.cfg.DegradeFile, "degrade mode is on while this file exists")
	f.StringVar(&c.cfg.StoreSocket, "store-socket", c.cfg.StoreSocket, "backing store stream socket (empty only logs events)")
	f.IntVar(&c.cfg.StoreMaxMsgSize, "store-max-msg-size", c.cfg.StoreMaxMsgSize, "largest store frame in bytes (defaults to max-msg-size plus the event prefix and terminator)")
	f.DurationVar(&c.cfg.StoreTimeout, "store-timeout", c.cfg.StoreTimeout, "timeout of one store request")
	f.StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "serve Prometheus metrics on this address")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(newQueryCmd(c), newInjectCmd(c))

	if err := root.Execute(); err != nil {
		c.log.Error().Err(err).Msg("intaked")
		os.Exit(1)
	}
}

// serve runs the daemon until SIGINT/SIGTERM or a crash. SIGUSR1 turns degrade
// mode on and SIGUSR2 turns it off.
func (c *cli) serve() error {
	c.log.Info().Interface("config", c.cfg).Msg("configuration")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	in, err := intake.New(c.cfg.Intake(),
		intake.WithLogger(log.NewZerologAdapterWithLogger(c.log)),
		intake.WithRegistry(reg),
	)
	if err != nil {
		return fmt.Errorf("create intake: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	if err := in.Start(ctx); err != nil {
		return fmt.Errorf("start intake: %w", err)
	}
	if addr := in.MetricsAddr(); addr != "" {
		c.log.Info().Str("addr", addr).Msg("serving metrics")
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				in.SetDegraded(true)
				c.log.Warn().Msg("degrade mode on")
			case syscall.SIGUSR2:
				in.SetDegraded(false)
				c.log.Info().Msg("degrade mode off")
			default:
				c.log.Info().Str("signal", sig.String()).Msg("received signal, stopping...")
				break loop
			}
		case <-ticker.C:
			if in.Status() == intake.StateCrashed {
				return fmt.Errorf("intake crashed")
			}
		}
	}

	if err := in.Stop(); err != nil {
		return fmt.Errorf("stop intake: %w", err)
	}
	return nil
}
