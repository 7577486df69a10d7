package main

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"
)

func newInjectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inject [events...]",
		Short: "Send events to a running intaked, one datagram each",
		Long:  "Send each argument as one event. Without arguments every stdin line is sent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: c.cfg.SocketPath, Net: "unixgram"})
			if err != nil {
				return fmt.Errorf("dial %s: %w", c.cfg.SocketPath, err)
			}
			defer conn.Close()

			var n int
			if len(args) > 0 {
				n, err = injectAll(conn, args)
			} else {
				n, err = injectLines(conn, cmd.InOrStdin(), c.cfg.MaxMsgSize)
			}
			c.log.Debug().Int("events", n).Str("socket", c.cfg.SocketPath).Msg("injected")
			return err
		},
	}
}

func injectAll(w io.Writer, events []string) (int, error) {
	for i, ev := range events {
		if _, err := w.Write([]byte(ev)); err != nil {
			return i, fmt.Errorf("send event %d: %w", i+1, err)
		}
	}
	return len(events), nil
}

// injectLines sends every non-empty line of r. Lines longer than maxSize fail
// the scan; the extra byte leaves room for the newline of a maxSize line.
func injectLines(w io.Writer, r io.Reader, maxSize int) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(4096, maxSize+1)), maxSize+1)
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if _, err := w.Write(line); err != nil {
			return n, fmt.Errorf("send line %d: %w", n+1, err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read events: %w", err)
	}
	return n, nil
}
