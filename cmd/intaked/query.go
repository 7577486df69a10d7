package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/intake/pkg/framed"
	"github.com/bft-labs/intake/pkg/log"
	"github.com/bft-labs/intake/pkg/store"
)

func newQueryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "query <message>",
		Short: "Send one request to the store and print its reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.StoreSocket == "" {
				return fmt.Errorf("store-socket is required")
			}
			logger := log.NewZerologAdapterWithLogger(c.log)

			ch := framed.New(c.cfg.StoreSocket,
				framed.WithMaxMsgSize(c.cfg.StoreMaxMsgSize),
				framed.WithDialTimeout(c.cfg.StoreTimeout),
				framed.WithWriteTimeout(c.cfg.StoreTimeout),
				framed.WithLogger(logger),
			)
			defer ch.Close()

			client := store.NewClient(ch, store.Config{Timeout: c.cfg.StoreTimeout}, logger)
			reply, err := client.Query(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if reply.Payload == "" {
				fmt.Fprintln(cmd.OutOrStdout(), reply.Status)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", reply.Status, reply.Payload)
			}
			return reply.Err()
		},
	}
}
