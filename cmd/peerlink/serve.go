package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-peerlink/pkg/peerlink"
)

func newServeCmd(a *app) *cobra.Command {
	var announce bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept peer sessions until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("announce") {
				a.cfg.Announce.Enabled = announce
			}
			node, err := a.node()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.log.WithField("version", peerlink.Version).Infof("listening on %s", a.cfg.ServerAddr())
			if err := node.Run(ctx); err != nil {
				return err
			}
			a.log.Info("shut down")
			return nil
		},
	}
	cmd.Flags().BoolVar(&announce, "announce", false, "announce this node over SSDP")
	return cmd
}
