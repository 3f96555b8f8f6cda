package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-peerlink/pkg/peerlink"
)

func newPeersCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Search for nodes announcing the session service over SSDP",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.nodeOptions()
			opts.SearchTimeout = timeout
			node, err := peerlink.New(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
			defer cancel()

			peers, err := node.FindPeers(ctx)
			if err != nil {
				return err
			}
			for _, p := range peers {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.IP, p.Location, p.Server)
			}
			a.log.Infof("found %d peers", len(peers))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to wait for responses")
	return cmd
}
