package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-peerlink/pkg/peerlink"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), peerlink.VersionInfo())
		},
	}
}
