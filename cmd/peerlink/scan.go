package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		all      bool
		describe bool
		cidr     string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe every host of the local subnet for the service port",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cidr != "" {
				a.cfg.Scan.CIDR = cidr
			}
			node, err := a.node()
			if err != nil {
				return err
			}

			res, err := node.CheckPorts(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Infof("scanned %d hosts, %d open", res.Len(), len(res.Open()))

			out := cmd.OutOrStdout()
			if !describe {
				hosts := res.Open()
				if all {
					hosts = res.Hosts()
				}
				for _, ip := range hosts {
					if all {
						fmt.Fprintf(out, "%s\t%v\n", ip, res[ip])
					} else {
						fmt.Fprintln(out, ip)
					}
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IP\tHOSTNAME\tMAC\tVENDOR")
			for _, p := range node.Describe(cmd.Context(), res.Open()) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.IP, dash(p.Hostname), dash(p.MAC), dash(p.Vendor))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print every probed host with its outcome")
	cmd.Flags().BoolVar(&describe, "describe", false, "resolve hostname, MAC and vendor of open hosts")
	cmd.Flags().StringVar(&cidr, "cidr", "", "scan this network instead of the local interface")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
