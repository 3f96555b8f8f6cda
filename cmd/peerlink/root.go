package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/marcuoli/go-peerlink/internal/config"
	"github.com/marcuoli/go-peerlink/internal/logger"
	"github.com/marcuoli/go-peerlink/pkg/peerlink"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/server"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "peerlink",
		Short: "Local peer session node",
		Long: `peerlink accepts WebSocket sessions from peers on the local network,
finds peers by probing the local subnet, and optionally announces itself over SSDP.

Examples:
  peerlink serve
  peerlink scan --all
  peerlink scan --describe
  peerlink peers`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newScanCmd(a),
		newPeersCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	loader := config.NewLoader(a.cfgFile)
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		loader.Viper().Set("log.level", f.Value.String())
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Install(log)

	a.cfg = cfg
	a.log = log
	return nil
}

// node builds a peerlink node from the loaded configuration.
func (a *app) node() (*peerlink.Node, error) {
	return peerlink.New(a.nodeOptions())
}

func (a *app) nodeOptions() peerlink.Options {
	c := a.cfg
	sink := logger.EventSink{Log: a.log}
	return peerlink.Options{
		Server: server.Config{
			Addr:              c.ServerAddr(),
			Path:              c.Server.Path,
			HeartbeatInterval: c.Server.HeartbeatInterval,
			HandshakeTimeout:  c.Server.HandshakeTimeout,
			MaxMessageSize:    c.Server.MaxMessageSize,
		},
		Sink:             sink,
		OnSessionError:   sink.OnSessionError,
		ScanPort:         c.Scan.Port,
		ScanTimeout:      c.Scan.Timeout,
		ScanCIDR:         c.Scan.CIDR,
		MaxHosts:         c.Scan.MaxHosts,
		Announce:         c.Announce.Enabled,
		AnnounceInterval: c.Announce.Interval,
		AnnounceMaxAge:   c.Announce.MaxAge,
		DescribeTimeout:  c.Describe.Timeout,
		OUIDatabase:      c.Describe.OUIDB,
	}
}
