package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tturner/etherip/internal/config"
	"github.com/tturner/etherip/internal/logging"
	"github.com/tturner/etherip/internal/server"
)

type simFlags struct {
	serverConfig string
	listenIP     string
	listenPort   int
	target       string
	enableUDP    bool
}

func newSimCmd(root *rootFlags) *cobra.Command {
	flags := &simFlags{}
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run a simulated Logix controller",
		Long: `Run a simulated controller that answers session registration,
ListIdentity, ListServices, Read Tag, Write Tag, Multiple Service Packet
and Get Attributes All, directly or behind Unconnected Send routing to its
configured slot.

Tags come from --server-config or a --target preset. Press Ctrl+C to stop.`,
		Example: `  etherip sim --listen-ip 127.0.0.1 --listen-port 44818
  etherip sim --target controllogix --enable-udp
  etherip sim --server-config plant_sim.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.serverConfigFor(cmd)
			if err != nil {
				return err
			}
			logger, err := serverLogger(cfg, root.logLevel, root.logFile)
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSim(ctx, cfg, logger, nil)
		},
	}
	cmd.Flags().StringVar(&flags.serverConfig, "server-config", "", "Simulator config file (YAML)")
	cmd.Flags().StringVar(&flags.listenIP, "listen-ip", "0.0.0.0", "Listen IP address")
	cmd.Flags().IntVar(&flags.listenPort, "listen-port", config.DefaultPort, "Listen TCP port (0 picks a free port)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Controller preset (see 'etherip sim targets')")
	cmd.Flags().BoolVar(&flags.enableUDP, "enable-udp", false, "Answer ListIdentity on UDP as well")

	cmd.AddCommand(newSimTargetsCmd())
	cmd.AddCommand(newSimPrintDefaultCmd())
	return cmd
}

func (f *simFlags) serverConfigFor(cmd *cobra.Command) (*config.ServerConfig, error) {
	var cfg *config.ServerConfig
	if f.serverConfig != "" {
		loaded, err := config.LoadServerConfig(f.serverConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.CreateDefaultServerConfig()
		cfg.Server.ListenIP = f.listenIP
		cfg.Server.TCPPort = f.listenPort
	}
	changed := cmd.Flags().Changed
	if changed("listen-ip") {
		cfg.Server.ListenIP = f.listenIP
	}
	if changed("listen-port") {
		cfg.Server.TCPPort = f.listenPort
	}
	if changed("enable-udp") {
		cfg.Server.EnableUDP = f.enableUDP
	}
	if f.target != "" {
		if err := server.ApplyServerTarget(cfg, f.target); err != nil {
			return nil, err
		}
	}
	if err := config.ValidateServerConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serverLogger(cfg *config.ServerConfig, levelOverride, fileOverride string) (*logging.Logger, error) {
	levelName := cfg.Logging.Level
	if levelOverride != "" {
		levelName = levelOverride
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	file := cfg.Logging.File
	if fileOverride != "" {
		file = fileOverride
	}
	return logging.NewLoggerWithOptions(level, file, cfg.Logging.Format, cfg.Logging.LogEveryN)
}

// runSim serves until ctx is done. ready, when set, is called once the
// listener is up.
func runSim(ctx context.Context, cfg *config.ServerConfig, logger *logging.Logger, ready func(*server.Server)) error {
	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	id := srv.Identity()
	logger.Info("Simulating %s (slot %d) with %d tags", id.ProductName, cfg.Server.ControllerSlot, len(cfg.Tags))
	if ready != nil {
		ready(srv)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	err = srv.Stop()
	st := srv.Stats()
	logger.Info("Served %d connections, %d requests (%d CIP), %d errors",
		st.Connections, st.Requests, st.CIPRequests, st.Errors)
	return err
}

func newSimTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List controller presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available targets:")
			for _, target := range server.AvailableServerTargets() {
				fmt.Fprintf(out, "  %-14s %s\n", target.Name, target.Description)
			}
			return nil
		},
	}
}

func newSimPrintDefaultCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "print-default-config",
		Short: "Print a simulator config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CreateDefaultServerConfig()
			if target != "" {
				if err := server.ApplyServerTarget(cfg, target); err != nil {
					return err
				}
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Controller preset name")
	return cmd
}
