package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tturner/etherip/internal/capture"
	"github.com/tturner/etherip/internal/cip/client"
	"github.com/tturner/etherip/internal/config"
	"github.com/tturner/etherip/internal/errors"
	"github.com/tturner/etherip/internal/logging"
	"github.com/tturner/etherip/internal/ui"
)

type rootFlags struct {
	configPath string
	host       string
	port       int
	slot       uint8
	direct     bool
	timeout    time.Duration
	logLevel   string
	logFile    string
	pcapFile   string
	plain      bool
}

func registerRootFlags(cmd *cobra.Command, flags *rootFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Client config file (YAML)")
	pf.StringVar(&flags.host, "host", "", "Controller or adapter address")
	pf.IntVar(&flags.port, "port", config.DefaultPort, "EtherNet/IP TCP port")
	pf.Uint8Var(&flags.slot, "slot", 0, "Backplane slot of the controller")
	pf.BoolVar(&flags.direct, "direct", false, "Send requests to the adapter's Message Router instead of routing to --slot")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Per-request timeout (default 5s)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: silent|error|info|verbose|debug")
	pf.StringVar(&flags.logFile, "log-file", "", "Also write the log to this file")
	pf.StringVar(&flags.pcapFile, "pcap", "", "Record session frames to this pcap file")
	pf.BoolVar(&flags.plain, "plain", false, "Plain output without colour or borders")
}

// clientConfig loads --config when given and lays explicit flags over it.
func (f *rootFlags) clientConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if f.configPath != "" {
		loaded, err := config.LoadClientConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
	}

	changed := cmd.Flags().Changed
	if changed("host") || f.configPath == "" {
		cfg.Target.Host = f.host
	}
	if changed("port") || cfg.Target.Port == 0 {
		cfg.Target.Port = f.port
	}
	if changed("slot") {
		cfg.Target.Slot = f.slot
	}
	if changed("direct") {
		routed := !f.direct
		cfg.Target.Routed = &routed
	}
	if changed("timeout") {
		cfg.TimeoutMs = int(f.timeout / time.Millisecond)
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Logging.File = f.logFile
	}
	if f.pcapFile != "" {
		cfg.Capture.PCAP = f.pcapFile
	}
	cfg.ApplyDefaults()

	if cfg.Target.Host == "" {
		return nil, fmt.Errorf("no target: pass --host or --config")
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *rootFlags) styles() ui.Styles {
	if f.plain {
		return ui.PlainStyles
	}
	return ui.DefaultStyles
}

// env is everything a client command needs: config, logger, optional
// recorder and output.
type env struct {
	cfg      *config.Config
	logger   *logging.Logger
	recorder *capture.Recorder
	styles   ui.Styles
	out      io.Writer
}

func (f *rootFlags) setup(cmd *cobra.Command) (*env, error) {
	cfg, err := f.clientConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, styles: f.styles(), out: cmd.OutOrStdout()}
	if cfg.Capture.PCAP != "" {
		rec, err := capture.CreateRecorder(cfg.Capture.PCAP)
		if err != nil {
			logger.Close()
			return nil, err
		}
		e.recorder = rec
	}
	logger.LogStartup(cmd.Name(), cfg.Target.Host, cfg.Target.Port, cfg.Target.Slot, *cfg.Target.Routed, f.configPath)
	return e, nil
}

func (e *env) dial(ctx context.Context) (*client.Session, error) {
	var observer client.Observer
	if e.recorder != nil {
		observer = e.recorder
	}
	opts := e.cfg.SessionOptions(e.logger, observer)
	s, err := client.Dial(ctx, e.cfg.Target.Host, opts)
	if err != nil {
		return nil, e.wrap(err, "connect")
	}
	return s, nil
}

func (e *env) wrap(err error, op string) error {
	return errors.Wrap(err, op, e.cfg.Target.Host, e.cfg.Target.Port)
}

func (e *env) close() {
	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil {
			e.logger.Error("pcap: %v", err)
		} else {
			e.logger.Info("Recorded %d packets to %s", e.recorder.Packets(), e.cfg.Capture.PCAP)
		}
	}
	e.logger.Close()
}

// withSession runs fn against a registered session and always closes it.
func (f *rootFlags) withSession(cmd *cobra.Command, fn func(ctx context.Context, e *env, s *client.Session) error) error {
	e, err := f.setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := e.dial(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, e, s)
}
