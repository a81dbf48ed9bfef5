package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tturner/etherip/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		simulator bool
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "init [FILE]",
		Short: "Write a starter config file",
		Long: `Write a starter client config (default etherip.yaml), or
a simulator config with --sim (default etherip_sim.yaml).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "etherip.yaml"
			if simulator {
				path = "etherip_sim.yaml"
			}
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if simulator {
				data, err := yaml.Marshal(config.CreateDefaultServerConfig())
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				if err := os.WriteFile(path, data, 0644); err != nil {
					return fmt.Errorf("write config file: %w", err)
				}
			} else if err := config.WriteDefaultClientConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&simulator, "sim", false, "Write a simulator config instead")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newValidateCmd(root *rootFlags) *cobra.Command {
	var serverPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate client and simulator config files",
		Example: `  etherip validate --config etherip.yaml
  etherip validate --server-config etherip_sim.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientPath := root.configPath
			if clientPath == "" && serverPath == "" {
				clientPath = "etherip.yaml"
			}
			out := cmd.OutOrStdout()
			if clientPath != "" {
				cfg, err := config.LoadClientConfig(clientPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Config OK: %s (%s:%d, %d tags)\n", clientPath, cfg.Target.Host, cfg.Target.Port, len(cfg.Tags))
			}
			if serverPath != "" {
				cfg, err := config.LoadServerConfig(serverPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Config OK: %s (%d tags)\n", serverPath, len(cfg.Tags))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverPath, "server-config", "", "Simulator config file path")
	return cmd
}
