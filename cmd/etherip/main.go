package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "etherip",
		Short: "EtherNet/IP explicit messaging client for Logix controllers",
		Long: `etherip talks to Allen-Bradley Logix controllers over EtherNet/IP.

It registers an encapsulation session, reads and writes tags by name,
queries device identity, and can run a simulated controller for testing.
Target settings come from flags or a YAML config file (--config).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerRootFlags(rootCmd, flags)

	rootCmd.AddCommand(newReadCmd(flags))
	rootCmd.AddCommand(newWriteCmd(flags))
	rootCmd.AddCommand(newBatchCmd(flags))
	rootCmd.AddCommand(newWatchCmd(flags))
	rootCmd.AddCommand(newIdentityCmd(flags))
	rootCmd.AddCommand(newServicesCmd(flags))
	rootCmd.AddCommand(newDiscoverCmd(flags))
	rootCmd.AddCommand(newSimCmd(flags))
	rootCmd.AddCommand(newDecodeCmd(flags))
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newValidateCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			desc := cmd.Long
			if desc == "" {
				desc = cmd.Short
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s", desc, cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, sub := range cmd.Commands() {
			if !sub.Hidden && sub.Name() != "completion" && sub.Name() != "help" {
				fmt.Fprintf(out, "  %-12s %s\n", sub.Name(), sub.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s <command> --help\" for more information about a command.\n", cmd.Name())
	})
	return rootCmd
}
