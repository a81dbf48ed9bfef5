package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tturner/etherip/internal/capture"
	"github.com/tturner/etherip/internal/logging"
	"github.com/tturner/etherip/internal/ui"
)

func newDecodeCmd(root *rootFlags) *cobra.Command {
	var (
		ports   []uint
		hexDump bool
		outFile string
	)
	cmd := &cobra.Command{
		Use:   "decode FILE.pcap",
		Short: "Decode EtherNet/IP frames from a capture",
		Long: `Read a pcap file, reassemble TCP streams and list every encapsulation
frame with its command, session, status and CIP service. Works on captures
written with --pcap as well as on Wireshark or tcpdump captures.`,
		Example: `  etherip decode session.pcap
  etherip decode plant.pcap --port 44818 --hex --out plant.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]uint16, 0, len(ports))
			for _, p := range ports {
				if p == 0 || p > 65535 {
					return fmt.Errorf("invalid port %d", p)
				}
				filter = append(filter, uint16(p))
			}
			frames, err := capture.ExtractFile(args[0], filter...)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				file, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer file.Close()
				out = logging.NewMultiWriter(out, file)
			}

			styles := root.styles()
			if outFile != "" {
				styles = ui.PlainStyles
			}
			fmt.Fprintln(out, ui.RenderFrames(frames, styles))
			if hexDump {
				for i, f := range frames {
					fmt.Fprintf(out, "\n#%d %s\n%s", i+1, f.Describe(), capture.FrameHex(f.Raw))
				}
			}
			fmt.Fprintf(out, "\n%d frames\n", len(frames))
			return nil
		},
	}
	cmd.Flags().UintSliceVar(&ports, "port", nil, "Only consider traffic to or from these ports")
	cmd.Flags().BoolVar(&hexDump, "hex", false, "Hex dump every frame")
	cmd.Flags().StringVar(&outFile, "out", "", "Also write the listing to this file")
	return cmd
}
