package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tturner/etherip/internal/cip/client"
	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/errors"
	"github.com/tturner/etherip/internal/ui"
)

func newIdentityCmd(flags *rootFlags) *cobra.Command {
	var slots []uint
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show device identity",
		Long: `Send ListIdentity to the adapter and read the Identity object of the
controller (Get Attributes All, routed to --slot unless --direct).
--slots reads the Identity object of other backplane modules too.`,
		Example: `  etherip identity --host 10.0.0.5
  etherip identity --host 10.0.0.5 --slots 0,1,2,3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withSession(cmd, func(ctx context.Context, e *env, s *client.Session) error {
				records, err := s.ListIdentity(ctx)
				if err != nil {
					return e.wrap(err, "list identity")
				}
				fmt.Fprintln(e.out, ui.Section("ListIdentity", ui.RenderIdentities(records, e.styles), e.styles))

				id, err := s.GetIdentity(ctx)
				if err != nil {
					return e.wrap(err, "get identity")
				}
				title := "Controller (direct)"
				if e.cfg.Target.Routed != nil && *e.cfg.Target.Routed {
					title = fmt.Sprintf("Controller (slot %d)", e.cfg.Target.Slot)
				}
				fmt.Fprintln(e.out, ui.RenderIdentity(title, id, e.styles))

				for _, slot := range slots {
					if slot > 255 {
						return fmt.Errorf("slot %d out of range", slot)
					}
					id, err := s.GetSlotIdentity(ctx, uint8(slot))
					switch {
					case err == nil:
						fmt.Fprintln(e.out, ui.RenderIdentity(fmt.Sprintf("Slot %d", slot), id, e.styles))
					case errors.IsFatal(err):
						return e.wrap(err, fmt.Sprintf("get identity slot %d", slot))
					default:
						fmt.Fprintf(e.out, "Slot %d: %v\n", slot, err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().UintSliceVar(&slots, "slots", nil, "Also read the identity of these backplane slots")
	return cmd
}

func newServicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List encapsulation services the device supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withSession(cmd, func(ctx context.Context, e *env, s *client.Session) error {
				services, err := s.ListServices(ctx)
				if err != nil {
					return e.wrap(err, "list services")
				}
				fmt.Fprintln(e.out, ui.RenderServices(services, e.styles))
				return nil
			})
		},
	}
}

func newDiscoverCmd(flags *rootFlags) *cobra.Command {
	var (
		broadcast string
		wait      time.Duration
		output    string
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find devices with a UDP ListIdentity broadcast",
		Long: `Broadcast ListIdentity on UDP and list every device that answers
within --wait. Use --broadcast to target one subnet or a single host.`,
		Example: `  etherip discover
  etherip discover --broadcast 192.168.1.255 --wait 2s --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output format '%s'; must be 'text' or 'json'", output)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			devices, err := client.Discover(ctx, broadcast, flags.port, wait)
			if err != nil {
				return fmt.Errorf("discover devices: %w", err)
			}
			out := cmd.OutOrStdout()
			if output == "json" {
				return writeJSON(out, devices)
			}
			fmt.Fprintln(out, ui.RenderIdentities(devices, flags.styles()))
			return nil
		},
	}
	cmd.Flags().StringVar(&broadcast, "broadcast", "255.255.255.255", "Broadcast or unicast IPv4 address")
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "How long to collect replies")
	cmd.Flags().StringVar(&output, "output", "text", "Output format: text|json")
	return cmd
}

type deviceJSON struct {
	IP          string `json:"ip"`
	Port        uint16 `json:"port"`
	Vendor      string `json:"vendor"`
	DeviceType  string `json:"device_type"`
	ProductCode uint16 `json:"product_code"`
	Revision    string `json:"revision"`
	Serial      string `json:"serial"`
	ProductName string `json:"product_name"`
	State       uint8  `json:"state"`
}

func writeJSON(w io.Writer, devices []enip.IdentityRecord) error {
	out := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceJSON{
			IP:          d.IP.String(),
			Port:        d.Port,
			Vendor:      d.VendorName(),
			DeviceType:  d.DeviceTypeName(),
			ProductCode: d.ProductCode,
			Revision:    d.Revision(),
			Serial:      fmt.Sprintf("%08X", d.SerialNumber),
			ProductName: d.ProductName,
			State:       d.State,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
