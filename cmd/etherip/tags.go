package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tturner/etherip/internal/cip/client"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/config"
	"github.com/tturner/etherip/internal/metrics"
	"github.com/tturner/etherip/internal/ui"
)

func readRequest(tagSpec string, elements uint16) (config.Request, error) {
	// host is checked by the session setup
	return config.ParseRequest("-", 0, tagSpec, elements)
}

func readOne(ctx context.Context, s *client.Session, req config.Request) (types.Value, error) {
	if req.Index != nil {
		return s.ReadTagElement(ctx, req.TagName, *req.Index, req.ElementCount)
	}
	return s.ReadTag(ctx, req.TagName, req.ElementCount)
}

func newReadCmd(flags *rootFlags) *cobra.Command {
	var (
		elements uint16
		copyOut  bool
	)
	cmd := &cobra.Command{
		Use:   "read TAG",
		Short: "Read a tag",
		Long: `Read a controller tag by name. TAG may carry one element index,
e.g. Setpoints[2], and --elements reads that many consecutive elements.`,
		Example: `  etherip read --host 10.0.0.5 Program:MainProgram.Speed
  etherip read --host 10.0.0.5 --slot 2 Setpoints[1] --elements 3
  etherip read --config plant.yaml Recipe.Name --copy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0], elements)
			if err != nil {
				return err
			}
			return flags.withSession(cmd, func(ctx context.Context, e *env, s *client.Session) error {
				v, err := readOne(ctx, s, req)
				if err != nil {
					return e.wrap(err, "read "+req.Label())
				}
				fmt.Fprintln(e.out, ui.RenderValue(req.Label(), v, e.styles))
				if copyOut {
					if err := ui.CopyValue(v); err != nil {
						e.logger.Error("copy to clipboard: %v", err)
					} else {
						e.logger.Info("Copied %s to clipboard", req.Label())
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint16Var(&elements, "elements", 1, "Number of elements to read")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "Copy the value to the clipboard")
	return cmd
}

func newWriteCmd(flags *rootFlags) *cobra.Command {
	var (
		typeName string
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "write TAG VALUE",
		Short: "Write a tag",
		Long: `Write a value to a controller tag. Arrays are comma separated and
written starting at the element index in TAG, or element 0.

Without --type the tag is read first to learn its data type. The write is
confirmed interactively unless --yes is given.`,
		Example: `  etherip write --host 10.0.0.5 Setpoint 72.5 --type REAL
  etherip write --host 10.0.0.5 Counts[4] 1,2,3 --yes
  etherip write --host 10.0.0.5 Status "running" --type STRING --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0], 1)
			if err != nil {
				return err
			}
			return flags.withSession(cmd, func(ctx context.Context, e *env, s *client.Session) error {
				dt, err := writeType(ctx, s, req, typeName)
				if err != nil {
					return e.wrap(err, "read "+req.Label())
				}
				v, err := types.ParseValue(dt, args[1])
				if err != nil {
					return err
				}
				if !yes {
					target := fmt.Sprintf("%s:%d", e.cfg.Target.Host, e.cfg.Target.Port)
					ok, err := ui.ConfirmWrite(target, req.Label(), v)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(e.out, "write cancelled")
						return nil
					}
				}
				if req.Index != nil {
					err = s.WriteTagElement(ctx, req.TagName, *req.Index, v)
				} else {
					err = s.WriteTag(ctx, req.TagName, v)
				}
				if err != nil {
					return e.wrap(err, "write "+req.Label())
				}
				fmt.Fprintf(e.out, "wrote %s = %s\n", req.Label(), v)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "Data type (BOOL, SINT, INT, DINT, LINT, REAL, LREAL, STRING, ...)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Write without asking for confirmation")
	return cmd
}

func writeType(ctx context.Context, s *client.Session, req config.Request, name string) (types.CIPDataType, error) {
	if name != "" {
		return types.ParseCIPDataType(name)
	}
	current, err := readOne(ctx, s, req)
	if err != nil {
		return 0, err
	}
	return current.Type(), nil
}

func newBatchCmd(flags *rootFlags) *cobra.Command {
	var elements uint16
	cmd := &cobra.Command{
		Use:   "batch [TAG...]",
		Short: "Read or write several tags in Multiple Service Packets",
		Long: `Read the tags given as arguments, or run every tag in the config file's
tags list: entries with a value are written, the rest are read. Each tag
succeeds or fails on its own.`,
		Example: `  etherip batch --host 10.0.0.5 Counter Setpoints[0] Status
  etherip batch --config plant.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withSession(cmd, func(ctx context.Context, e *env, s *client.Session) error {
				reads, writes, err := batchRequests(e.cfg, args, elements)
				if err != nil {
					return err
				}
				if len(reads)+len(writes) == 0 {
					return fmt.Errorf("no tags: pass TAG arguments or configure tags")
				}
				if len(writes) > 0 {
					results, err := s.WriteTags(ctx, writes)
					if err != nil {
						return e.wrap(err, "batch write")
					}
					fmt.Fprintln(e.out, ui.Section("Writes", ui.RenderBatch(results, true, e.styles), e.styles))
				}
				if len(reads) > 0 {
					results, err := s.ReadTags(ctx, reads)
					if err != nil {
						return e.wrap(err, "batch read")
					}
					fmt.Fprintln(e.out, ui.Section("Reads", ui.RenderBatch(results, false, e.styles), e.styles))
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint16Var(&elements, "elements", 1, "Elements per tag for TAG arguments")
	return cmd
}

func batchRequests(cfg *config.Config, args []string, elements uint16) (reads, writes []client.TagRequest, err error) {
	if len(args) > 0 {
		for _, arg := range args {
			req, err := readRequest(arg, elements)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", arg, err)
			}
			reads = append(reads, client.TagRequest{Name: req.TagName, Index: req.Index, Count: req.ElementCount})
		}
		return reads, nil, nil
	}
	reqs, err := cfg.Requests()
	if err != nil {
		return nil, nil, err
	}
	for _, r := range reqs {
		tr := client.TagRequest{Name: r.TagName, Index: r.Index, Count: r.ElementCount}
		if r.IsWrite() {
			tr.Value = *r.WriteValue
			writes = append(writes, tr)
		} else {
			reads = append(reads, tr)
		}
	}
	return reads, writes, nil
}

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var (
		elements    uint16
		interval    time.Duration
		samples     int
		stats       bool
		metricsPath string
	)
	cmd := &cobra.Command{
		Use:   "watch TAG",
		Short: "Poll a tag and redraw on every change",
		Long: `Read TAG every --interval and show the latest value with a short
history. Press p to pause and q to quit. With --samples the tag is read
that many times and printed line by line instead; --stats adds a latency
summary and --metrics writes every sample to a CSV file.`,
		Example: `  etherip watch --host 10.0.0.5 Program:MainProgram.Speed --interval 250ms
  etherip watch --host 10.0.0.5 Counter --samples 5
  etherip watch --host 10.0.0.5 Counter --samples 100 --interval 10ms --stats --metrics rtt.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0], elements)
			if err != nil {
				return err
			}
			return flags.withSession(cmd, func(ctx context.Context, e *env, s *client.Session) error {
				read := func(ctx context.Context) (types.Value, error) {
					return readOne(ctx, s, req)
				}
				if samples > 0 {
					sm := &sampler{label: req.Label(), sink: metrics.NewSink()}
					if metricsPath != "" {
						w, err := metrics.CreateWriter(metricsPath)
						if err != nil {
							return err
						}
						defer w.Close()
						sm.csv = w
					}
					err := sm.run(ctx, e, read, samples, interval)
					if stats {
						fmt.Fprint(e.out, "\n"+metrics.FormatSummary(sm.sink.Summary()))
					}
					return err
				}
				model := ui.NewWatchModel(ctx, req.Label(), interval, read, e.styles)
				if err := ui.RunWatch(model); err != nil {
					return e.wrap(err, "watch "+req.Label())
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint16Var(&elements, "elements", 1, "Number of elements to read")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval")
	cmd.Flags().IntVar(&samples, "samples", 0, "Print this many reads and exit instead of the live view")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print a latency summary after --samples")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "Write each --samples read to this CSV file")
	return cmd
}

// sampler reads a tag a fixed number of times, timing every read.
type sampler struct {
	label string
	sink  *metrics.Sink
	csv   *metrics.Writer
}

func (sm *sampler) run(ctx context.Context, e *env, read ui.ReadFunc, samples int, interval time.Duration) error {
	for i := 0; i < samples; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		start := time.Now()
		v, err := read(ctx)
		m := metrics.Observe(metrics.OperationRead, sm.label, start, err)
		sm.sink.Record(m)
		if sm.csv != nil {
			if werr := sm.csv.WriteMetric(m); werr != nil {
				return werr
			}
		}
		if err != nil {
			return e.wrap(err, "watch "+sm.label)
		}
		fmt.Fprintf(e.out, "%s %s = %s\n", start.Format("15:04:05.000"), sm.label, v)
	}
	return nil
}
