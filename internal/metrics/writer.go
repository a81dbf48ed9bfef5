package metrics

// CSV output and summary formatting

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

var csvHeader = []string{
	"timestamp",
	"operation",
	"tag",
	"success",
	"rtt_ms",
	"status",
	"timeout",
	"error",
}

// Writer streams metrics as CSV rows.
type Writer struct {
	file      *os.File
	csvWriter *csv.Writer
}

// NewWriter writes a CSV header to w and returns a Writer for the rows.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	return &Writer{csvWriter: cw}, nil
}

// CreateWriter creates path and writes metrics into it. Close releases
// the file.
func CreateWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create CSV file: %w", err)
	}
	w, err := NewWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.file = file
	return w, nil
}

// WriteMetric writes a single metric
func (w *Writer) WriteMetric(m Metric) error {
	status := ""
	if m.Status != 0 {
		status = fmt.Sprintf("0x%02X", m.Status)
	}
	record := []string{
		m.Timestamp.Format(time.RFC3339Nano),
		string(m.Operation),
		m.Tag,
		fmt.Sprintf("%t", m.Success),
		formatRTT(m.RTTMs),
		status,
		fmt.Sprintf("%t", m.Timeout),
		m.Error,
	}
	if err := w.csvWriter.Write(record); err != nil {
		return fmt.Errorf("write CSV record: %w", err)
	}
	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

// Close flushes pending rows and closes the file opened by CreateWriter.
func (w *Writer) Close() error {
	w.csvWriter.Flush()
	err := w.csvWriter.Error()
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		w.file = nil
	}
	return err
}

// formatRTT formats RTT value for CSV (empty string if 0)
func formatRTT(rtt float64) string {
	if rtt == 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", rtt)
}

// FormatSummary formats a summary for human-readable output
func FormatSummary(summary *Summary) string {
	var buf strings.Builder
	if summary.TotalOperations == 0 {
		return "No operations recorded\n"
	}

	fmt.Fprintf(&buf, "Total Operations: %d\n", summary.TotalOperations)
	fmt.Fprintf(&buf, "Successful: %d (%.1f%%)\n",
		summary.SuccessfulOps,
		float64(summary.SuccessfulOps)/float64(summary.TotalOperations)*100)
	fmt.Fprintf(&buf, "Failed: %d (%.1f%%)\n",
		summary.FailedOps,
		float64(summary.FailedOps)/float64(summary.TotalOperations)*100)
	if summary.TimeoutCount > 0 {
		fmt.Fprintf(&buf, "Timeouts: %d\n", summary.TimeoutCount)
	}
	if len(summary.StatusFailures) > 0 {
		statuses := make([]int, 0, len(summary.StatusFailures))
		for status := range summary.StatusFailures {
			statuses = append(statuses, int(status))
		}
		sort.Ints(statuses)
		buf.WriteString("CIP status failures:")
		for _, status := range statuses {
			fmt.Fprintf(&buf, " 0x%02X=%d", status, summary.StatusFailures[uint8(status)])
		}
		buf.WriteString("\n")
	}

	if summary.SuccessfulOps > 0 {
		buf.WriteString("\nRTT Statistics:\n")
		fmt.Fprintf(&buf, "  Min: %.3f ms\n", summary.MinRTT)
		fmt.Fprintf(&buf, "  Max: %.3f ms\n", summary.MaxRTT)
		fmt.Fprintf(&buf, "  Avg: %.3f ms\n", summary.AvgRTT)
		fmt.Fprintf(&buf, "  P50: %.3f ms\n", summary.P50RTT)
		fmt.Fprintf(&buf, "  P90: %.3f ms\n", summary.P90RTT)
		fmt.Fprintf(&buf, "  P95: %.3f ms\n", summary.P95RTT)
		fmt.Fprintf(&buf, "  P99: %.3f ms\n", summary.P99RTT)
		fmt.Fprintf(&buf, "  Buckets: <1ms=%d 1-5ms=%d 5-10ms=%d 10-50ms=%d 50-100ms=%d 100-500ms=%d >500ms=%d\n",
			summary.RTTBuckets["lt_1ms"],
			summary.RTTBuckets["1_5ms"],
			summary.RTTBuckets["5_10ms"],
			summary.RTTBuckets["10_50ms"],
			summary.RTTBuckets["50_100ms"],
			summary.RTTBuckets["100_500ms"],
			summary.RTTBuckets["gt_500ms"],
		)
	}

	if len(summary.RTTByOperation) > 0 {
		ops := make([]string, 0, len(summary.RTTByOperation))
		for op := range summary.RTTByOperation {
			ops = append(ops, string(op))
		}
		sort.Strings(ops)
		buf.WriteString("\nPer-Operation Statistics:\n")
		for _, op := range ops {
			stats := summary.RTTByOperation[OperationType(op)]
			fmt.Fprintf(&buf, "  %s: %d ops (%d success, %d failed)",
				op, stats.Count, stats.Success, stats.Failed)
			if stats.Success > 0 {
				fmt.Fprintf(&buf, " - RTT: min=%.3fms, max=%.3fms, avg=%.3fms",
					stats.MinRTT, stats.MaxRTT, stats.AvgRTT)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}
