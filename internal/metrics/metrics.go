package metrics

// Latency and outcome collection for tag operations

import (
	stderrors "errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tturner/etherip/internal/errors"
)

// OperationType names the client call a metric was taken from.
type OperationType string

const (
	OperationRead     OperationType = "READ"
	OperationWrite    OperationType = "WRITE"
	OperationBatch    OperationType = "BATCH"
	OperationIdentity OperationType = "IDENTITY"
)

// Metric is one timed operation against a target.
type Metric struct {
	Timestamp time.Time
	Operation OperationType
	Tag       string
	Success   bool
	RTTMs     float64
	// Status is the CIP general status of a failed reply, zero otherwise.
	Status  uint8
	Timeout bool
	Error   string
}

// Observe builds a Metric for an operation that started at start and
// finished with err.
func Observe(op OperationType, tag string, start time.Time, err error) Metric {
	m := Metric{
		Timestamp: start,
		Operation: op,
		Tag:       tag,
		Success:   err == nil,
		RTTMs:     float64(time.Since(start).Microseconds()) / 1000,
	}
	if err == nil {
		return m
	}
	m.Error = err.Error()
	m.Timeout = stderrors.Is(err, errors.ErrTimeout)
	var statusErr *errors.CIPStatusError
	if stderrors.As(err, &statusErr) {
		m.Status = statusErr.Status
	}
	return m
}

// Sink collects metrics and aggregates them on demand.
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
}

func NewSink() *Sink {
	return &Sink{}
}

// Record stores m.
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

// Metrics returns a copy of everything recorded so far.
func (s *Sink) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// Summary contains aggregated statistics
type Summary struct {
	TotalOperations int
	SuccessfulOps   int
	FailedOps       int
	TimeoutCount    int
	StatusFailures  map[uint8]int

	MinRTT float64
	MaxRTT float64
	AvgRTT float64
	P50RTT float64
	P90RTT float64
	P95RTT float64
	P99RTT float64

	RTTBuckets     map[string]int
	RTTByOperation map[OperationType]*OperationStats
}

// OperationStats is the per-operation slice of a Summary.
type OperationStats struct {
	Count   int
	Success int
	Failed  int
	MinRTT  float64
	MaxRTT  float64
	AvgRTT  float64
	SumRTT  float64
}

// Summary aggregates everything recorded so far. RTT figures only count
// successful operations.
func (s *Sink) Summary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &Summary{
		StatusFailures: make(map[uint8]int),
		RTTBuckets:     make(map[string]int),
		RTTByOperation: make(map[OperationType]*OperationStats),
	}
	rtts := make([]float64, 0, len(s.metrics))
	var sum float64
	for _, m := range s.metrics {
		summary.TotalOperations++
		op, ok := summary.RTTByOperation[m.Operation]
		if !ok {
			op = &OperationStats{}
			summary.RTTByOperation[m.Operation] = op
		}
		op.Count++

		if !m.Success {
			summary.FailedOps++
			op.Failed++
			if m.Timeout {
				summary.TimeoutCount++
			}
			if m.Status != 0 {
				summary.StatusFailures[m.Status]++
			}
			continue
		}

		summary.SuccessfulOps++
		op.Success++
		op.SumRTT += m.RTTMs
		op.AvgRTT = op.SumRTT / float64(op.Success)
		if op.Success == 1 || m.RTTMs < op.MinRTT {
			op.MinRTT = m.RTTMs
		}
		if m.RTTMs > op.MaxRTT {
			op.MaxRTT = m.RTTMs
		}

		if len(rtts) == 0 || m.RTTMs < summary.MinRTT {
			summary.MinRTT = m.RTTMs
		}
		if m.RTTMs > summary.MaxRTT {
			summary.MaxRTT = m.RTTMs
		}
		sum += m.RTTMs
		rtts = append(rtts, m.RTTMs)
		incrementBucket(summary.RTTBuckets, m.RTTMs)
	}
	if len(rtts) > 0 {
		summary.AvgRTT = sum / float64(len(rtts))
	}
	p := computePercentiles(rtts)
	summary.P50RTT, summary.P90RTT, summary.P95RTT, summary.P99RTT = p[0], p[1], p[2], p[3]
	return summary
}

func incrementBucket(buckets map[string]int, value float64) {
	switch {
	case value < 1:
		buckets["lt_1ms"]++
	case value < 5:
		buckets["1_5ms"]++
	case value < 10:
		buckets["5_10ms"]++
	case value < 50:
		buckets["10_50ms"]++
	case value < 100:
		buckets["50_100ms"]++
	case value < 500:
		buckets["100_500ms"]++
	default:
		buckets["gt_500ms"]++
	}
}

func computePercentiles(values []float64) [4]float64 {
	var result [4]float64
	if len(values) == 0 {
		return result
	}
	sort.Float64s(values)
	result[0] = percentile(values, 0.50)
	result[1] = percentile(values, 0.90)
	result[2] = percentile(values, 0.95)
	result[3] = percentile(values, 0.99)
	return result
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
