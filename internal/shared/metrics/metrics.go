package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	pipelineStartedTotal   atomic.Uint64
	pipelineCompletedTotal atomic.Uint64
	pipelineRejectedTotal  atomic.Uint64

	failuresMu      sync.Mutex
	failuresByStage = map[string]uint64{}

	gatewayMu       sync.Mutex
	gatewayOutcomes = map[string]uint64{}

	statusMu       sync.Mutex
	statusOutcomes = map[string]uint64{}

	pipelineDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	gatewayDuration  = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncPipelineStarted increments the started counter.
func IncPipelineStarted() {
	pipelineStartedTotal.Add(1)
}

// IncPipelineCompleted increments the completed counter.
func IncPipelineCompleted() {
	pipelineCompletedTotal.Add(1)
}

// IncPipelineRejected counts submissions refused because a run was in flight.
func IncPipelineRejected() {
	pipelineRejectedTotal.Add(1)
}

// IncPipelineFailed counts a failed run by the stage that failed.
func IncPipelineFailed(stage string) {
	failuresMu.Lock()
	failuresByStage[stage]++
	failuresMu.Unlock()
}

// ObservePipelineDurationMs records a pipeline run duration in milliseconds.
func ObservePipelineDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	pipelineDuration.Observe(value)
}

// ObserveGateway records one provider call and its outcome ("ok" or an error kind).
func ObserveGateway(outcome string, durationMs float64) {
	gatewayMu.Lock()
	gatewayOutcomes[outcome]++
	gatewayMu.Unlock()
	if durationMs < 0 {
		durationMs = 0
	}
	gatewayDuration.Observe(durationMs)
}

// IncStatusEvent counts a status event seen by the run projection, labelled
// applied, dropped or failed.
func IncStatusEvent(outcome string) {
	statusMu.Lock()
	statusOutcomes[outcome]++
	statusMu.Unlock()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "pipeline_started_total", "Total pipeline runs started", pipelineStartedTotal.Load())
	writeCounter(&buf, "pipeline_completed_total", "Total pipeline runs completed", pipelineCompletedTotal.Load())
	writeCounter(&buf, "pipeline_rejected_total", "Submissions rejected while a run was in flight", pipelineRejectedTotal.Load())
	writeLabeledCounter(&buf, "pipeline_failed_total", "Total pipeline runs failed by stage", "stage", snapshotMap(&failuresMu, failuresByStage))
	writeLabeledCounter(&buf, "gateway_requests_total", "Analysis gateway calls by outcome", "outcome", snapshotMap(&gatewayMu, gatewayOutcomes))
	writeLabeledCounter(&buf, "status_events_total", "Run status events by projection outcome", "outcome", snapshotMap(&statusMu, statusOutcomes))
	writeHistogram(&buf, "pipeline_duration_ms", "Pipeline run duration in milliseconds", pipelineDuration.Snapshot())
	writeHistogram(&buf, "gateway_duration_ms", "Analysis gateway call duration in milliseconds", gatewayDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

type labeledValue struct {
	label string
	value uint64
}

func snapshotMap(mu *sync.Mutex, m map[string]uint64) []labeledValue {
	mu.Lock()
	out := make([]labeledValue, 0, len(m))
	for k, v := range m {
		out = append(out, labeledValue{label: k, value: v})
	}
	mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].label < out[j].label })
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values []labeledValue) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	for _, v := range values {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, v.label, v.value)
	}
}

// writeHistogram emits cumulative buckets; Observe stores each sample in its
// first matching bucket only.
func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
