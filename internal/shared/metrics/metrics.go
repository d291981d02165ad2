package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	documentUploadedTotal  atomic.Uint64
	documentDeletedTotal   atomic.Uint64
	processingStartedTotal atomic.Uint64
	processingReadyTotal   atomic.Uint64
	processingFailedTotal  atomic.Uint64
	jobDispatchFailedTotal atomic.Uint64
	jobReceivedTotal       atomic.Uint64
	jobUnrecoverableTotal  atomic.Uint64
	panicsRecoveredTotal   atomic.Uint64

	processingDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	chunksPerDocument  = newHistogram([]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000})
)

// IncDocumentUploaded increments the uploaded counter.
func IncDocumentUploaded() {
	documentUploadedTotal.Add(1)
}

// IncDocumentDeleted increments the deleted counter.
func IncDocumentDeleted() {
	documentDeletedTotal.Add(1)
}

// IncProcessingStarted increments the started counter.
func IncProcessingStarted() {
	processingStartedTotal.Add(1)
}

// IncProcessingReady increments the ready counter.
func IncProcessingReady() {
	processingReadyTotal.Add(1)
}

// IncProcessingFailed increments the failed counter.
func IncProcessingFailed() {
	processingFailedTotal.Add(1)
}

// IncJobDispatchFailed counts processing jobs that could not be handed to a worker.
func IncJobDispatchFailed() {
	jobDispatchFailedTotal.Add(1)
}

// IncJobReceived counts queue messages picked up by a worker.
func IncJobReceived() {
	jobReceivedTotal.Add(1)
}

// IncJobDeletedUnrecoverable counts malformed queue messages that were dropped.
func IncJobDeletedUnrecoverable() {
	jobUnrecoverableTotal.Add(1)
}

// IncPanicRecovered counts request handlers that panicked.
func IncPanicRecovered() {
	panicsRecoveredTotal.Add(1)
}

// ObserveProcessingDurationMs records a processing duration in milliseconds.
func ObserveProcessingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	processingDuration.Observe(value)
}

// ObserveChunkCount records how many chunks a processed document produced.
func ObserveChunkCount(n int) {
	if n < 0 {
		n = 0
	}
	chunksPerDocument.Observe(float64(n))
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
	writeCounter(&buf, "document_uploaded_total", "Total documents uploaded", documentUploadedTotal.Load())
	writeCounter(&buf, "document_deleted_total", "Total documents deleted", documentDeletedTotal.Load())
	writeCounter(&buf, "document_processing_started_total", "Total processing jobs started", processingStartedTotal.Load())
	writeCounter(&buf, "document_processing_ready_total", "Total documents processed successfully", processingReadyTotal.Load())
	writeCounter(&buf, "document_processing_failed_total", "Total documents that failed processing", processingFailedTotal.Load())
	writeCounter(&buf, "document_job_dispatch_failed_total", "Total processing jobs that could not be dispatched", jobDispatchFailedTotal.Load())
	writeCounter(&buf, "document_job_received_total", "Total queue messages received by workers", jobReceivedTotal.Load())
	writeCounter(&buf, "document_job_unrecoverable_total", "Total malformed queue messages dropped", jobUnrecoverableTotal.Load())
	writeCounter(&buf, "http_panics_recovered_total", "Total request handlers recovered from a panic", panicsRecoveredTotal.Load())
	writeHistogram(&buf, "document_processing_duration_ms", "Processing duration in milliseconds", processingDuration.Snapshot())
	writeHistogram(&buf, "document_chunks", "Chunks produced per processed document", chunksPerDocument.Snapshot())
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

// Observe counts value in the first bucket it fits; buckets are made cumulative on render.
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

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

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

// Since returns the milliseconds elapsed since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
