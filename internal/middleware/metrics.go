package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics holds the process-wide atomic counters the /metrics endpoint
// reports, extended with pipeline-scoped fields beyond plain HTTP counts.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	ScansTotal         uint64
	ScansRunning       uint64
	ScansFailed        uint64
	StageInvocations   uint64
	StageInputBytes    uint64
	StageOutputBytes   uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{StartTime: time.Now()}

func IncrementRequests()   { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }
func IncrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }
func DecrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }
func IncrementSuccess()    { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }
func IncrementFailed()     { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }

// IncrementScans/IncrementScansRunning/DecrementScansRunning/IncrementScansFailed
// are driven by the Orchestrator around each pipeline run, not by the HTTP
// middleware, since a scan can be triggered from cmd/scanctl too.
func IncrementScans()        { atomic.AddUint64(&globalMetrics.ScansTotal, 1) }
func IncrementScansRunning() { atomic.AddUint64(&globalMetrics.ScansRunning, 1) }
func DecrementScansRunning() { atomic.AddUint64(&globalMetrics.ScansRunning, ^uint64(0)) }
func IncrementScansFailed()  { atomic.AddUint64(&globalMetrics.ScansFailed, 1) }

// RecordStageIO tracks one Stage Agent invocation's input/output payload
// sizes (spec §4.6 per-stage metric emission), driven by the Agent Stage
// Framework at the end of every Process call.
func RecordStageIO(inputSize, outputSize int) {
	atomic.AddUint64(&globalMetrics.StageInvocations, 1)
	atomic.AddUint64(&globalMetrics.StageInputBytes, uint64(inputSize))
	atomic.AddUint64(&globalMetrics.StageOutputBytes, uint64(outputSize))
}

// GetMetrics snapshots the counters plus runtime memory stats.
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"scans_total":          atomic.LoadUint64(&globalMetrics.ScansTotal),
		"scans_running":        atomic.LoadUint64(&globalMetrics.ScansRunning),
		"scans_failed":         atomic.LoadUint64(&globalMetrics.ScansFailed),
		"stage_invocations":    atomic.LoadUint64(&globalMetrics.StageInvocations),
		"stage_input_bytes":    atomic.LoadUint64(&globalMetrics.StageInputBytes),
		"stage_output_bytes":   atomic.LoadUint64(&globalMetrics.StageOutputBytes),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request volume and success/failure counts.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler serves GetMetrics as JSON.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
