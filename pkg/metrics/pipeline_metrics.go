// Package metrics provides Prometheus metrics for the transcription pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chunk and pipeline metrics
var (
	// chunksTotal counts transcribed chunks.
	// Labels:
	//   - status: "success", "empty" or "degraded"
	chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_chunks_total",
			Help: "Total number of audio chunks sent to the recognition backend",
		},
		[]string{"status"},
	)

	// chunkErrorsTotal counts backend failures that were downgraded to empty chunks.
	// Labels:
	//   - error_code: e.g. "BACKEND_HTTP_ERROR", "BACKEND_TIMEOUT"
	chunkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_chunk_errors_total",
			Help: "Total number of chunk-level backend errors",
		},
		[]string{"error_code"},
	)

	// chunkDuration records the latency of a single backend call.
	chunkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scribe_chunk_duration_seconds",
			Help:    "Duration of a single chunk recognition call in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// pipelineDuration records end-to-end transcription time.
	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scribe_pipeline_duration_seconds",
			Help:    "Duration of a full transcription in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 1800},
		},
	)

	// splitFallbacksTotal counts splits that failed and fell back to the original file.
	splitFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scribe_split_fallbacks_total",
			Help: "Total number of split attempts that fell back to the unsplit file",
		},
	)

	// commandExecutionTotal records external command executions.
	// Labels:
	//   - command: e.g. "ffmpeg"
	//   - status: "success", "failed" or "timeout"
	commandExecutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_command_executions_total",
			Help: "Total number of external command executions",
		},
		[]string{"command", "status"},
	)

	// commandExecutionDuration records external command duration.
	commandExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scribe_command_duration_seconds",
			Help:    "Duration of external command executions in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"command"},
	)

	// jobsTotal counts finished transcription jobs.
	// Labels:
	//   - status: "completed", "failed" or "cancelled"
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_jobs_total",
			Help: "Total number of finished transcription jobs",
		},
		[]string{"status"},
	)

	// environmentReady 环境就绪状态量规（0=未就绪，1=就绪）
	environmentReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scribe_environment_ready",
			Help: "Result of the last environment check (0=not ready, 1=ready)",
		},
	)
)

func init() {
	prometheus.MustRegister(chunksTotal)
	prometheus.MustRegister(chunkErrorsTotal)
	prometheus.MustRegister(chunkDuration)
	prometheus.MustRegister(pipelineDuration)
	prometheus.MustRegister(splitFallbacksTotal)
	prometheus.MustRegister(commandExecutionTotal)
	prometheus.MustRegister(commandExecutionDuration)
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(environmentReady)
}

// RecordChunk records a chunk outcome and the backend call latency.
func RecordChunk(status string, durationSeconds float64) {
	chunksTotal.WithLabelValues(status).Inc()
	chunkDuration.Observe(durationSeconds)
}

// RecordChunkError records a downgraded backend error.
func RecordChunkError(errorCode string) {
	chunkErrorsTotal.WithLabelValues(errorCode).Inc()
}

// RecordPipelineDuration records the duration of a complete transcription.
func RecordPipelineDuration(durationSeconds float64) {
	pipelineDuration.Observe(durationSeconds)
}

// RecordSplitFallback records a split that fell back to the original file.
func RecordSplitFallback() {
	splitFallbacksTotal.Inc()
}

// RecordCommandExecution records a command execution event.
// Parameters:
//   - command: Command name (e.g., "ffmpeg")
//   - status: Execution status (e.g., "success", "failed", "timeout")
//   - durationSeconds: Execution duration in seconds
func RecordCommandExecution(command, status string, durationSeconds float64) {
	commandExecutionTotal.WithLabelValues(command, status).Inc()
	commandExecutionDuration.WithLabelValues(command).Observe(durationSeconds)
}

// RecordJob records a job reaching a terminal state.
func RecordJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// SetEnvironmentReady records the outcome of the last environment check.
func SetEnvironmentReady(ready bool) {
	if ready {
		environmentReady.Set(1)
	} else {
		environmentReady.Set(0)
	}
}
