package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "echo_tutor_active_sessions",
		Help: "Number of sessions held in the store",
	})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_tutor_uploads_total",
		Help: "Total number of uploads by file kind and outcome",
	}, []string{"kind", "status"})

	// Tutoring metrics
	tutorSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_tutor_steps_total",
		Help: "Total number of tutoring steps",
	}, []string{"outcome"}) // outcome: "section" or "completed"

	tutorStepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "echo_tutor_step_duration_seconds",
		Help:    "Duration of a tutoring step in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	questionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "echo_tutor_question_fallbacks_total",
		Help: "Times the fixed fallback questions replaced unparseable model output",
	})

	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_tutor_answers_total",
		Help: "Total number of evaluated answers",
	}, []string{"correct"})

	practiceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_tutor_practice_attempts_total",
		Help: "Total number of pronunciation practice attempts",
	}, []string{"status"})

	// Remote provider metrics
	remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_tutor_remote_requests_total",
		Help: "Total number of remote provider requests",
	}, []string{"operation", "status"}) // status: "ok" or "degraded"

	remoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "echo_tutor_remote_latency_seconds",
		Help:    "Remote provider latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	}, []string{"operation"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "echo_tutor_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_tutor_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_tutor_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" (learner recordings) or "out" (synthesized)
)

// SetActiveSessions records the number of stored sessions
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordUpload records an upload attempt
func RecordUpload(kind string, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	uploadsTotal.WithLabelValues(kind, status).Inc()
}

// RecordTutorStep records a finished tutoring step
func RecordTutorStep(completed bool, start time.Time) {
	outcome := "section"
	if completed {
		outcome = "completed"
	}
	tutorSteps.WithLabelValues(outcome).Inc()
	tutorStepDuration.Observe(time.Since(start).Seconds())
}

// RecordQuestionFallback records use of the fallback questions
func RecordQuestionFallback() {
	questionFallbacks.Inc()
}

// RecordAnswer records an evaluated answer
func RecordAnswer(correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	answersTotal.WithLabelValues(label).Inc()
}

// RecordPractice records a pronunciation practice attempt
func RecordPractice(degraded bool) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	practiceTotal.WithLabelValues(status).Inc()
}

// RecordRemoteCall records the outcome and latency of one remote operation
func RecordRemoteCall(operation string, start time.Time, degraded bool) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	remoteRequests.WithLabelValues(operation, status).Inc()
	remoteLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordAudioBytes records audio bytes processed
func RecordAudioBytes(direction string, bytes int64) {
	audioBytes.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
