package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_engine_active_sessions",
		Help: "Number of interviews currently in progress",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_engine_sessions_total",
		Help: "Total number of interviews started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_engine_session_duration_seconds",
		Help:    "Wall-clock duration of interviews in seconds",
		Buckets: []float64{60, 300, 600, 900, 1800, 2700, 3600, 5400},
	})

	clampedSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_engine_sessions_clamped_total",
		Help: "Interviews whose requested duration was reduced by the plan limit",
	})

	// Turn metrics
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_turns_total",
		Help: "Conversation turns appended to history",
	}, []string{"role", "kind"})

	stageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_stage_transitions_total",
		Help: "Stage transitions by destination stage",
	}, []string{"stage"})

	silenceChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_engine_silence_checks_total",
		Help: "Silence checks injected after mutual idleness",
	})

	// Reasoning metrics
	reasoningRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_reasoning_requests_total",
		Help: "Total number of reasoning round-trips",
	}, []string{"status"})

	reasoningLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_engine_reasoning_latency_seconds",
		Help:    "Reasoning round-trip latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Speech metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_tts_requests_total",
		Help: "Text-to-speech synthesis requests",
	}, []string{"status"})

	ttsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_tts_cache_total",
		Help: "Text-to-speech cache lookups",
	}, []string{"result"}) // result: "hit" or "miss"

	// Finalization metrics
	finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_finalizations_total",
		Help: "Finalizer runs by trigger and outcome",
	}, []string{"reason", "outcome"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interview_engine_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single interview session
type Metrics struct {
	startTime      time.Time
	reasoningStart time.Time
	started        bool
	ended          bool
	mu             sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordSessionStart records the start of an interview; repeated calls are ignored
func (m *Metrics) RecordSessionStart(clamped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true
	m.startTime = time.Now()
	activeSessions.Inc()
	totalSessions.Inc()
	if clamped {
		clampedSessions.Inc()
	}
}

// RecordSessionEnd records the end of an interview. Only a started session
// leaves the active gauge, and only once.
func (m *Metrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.ended {
		return
	}
	m.ended = true
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordTurn records a turn appended to the history
func (m *Metrics) RecordTurn(role, kind string) {
	turnsTotal.WithLabelValues(role, kind).Inc()
}

// RecordStage records a stage transition
func (m *Metrics) RecordStage(stage string) {
	stageTransitions.WithLabelValues(stage).Inc()
}

// RecordSilenceCheck records an injected silence check
func (m *Metrics) RecordSilenceCheck() {
	silenceChecks.Inc()
}

// RecordReasoningStart records the start of a reasoning round-trip
func (m *Metrics) RecordReasoningStart() {
	m.mu.Lock()
	m.reasoningStart = time.Now()
	m.mu.Unlock()
}

// RecordReasoningEnd records the end of a reasoning round-trip
func (m *Metrics) RecordReasoningEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.reasoningStart.IsZero() {
		reasoningLatency.Observe(time.Since(m.reasoningStart).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	reasoningRequests.WithLabelValues(status).Inc()
}

// RecordFinalization records a finalizer run
func (m *Metrics) RecordFinalization(reason, outcome string) {
	finalizations.WithLabelValues(reason, outcome).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordTTS records a synthesis request outcome
func RecordTTS(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(status).Inc()
}

// RecordTTSCache records a synthesis cache lookup
func RecordTTSCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	ttsCache.WithLabelValues(result).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
