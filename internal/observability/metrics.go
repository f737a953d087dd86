package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	Answers            *prometheus.CounterVec
	VoiceOutcomes      *prometheus.CounterVec
	SpeechOutcomes     *prometheus.CounterVec
	StaleCallbacks     *prometheus.CounterVec
	SubmissionWrites   *prometheus.CounterVec
	CompletionDuration prometheus.Histogram

	window *answerWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active survey sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Answers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Accepted answers by input source.",
		}, []string{"source"}),
		VoiceOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_outcomes_total",
			Help:      "Voice capture outcomes (matched, no_match, error).",
		}, []string{"outcome"}),
		SpeechOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_outcomes_total",
			Help:      "Speech output terminal events by kind.",
		}, []string{"kind"}),
		StaleCallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_callbacks_total",
			Help:      "Asynchronous completions discarded because their generation was superseded.",
		}, []string{"channel"}),
		SubmissionWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_writes_total",
			Help:      "Completed survey persistence attempts by result.",
		}, []string{"result"}),
		CompletionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "survey_completion_seconds",
			Help:      "Time from session start (or restart) to survey completion.",
			Buckets:   []float64{5, 10, 20, 30, 60, 120, 300, 600},
		}),
		window: newAnswerWindow(256),
	}
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

// ObserveAnswer counts an accepted answer and how long the question was open.
func (m *Metrics) ObserveAnswer(questionID int, source string, open time.Duration) {
	if m == nil {
		return
	}
	m.Answers.WithLabelValues(source).Inc()
	m.window.recordAnswer(questionID, source == "voice", open)
}

// ObserveVoiceOutcome counts one finished capture for a question.
func (m *Metrics) ObserveVoiceOutcome(questionID int, outcome string, capture time.Duration) {
	if m == nil {
		return
	}
	m.VoiceOutcomes.WithLabelValues(outcome).Inc()
	m.window.recordVoice(questionID, outcome, capture)
}

func (m *Metrics) ObserveSpeechOutcome(kind string) {
	if m == nil {
		return
	}
	m.SpeechOutcomes.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveStaleCallback(channel string) {
	if m == nil {
		return
	}
	m.StaleCallbacks.WithLabelValues(channel).Inc()
}

func (m *Metrics) ObserveSubmissionWrite(result string) {
	if m == nil {
		return
	}
	m.SubmissionWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCompletion(d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionDuration.Observe(d.Seconds())
	m.window.recordSurvey(d)
}

// SnapshotLatency returns per-question answer latency and voice match rates.
func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.window.snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
