package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Voice outcomes reported by the survey engine.
const (
	VoiceMatched = "matched"
	VoiceNoMatch = "no_match"
	VoiceError   = "error"
)

// LatencySummary describes a set of recent durations in milliseconds.
type LatencySummary struct {
	Samples  int     `json:"samples"`
	MedianMS float64 `json:"median_ms"`
	P95MS    float64 `json:"p95_ms"`
	MaxMS    float64 `json:"max_ms"`
}

// QuestionStats reports how one question has recently been answered.
type QuestionStats struct {
	QuestionID     int            `json:"question_id"`
	Direct         int            `json:"direct_answers"`
	Voice          int            `json:"voice_answers"`
	AnswerLatency  LatencySummary `json:"answer_latency"`
	VoiceAttempts  int            `json:"voice_attempts"`
	VoiceNoMatch   int            `json:"voice_no_match"`
	VoiceErrors    int            `json:"voice_errors"`
	VoiceMatchRate float64        `json:"voice_match_rate"`
}

// LatencySnapshot is the payload of /v1/perf/latency.
type LatencySnapshot struct {
	GeneratedAt     time.Time       `json:"generated_at"`
	WindowSize      int             `json:"window_size"`
	Questions       []QuestionStats `json:"questions"`
	CaptureToResult LatencySummary  `json:"capture_to_result"`
	SurveyTotal     LatencySummary  `json:"survey_total"`
}

// answerWindow keeps the most recent answers and voice attempts per question.
// Counts and latencies cover only what is still inside the window.
type answerWindow struct {
	mu        sync.Mutex
	limit     int
	questions map[int]*questionLog
	captures  []float64
	surveys   []float64
}

type answerSample struct {
	ms    float64
	voice bool
}

type questionLog struct {
	answers  []answerSample
	outcomes []string
}

func newAnswerWindow(limit int) *answerWindow {
	if limit <= 0 {
		limit = 256
	}
	return &answerWindow{limit: limit, questions: make(map[int]*questionLog)}
}

func (w *answerWindow) question(id int) *questionLog {
	q, ok := w.questions[id]
	if !ok {
		q = &questionLog{}
		w.questions[id] = q
	}
	return q
}

func (w *answerWindow) recordAnswer(questionID int, voice bool, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.question(questionID)
	q.answers = keepLast(append(q.answers, answerSample{ms: millis(d), voice: voice}), w.limit)
}

func (w *answerWindow) recordVoice(questionID int, outcome string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.question(questionID)
	q.outcomes = keepLast(append(q.outcomes, outcome), w.limit)
	w.captures = keepLast(append(w.captures, millis(d)), w.limit)
}

func (w *answerWindow) recordSurvey(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.surveys = keepLast(append(w.surveys, millis(d)), w.limit)
}

func (w *answerWindow) snapshot() LatencySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int, 0, len(w.questions))
	for id := range w.questions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	questions := make([]QuestionStats, 0, len(ids))
	for _, id := range ids {
		q := w.questions[id]
		stats := QuestionStats{QuestionID: id}
		latencies := make([]float64, 0, len(q.answers))
		for _, a := range q.answers {
			if a.voice {
				stats.Voice++
			} else {
				stats.Direct++
			}
			latencies = append(latencies, a.ms)
		}
		stats.AnswerLatency = summarize(latencies)

		matched := 0
		for _, o := range q.outcomes {
			switch o {
			case VoiceMatched:
				matched++
			case VoiceNoMatch:
				stats.VoiceNoMatch++
			case VoiceError:
				stats.VoiceErrors++
			}
		}
		stats.VoiceAttempts = len(q.outcomes)
		if stats.VoiceAttempts > 0 {
			stats.VoiceMatchRate = math.Round(float64(matched)/float64(stats.VoiceAttempts)*1000) / 1000
		}
		questions = append(questions, stats)
	}

	return LatencySnapshot{
		GeneratedAt:     time.Now().UTC(),
		WindowSize:      w.limit,
		Questions:       questions,
		CaptureToResult: summarize(w.captures),
		SurveyTotal:     summarize(w.surveys),
	}
}

func keepLast[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return append(s[:0:0], s[len(s)-n:]...)
}

func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1000
}

// summarize uses nearest-rank percentiles over a sorted copy of values.
func summarize(values []float64) LatencySummary {
	if len(values) == 0 {
		return LatencySummary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := func(p float64) float64 {
		i := int(math.Ceil(p*float64(len(sorted)))) - 1
		return sorted[max(i, 0)]
	}
	return LatencySummary{
		Samples:  len(sorted),
		MedianMS: rank(0.50),
		P95MS:    rank(0.95),
		MaxMS:    sorted[len(sorted)-1],
	}
}
