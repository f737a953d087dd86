package observability

import (
	"testing"
	"time"
)

func TestAnswerWindowPerQuestion(t *testing.T) {
	w := newAnswerWindow(8)
	w.recordAnswer(2, false, 400*time.Millisecond)
	w.recordAnswer(1, false, 1200*time.Millisecond)
	w.recordAnswer(1, true, 3*time.Second)
	w.recordVoice(1, VoiceNoMatch, 900*time.Millisecond)
	w.recordVoice(1, VoiceMatched, 700*time.Millisecond)
	w.recordVoice(1, VoiceError, 100*time.Millisecond)
	w.recordVoice(1, VoiceMatched, 800*time.Millisecond)

	snap := w.snapshot()
	if len(snap.Questions) != 2 || snap.Questions[0].QuestionID != 1 || snap.Questions[1].QuestionID != 2 {
		t.Fatalf("questions = %+v, want ids 1 and 2 in order", snap.Questions)
	}
	q1 := snap.Questions[0]
	if q1.Direct != 1 || q1.Voice != 1 {
		t.Fatalf("q1 sources = direct %d voice %d, want 1 and 1", q1.Direct, q1.Voice)
	}
	if q1.AnswerLatency.Samples != 2 || q1.AnswerLatency.MedianMS != 1200 || q1.AnswerLatency.MaxMS != 3000 {
		t.Fatalf("q1 latency = %+v", q1.AnswerLatency)
	}
	if q1.VoiceAttempts != 4 || q1.VoiceNoMatch != 1 || q1.VoiceErrors != 1 || q1.VoiceMatchRate != 0.5 {
		t.Fatalf("q1 voice stats = %+v", q1)
	}
	if snap.Questions[1].VoiceAttempts != 0 || snap.Questions[1].VoiceMatchRate != 0 {
		t.Fatalf("q2 should have no voice attempts: %+v", snap.Questions[1])
	}
	if snap.CaptureToResult.Samples != 4 || snap.CaptureToResult.MedianMS != 700 {
		t.Fatalf("capture latency = %+v", snap.CaptureToResult)
	}
}

func TestAnswerWindowKeepsMostRecent(t *testing.T) {
	w := newAnswerWindow(2)
	w.recordSurvey(10 * time.Second)
	w.recordSurvey(20 * time.Second)
	w.recordSurvey(30 * time.Second)
	w.recordAnswer(1, false, time.Second)
	w.recordAnswer(1, true, time.Second)
	w.recordAnswer(1, true, time.Second)

	snap := w.snapshot()
	if snap.SurveyTotal.Samples != 2 || snap.SurveyTotal.MedianMS != 20000 || snap.SurveyTotal.MaxMS != 30000 {
		t.Fatalf("survey total = %+v, want the last two runs", snap.SurveyTotal)
	}
	if q := snap.Questions[0]; q.Direct != 0 || q.Voice != 2 {
		t.Fatalf("q1 sources = direct %d voice %d, want the direct answer aged out", q.Direct, q.Voice)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAnswer(1, "direct", time.Second)
	m.ObserveVoiceOutcome(1, VoiceMatched, time.Second)
	m.ObserveStaleCallback("input")
	if snap := m.SnapshotLatency(); len(snap.Questions) != 0 {
		t.Fatalf("nil metrics snapshot has questions: %+v", snap.Questions)
	}
}
