package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ent0n29/voicesurvey/internal/survey"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute, nil)
	m.SetVoiceHost("none")
	s, rt, err := m.Create("u1", FullCapabilities())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if rt.Engine == nil || rt.Relay == nil {
		t.Fatalf("runtime missing engine or relay: %+v", rt)
	}
	if q, ok := rt.Engine.CurrentQuestion(); !ok || q.ID != 1 {
		t.Fatalf("engine not started at first question: %+v", q)
	}
	if s.Capabilities.TTS || s.Capabilities.STT {
		t.Fatalf("Capabilities = %+v, want none resolved without providers", s.Capabilities)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Status != StatusActive || got.VoiceHost != "none" {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded || ended.EndedAt.IsZero() {
		t.Fatalf("ended session = %+v", ended)
	}
	if err := rt.Engine.SubmitAnswer("Good"); !errors.Is(err, survey.ErrSessionClosed) {
		t.Fatalf("SubmitAnswer() after End error = %v, want ErrSessionClosed", err)
	}
	if _, err := m.Runtime(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Runtime() after End error = %v, want ErrNotFound", err)
	}
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("second End() error = %v", err)
	}
}

func TestManagerUnknownSession(t *testing.T) {
	m := NewManager(time.Minute, nil)
	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := m.Runtime("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Runtime() error = %v, want ErrNotFound", err)
	}
	if err := m.Touch("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch() error = %v, want ErrNotFound", err)
	}
}

func TestManagerBuilderError(t *testing.T) {
	m := NewManager(time.Minute, func(Session, *Relay) (*Runtime, error) {
		return nil, errors.New("no voice host")
	})
	if _, _, err := m.Create("u1", FullCapabilities()); err == nil {
		t.Fatalf("expected Create() error")
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("failed create must not register a session")
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30*time.Millisecond, nil)
	m.SetEndedRetention(time.Hour)
	expired := make(chan string, 1)
	m.SetExpireHook(func(s *Session) { expired <- s.ID })
	s, rt, err := m.Create("u1", FullCapabilities())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired %s, want %s", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("session was not expired")
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if !errors.Is(rt.Engine.Restart(), survey.ErrSessionClosed) {
		t.Fatalf("expired session engine should be closed")
	}
}

func TestManagerJanitorDropsEndedSessions(t *testing.T) {
	m := NewManager(time.Hour, nil)
	m.SetEndedRetention(time.Millisecond)
	s, _, _ := m.Create("u1", FullCapabilities())
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	m.expireInactive()

	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound after retention", err)
	}
}

func TestRelayPublish(t *testing.T) {
	r := NewRelay()
	if r.Publish("dropped") {
		t.Fatalf("Publish without a connection should report false")
	}

	first := make(chan any, 1)
	detachFirst := r.Attach(first)
	second := make(chan any, 1)
	detachSecond := r.Attach(second)
	detachFirst()

	if !r.Publish("hello") {
		t.Fatalf("Publish() = false, want delivery to the newest connection")
	}
	if got := <-second; got != "hello" {
		t.Fatalf("received %v, want hello", got)
	}
	if len(first) != 0 {
		t.Fatalf("replaced connection must not receive messages")
	}

	second <- "fill"
	if r.Publish("overflow") {
		t.Fatalf("Publish() into a full queue should report false")
	}

	detachSecond()
	if r.Attached() {
		t.Fatalf("expected no attached connection")
	}
	r.Close()
	r.Attach(make(chan any, 1))
	if r.Attached() {
		t.Fatalf("closed relay must ignore attaches")
	}
}
