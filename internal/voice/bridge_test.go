package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/ent0n29/voicesurvey/internal/protocol"
)

func TestBridgeSpeakRoundTrip(t *testing.T) {
	b := NewBridge("s1")
	out := make(chan any, 8)
	detach := b.Attach(out)
	defer detach()

	done, err := b.Speak(context.Background(), "How are the roads?", 0.8)
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	req, ok := expectEvent(t, (<-chan any)(out)).(protocol.SpeakRequest)
	if !ok {
		t.Fatalf("outbound message is not a SpeakRequest")
	}
	if req.SessionID != "s1" || req.Text != "How are the roads?" || req.Rate != 0.8 || req.UtteranceID == "" {
		t.Fatalf("unexpected speak request: %+v", req)
	}

	if !b.ResolveSpeech(req.UtteranceID, protocol.SpeechStatusEnded, "") {
		t.Fatalf("ResolveSpeech() = false for pending utterance")
	}
	if err := expectEvent(t, done); err != nil {
		t.Fatalf("utterance error = %v, want nil", err)
	}
	if b.ResolveSpeech(req.UtteranceID, protocol.SpeechStatusEnded, "") {
		t.Fatalf("ResolveSpeech() = true for an already resolved utterance")
	}
}

func TestBridgeSpeakCancelNotifiesClient(t *testing.T) {
	b := NewBridge("s1")
	out := make(chan any, 8)
	defer b.Attach(out)()

	ctx, cancel := context.WithCancel(context.Background())
	done, err := b.Speak(ctx, "hello", 1)
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	req := expectEvent(t, (<-chan any)(out)).(protocol.SpeakRequest)
	cancel()

	if err := expectEvent(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("utterance error = %v, want context.Canceled", err)
	}
	msg, ok := expectEvent(t, (<-chan any)(out)).(protocol.SpeakCancel)
	if !ok || msg.UtteranceID != req.UtteranceID {
		t.Fatalf("expected speak_cancel for %s, got %+v", req.UtteranceID, msg)
	}
}

func TestBridgeCaptureResults(t *testing.T) {
	b := NewBridge("s1")
	out := make(chan any, 8)
	defer b.Attach(out)()

	results, err := b.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	req := expectEvent(t, (<-chan any)(out)).(protocol.CaptureRequest)
	b.ResolveCapture(req.CaptureID, "", protocol.CaptureErrorNoSpeech)
	if res := expectEvent(t, results); !errors.Is(res.Err, ErrNoSpeech) {
		t.Fatalf("capture error = %v, want ErrNoSpeech", res.Err)
	}

	results, _ = b.Capture(context.Background())
	req = expectEvent(t, (<-chan any)(out)).(protocol.CaptureRequest)
	b.ResolveCapture(req.CaptureID, "sometimes", "")
	if res := expectEvent(t, results); res.Transcript != "sometimes" || res.Err != nil {
		t.Fatalf("unexpected capture result: %+v", res)
	}
}

func TestBridgeWithoutHost(t *testing.T) {
	b := NewBridge("s1")
	if _, err := b.Speak(context.Background(), "hi", 1); !errors.Is(err, ErrHostDetached) {
		t.Fatalf("Speak() error = %v, want ErrHostDetached", err)
	}
	if _, err := b.Capture(context.Background()); !errors.Is(err, ErrHostDetached) {
		t.Fatalf("Capture() error = %v, want ErrHostDetached", err)
	}
}

func TestBridgeDetachFailsPending(t *testing.T) {
	b := NewBridge("s1")
	out := make(chan any, 8)
	detach := b.Attach(out)

	results, err := b.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	detach()
	if res := expectEvent(t, results); !errors.Is(res.Err, ErrHostDetached) {
		t.Fatalf("capture error = %v, want ErrHostDetached", res.Err)
	}
}

func TestBridgeStaleDetachKeepsNewConnection(t *testing.T) {
	b := NewBridge("s1")
	first := make(chan any, 8)
	detachFirst := b.Attach(first)
	second := make(chan any, 8)
	defer b.Attach(second)()

	detachFirst()
	if _, err := b.Speak(context.Background(), "still here", 1); err != nil {
		t.Fatalf("Speak() after stale detach error = %v", err)
	}
	if _, ok := expectEvent(t, (<-chan any)(second)).(protocol.SpeakRequest); !ok {
		t.Fatalf("speak request not routed to the newer connection")
	}
}
