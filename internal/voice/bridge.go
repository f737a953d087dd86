package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ent0n29/voicesurvey/internal/protocol"
)

// ErrHostDetached is reported for bridged requests when no client connection
// is attached to carry them.
var ErrHostDetached = errors.New("speech host not connected")

var (
	_ TTSProvider = (*Bridge)(nil)
	_ STTProvider = (*Bridge)(nil)
)

// Bridge forwards speech requests to the client attached over the session
// websocket and completes them from the client's replies. The browser is the
// speech host; the bridge only tracks which requests are still pending.
type Bridge struct {
	sessionID string

	mu       sync.Mutex
	out      chan<- any
	attachID uint64
	speeches map[string]chan error
	captures map[string]chan CaptureResult
}

func NewBridge(sessionID string) *Bridge {
	return &Bridge{
		sessionID: sessionID,
		speeches:  make(map[string]chan error),
		captures:  make(map[string]chan CaptureResult),
	}
}

// Attach routes future requests to out. Requests pending on a previous
// connection fail with ErrHostDetached. The returned func detaches out if it
// is still the attached connection.
func (b *Bridge) Attach(out chan<- any) func() {
	b.mu.Lock()
	b.failPendingLocked()
	b.attachID++
	id := b.attachID
	b.out = out
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.attachID != id {
			return
		}
		b.out = nil
		b.failPendingLocked()
	}
}

func (b *Bridge) Speak(ctx context.Context, text string, rate float64) (<-chan error, error) {
	id := uuid.NewString()
	done := make(chan error, 1)

	b.mu.Lock()
	if b.out == nil {
		b.mu.Unlock()
		return nil, ErrHostDetached
	}
	b.speeches[id] = done
	sent := b.sendLocked(protocol.SpeakRequest{
		Type:        protocol.TypeSpeakRequest,
		SessionID:   b.sessionID,
		UtteranceID: id,
		Text:        text,
		Rate:        rate,
	})
	b.mu.Unlock()
	if !sent {
		b.ResolveSpeech(id, protocol.SpeechStatusError, "outbound queue full")
		return done, nil
	}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		ch, pending := b.speeches[id]
		if pending {
			delete(b.speeches, id)
			b.sendLocked(protocol.SpeakCancel{
				Type:        protocol.TypeSpeakCancel,
				SessionID:   b.sessionID,
				UtteranceID: id,
			})
		}
		b.mu.Unlock()
		if pending {
			ch <- ctx.Err()
		}
	}()
	return done, nil
}

func (b *Bridge) Capture(ctx context.Context) (<-chan CaptureResult, error) {
	id := uuid.NewString()
	results := make(chan CaptureResult, 1)

	b.mu.Lock()
	if b.out == nil {
		b.mu.Unlock()
		return nil, ErrHostDetached
	}
	b.captures[id] = results
	sent := b.sendLocked(protocol.CaptureRequest{
		Type:      protocol.TypeCaptureRequest,
		SessionID: b.sessionID,
		CaptureID: id,
	})
	b.mu.Unlock()
	if !sent {
		b.ResolveCapture(id, "", "outbound queue full")
		return results, nil
	}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		ch, pending := b.captures[id]
		if pending {
			delete(b.captures, id)
			b.sendLocked(protocol.CaptureCancel{
				Type:      protocol.TypeCaptureCancel,
				SessionID: b.sessionID,
				CaptureID: id,
			})
		}
		b.mu.Unlock()
		if pending {
			ch <- CaptureResult{Err: ctx.Err()}
		}
	}()
	return results, nil
}

// ResolveSpeech completes a pending utterance from a client speech event.
// Unknown or already resolved ids are ignored.
func (b *Bridge) ResolveSpeech(utteranceID, status, detail string) bool {
	b.mu.Lock()
	ch, ok := b.speeches[utteranceID]
	delete(b.speeches, utteranceID)
	b.mu.Unlock()
	if !ok {
		return false
	}

	switch status {
	case protocol.SpeechStatusEnded:
		ch <- nil
	case protocol.SpeechStatusCancelled:
		ch <- ErrUtteranceCancelled
	default:
		if strings.TrimSpace(detail) == "" {
			detail = "speech synthesis error"
		}
		ch <- errors.New(detail)
	}
	return true
}

// ResolveCapture completes a pending capture from a client capture result.
func (b *Bridge) ResolveCapture(captureID, transcript, errText string) bool {
	b.mu.Lock()
	ch, ok := b.captures[captureID]
	delete(b.captures, captureID)
	b.mu.Unlock()
	if !ok {
		return false
	}

	errText = strings.TrimSpace(errText)
	switch {
	case errText == "":
		ch <- CaptureResult{Transcript: transcript}
	case errText == protocol.CaptureErrorNoSpeech:
		ch <- CaptureResult{Err: ErrNoSpeech}
	default:
		ch <- CaptureResult{Err: errors.New(errText)}
	}
	return true
}

func (b *Bridge) sendLocked(msg any) bool {
	if b.out == nil {
		return false
	}
	select {
	case b.out <- msg:
		return true
	default:
		return false
	}
}

func (b *Bridge) failPendingLocked() {
	for id, ch := range b.speeches {
		delete(b.speeches, id)
		ch <- ErrHostDetached
	}
	for id, ch := range b.captures {
		delete(b.captures, id)
		ch <- CaptureResult{Err: ErrHostDetached}
	}
}
