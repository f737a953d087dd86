package voice

import (
	"context"
	"errors"
)

var (
	// ErrCapabilityUnavailable means the host has no speech capability of the requested kind.
	ErrCapabilityUnavailable = errors.New("speech capability unavailable")
	// ErrCaptureActive is returned when a capture is requested while one is already running.
	ErrCaptureActive = errors.New("speech capture already active")
	// ErrUtteranceCancelled is reported by providers when the host stopped an utterance early.
	ErrUtteranceCancelled = errors.New("utterance cancelled")
	// ErrNoSpeech is reported by providers when a capture ended without any speech.
	ErrNoSpeech = errors.New("no speech detected")
)

// Tag identifies the engine generation an asynchronous speech operation was
// issued under. Channels carry it untouched back to the caller.
type Tag struct {
	Index      int
	Generation uint64
}

// TTSProvider is a host text-to-speech capability. Speak starts one utterance
// and returns a channel that receives exactly one value when it ends: nil on
// normal completion, otherwise the reason it stopped. Cancelling ctx stops the
// utterance.
type TTSProvider interface {
	Speak(ctx context.Context, text string, rate float64) (<-chan error, error)
}

// CaptureResult is the single outcome of one capture session.
type CaptureResult struct {
	Transcript string
	Err        error
}

// STTProvider is a host speech-to-text capability. Capture starts one
// single-shot, non-streaming capture session and returns a channel that
// receives exactly one result. Cancelling ctx abandons the capture.
type STTProvider interface {
	Capture(ctx context.Context) (<-chan CaptureResult, error)
}
