package voice

import (
	"context"
	"errors"
	"sync"
)

// InputEvent is the terminal event of one capture session: a transcript on
// success, otherwise Err holds the failure reason.
type InputEvent struct {
	Tag        Tag
	Transcript string
	Err        error
}

// Input is the speech input channel. Captures are single-shot and
// single-flight: a second StartCapture while one is active is rejected.
type Input struct {
	provider STTProvider

	mu        sync.Mutex
	seq       uint64
	listening bool
	cancel    context.CancelFunc
}

// NewInput wraps provider. A nil provider yields an unavailable channel.
func NewInput(provider STTProvider) *Input {
	return &Input{provider: provider}
}

func (i *Input) Available() bool { return i.provider != nil }

// Listening reports whether a capture is active.
func (i *Input) Listening() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.listening
}

// StartCapture begins a capture session. It fails with
// ErrCapabilityUnavailable or ErrCaptureActive without side effects; once
// accepted, onResult runs exactly once on its own goroutine unless the
// capture is cancelled first.
func (i *Input) StartCapture(tag Tag, onResult func(InputEvent)) error {
	if i.provider == nil {
		return ErrCapabilityUnavailable
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listening {
		return ErrCaptureActive
	}
	i.seq++
	seq := i.seq
	ctx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel
	i.listening = true

	results, err := i.provider.Capture(ctx)
	go i.await(seq, tag, results, err, cancel, onResult)
	return nil
}

// Cancel abandons the active capture without delivering its terminal event.
func (i *Input) Cancel() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
	i.seq++
	i.listening = false
}

func (i *Input) await(seq uint64, tag Tag, results <-chan CaptureResult, err error, cancel context.CancelFunc, onResult func(InputEvent)) {
	var res CaptureResult
	if err != nil {
		res.Err = err
	} else if results != nil {
		r, ok := <-results
		if !ok {
			r = CaptureResult{Err: errors.New("capture ended without result")}
		}
		res = r
	}
	cancel()

	i.mu.Lock()
	if seq != i.seq {
		i.mu.Unlock()
		return
	}
	i.listening = false
	i.cancel = nil
	i.mu.Unlock()

	if onResult != nil {
		onResult(InputEvent{Tag: tag, Transcript: res.Transcript, Err: res.Err})
	}
}
