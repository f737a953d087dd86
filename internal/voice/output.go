package voice

import (
	"context"
	"errors"
	"sync"
)

type OutputEventKind string

const (
	OutputCompleted OutputEventKind = "completed"
	OutputCancelled OutputEventKind = "cancelled"
	OutputFailed    OutputEventKind = "failed"
)

// OutputEvent is the terminal event of one utterance.
type OutputEvent struct {
	Tag  Tag
	Kind OutputEventKind
	Err  error
}

// Output is the speech output channel. At most one utterance is in flight;
// a new Speak supersedes the previous one, whose terminal event is then never
// delivered. Without a provider every Speak is a silent no-op.
type Output struct {
	provider TTSProvider
	rate     float64

	mu       sync.Mutex
	seq      uint64
	speaking bool
	cancel   context.CancelFunc
}

// NewOutput wraps provider. A nil provider yields an unavailable channel.
func NewOutput(provider TTSProvider, rate float64) *Output {
	if rate <= 0 {
		rate = 1
	}
	return &Output{provider: provider, rate: rate}
}

func (o *Output) Available() bool { return o.provider != nil }

// Speaking reports whether an utterance is in flight.
func (o *Output) Speaking() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speaking
}

// Speak starts an utterance and reports whether it was accepted. onDone runs
// on its own goroutine, at most once, and only if the utterance is still the
// current one when it ends.
func (o *Output) Speak(tag Tag, text string, onDone func(OutputEvent)) bool {
	if o.provider == nil {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.seq++
	seq := o.seq
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.speaking = true

	done, err := o.provider.Speak(ctx, spokenText(text), o.rate)
	go o.await(seq, tag, done, err, cancel, onDone)
	return true
}

// Cancel stops the in-flight utterance without delivering its terminal event.
func (o *Output) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.seq++
	o.speaking = false
}

func (o *Output) await(seq uint64, tag Tag, done <-chan error, err error, cancel context.CancelFunc, onDone func(OutputEvent)) {
	if err == nil && done != nil {
		err = <-done
	}
	cancel()

	o.mu.Lock()
	if seq != o.seq {
		o.mu.Unlock()
		return
	}
	o.speaking = false
	o.cancel = nil
	o.mu.Unlock()

	if onDone != nil {
		onDone(OutputEvent{Tag: tag, Kind: outputKind(err), Err: err})
	}
}

func outputKind(err error) OutputEventKind {
	switch {
	case err == nil:
		return OutputCompleted
	case errors.Is(err, ErrUtteranceCancelled), errors.Is(err, context.Canceled):
		return OutputCancelled
	default:
		return OutputFailed
	}
}
