package survey

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ent0n29/voicesurvey/internal/catalog"
	"github.com/ent0n29/voicesurvey/internal/matcher"
	"github.com/ent0n29/voicesurvey/internal/observability"
	"github.com/ent0n29/voicesurvey/internal/voice"
)

var (
	// ErrInvalidOption means the submitted answer is not one of the current question's options.
	ErrInvalidOption = errors.New("invalid option")
	// ErrSessionComplete rejects answers and captures after the last question.
	ErrSessionComplete = errors.New("survey already complete")
	// ErrAnswerPending rejects input while an accepted answer is settling.
	ErrAnswerPending = errors.New("answer already accepted for this question")
	// ErrSessionClosed rejects every operation after Close.
	ErrSessionClosed = errors.New("survey session closed")
)

const (
	// DefaultSettleDelay is the pause between an accepted answer and the next question.
	DefaultSettleDelay = 500 * time.Millisecond
	// DefaultClosingMessage is spoken once the last question is answered.
	DefaultClosingMessage = "Thank you for completing the survey! Your responses have been recorded."

	sourceDirect = "direct"
	sourceVoice  = "voice"
)

// Scheduler runs f once after d and returns a func that cancels it.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func timeScheduler(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option configures an Engine.
type Option func(*Engine)

// WithSettleDelay overrides DefaultSettleDelay. Negative values are ignored.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.settleDelay = d
		}
	}
}

// WithClosingMessage overrides DefaultClosingMessage.
func WithClosingMessage(text string) Option {
	return func(e *Engine) { e.closingMessage = text }
}

// WithScheduler replaces time.AfterFunc for the settle delay.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.schedule = s
		}
	}
}

// WithStateListener registers a callback run after every state change.
// Snapshots reach it one at a time, in revision order.
func WithStateListener(fn func(Snapshot)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithCompletionHook registers a callback that receives the final responses
// each time the survey completes.
func WithCompletionHook(fn func(responses map[int]string)) Option {
	return func(e *Engine) { e.onComplete = fn }
}

// WithMetrics records answers, voice outcomes and stale callbacks. Nil disables metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine drives one survey run. It is the only writer of its State. Every
// operation and every asynchronous completion is applied under one lock, so
// they are processed one at a time. Completions carry the tag they were
// issued with and are dropped unless that tag is still current.
type Engine struct {
	catalog        *catalog.Catalog
	output         *voice.Output
	input          *voice.Input
	notifier       Notifier
	settleDelay    time.Duration
	closingMessage string
	schedule       Scheduler
	onChange       func(Snapshot)
	onComplete     func(map[int]string)
	metrics        *observability.Metrics

	mu              sync.Mutex
	revision        uint64
	outbox          []effects
	delivering      bool
	state           State
	phase           Phase
	started         bool
	closed          bool
	gen             uint64
	speakTag        voice.Tag
	captureTag      voice.Tag
	settleTag       voice.Tag
	stopSettle      func() bool
	runStartedAt    time.Time
	questionAskedAt time.Time
	captureAt       time.Time
}

// effects collects work that must happen after the lock is released.
type effects struct {
	changed   bool
	snap      *Snapshot
	notes     []Notification
	completed map[int]string
	elapsed   time.Duration
}

func (fx *effects) notify(n Notification) { fx.notes = append(fx.notes, n) }

func (fx *effects) empty() bool {
	return fx.snap == nil && len(fx.notes) == 0 && fx.completed == nil
}

func NewEngine(cat *catalog.Catalog, output *voice.Output, input *voice.Input, notifier Notifier, opts ...Option) *Engine {
	if output == nil {
		output = voice.NewOutput(nil, 1)
	}
	if input == nil {
		input = voice.NewInput(nil)
	}
	if notifier == nil {
		notifier = discardNotifier{}
	}
	e := &Engine{
		catalog:        cat,
		output:         output,
		input:          input,
		notifier:       notifier,
		settleDelay:    DefaultSettleDelay,
		closingMessage: DefaultClosingMessage,
		schedule:       timeScheduler,
		state:          newState(),
		phase:          PhaseAsking,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start enters the first question and speaks it. Calls after the first are no-ops.
func (e *Engine) Start() {
	e.dispatch(func(fx *effects) error {
		if e.started || e.closed {
			return nil
		}
		e.started = true
		e.runStartedAt = time.Now()
		e.enterAskingLocked(0, fx)
		return nil
	})
}

// SubmitAnswer records option for the current question and schedules the
// move to the next one. Any in-flight capture or utterance is cancelled.
func (e *Engine) SubmitAnswer(option string) error {
	return e.dispatch(func(fx *effects) error {
		if err := e.acceptingLocked(); err != nil {
			return err
		}
		q, err := e.catalog.Get(e.state.CurrentIndex)
		if err != nil {
			return err
		}
		if !q.HasOption(option) {
			return fmt.Errorf("%w: %q is not an option of question %d", ErrInvalidOption, option, q.ID)
		}
		e.acceptLocked(q, option, sourceDirect, fx)
		return nil
	})
}

// StartVoiceCapture starts one capture for the current question. The
// transcript is matched against the question's options when it arrives.
func (e *Engine) StartVoiceCapture() error {
	return e.dispatch(func(fx *effects) error {
		if err := e.acceptingLocked(); err != nil {
			return err
		}
		if !e.input.Available() {
			return voice.ErrCapabilityUnavailable
		}
		if e.captureTag.Generation != 0 {
			return voice.ErrCaptureActive
		}
		tag := e.nextTagLocked()
		if err := e.input.StartCapture(tag, e.handleCapture); err != nil {
			return err
		}
		e.captureTag = tag
		e.captureAt = time.Now()
		e.state.Listening = true
		e.phase = PhaseAwaitingVoice
		fx.changed = true
		return nil
	})
}

// RepeatQuestion speaks the current question again, replacing any utterance
// still playing.
func (e *Engine) RepeatQuestion() error {
	return e.dispatch(func(fx *effects) error {
		if err := e.acceptingLocked(); err != nil {
			return err
		}
		q, err := e.catalog.Get(e.state.CurrentIndex)
		if err != nil {
			return err
		}
		e.speakLocked(q.Text)
		fx.changed = true
		return nil
	})
}

// Restart clears every response and flag and returns to the first question.
func (e *Engine) Restart() error {
	return e.dispatch(func(fx *effects) error {
		if e.closed {
			return ErrSessionClosed
		}
		e.haltLocked()
		e.state = newState()
		e.started = true
		e.runStartedAt = time.Now()
		e.enterAskingLocked(0, fx)
		return nil
	})
}

// Close cancels timers and speech activity. Later operations fail with
// ErrSessionClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.haltLocked()
}

// CurrentQuestion returns the question being asked, or false once complete.
func (e *Engine) CurrentQuestion() (catalog.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Complete {
		return catalog.Question{}, false
	}
	q, err := e.catalog.Get(e.state.CurrentIndex)
	if err != nil {
		return catalog.Question{}, false
	}
	return q, true
}

// SpeechAvailable reports which speech capabilities resolved at construction.
func (e *Engine) SpeechAvailable() (output, input bool) {
	return e.output.Available(), e.input.Available()
}

// IsListening reports whether a voice capture is in flight.
func (e *Engine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Listening
}

// IsSpeaking reports whether a question or closing message is being spoken.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Speaking
}

// IsComplete reports whether every question has been answered.
func (e *Engine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Complete
}

// Responses returns a copy of the recorded answers keyed by question id.
func (e *Engine) Responses() map[int]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.responsesCopy()
}

// Snapshot returns the current state as the presentation layer sees it.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// dispatch applies fn under the lock and queues its listener work in the
// outbox. Whichever caller finds nobody delivering drains the outbox in
// order; the others return at once and their work is delivered by it.
func (e *Engine) dispatch(fn func(fx *effects) error) error {
	var fx effects
	e.mu.Lock()
	err := fn(&fx)
	if fx.changed {
		e.revision++
		if e.onChange != nil {
			snap := e.snapshotLocked()
			fx.snap = &snap
		}
	}
	if !fx.empty() {
		e.outbox = append(e.outbox, fx)
	}
	if e.delivering {
		e.mu.Unlock()
		return err
	}
	e.delivering = true
	for len(e.outbox) > 0 {
		batch := e.outbox
		e.outbox = nil
		e.mu.Unlock()
		for i := range batch {
			e.deliver(&batch[i])
		}
		e.mu.Lock()
	}
	e.delivering = false
	e.mu.Unlock()
	return err
}

func (e *Engine) deliver(fx *effects) {
	if fx.snap != nil {
		e.onChange(*fx.snap)
	}
	for _, n := range fx.notes {
		e.notifier.Notify(n)
	}
	if fx.completed != nil {
		e.metrics.ObserveCompletion(fx.elapsed)
		if e.onComplete != nil {
			e.onComplete(fx.completed)
		}
	}
}

func (e *Engine) acceptingLocked() error {
	switch {
	case e.closed:
		return ErrSessionClosed
	case e.state.Complete:
		return ErrSessionComplete
	case e.phase == PhaseAdvancing:
		return ErrAnswerPending
	}
	return nil
}

func (e *Engine) nextTagLocked() voice.Tag {
	e.gen++
	return voice.Tag{Index: e.state.CurrentIndex, Generation: e.gen}
}

func (e *Engine) enterAskingLocked(index int, fx *effects) {
	e.state.CurrentIndex = index
	e.phase = PhaseAsking
	e.questionAskedAt = time.Now()
	fx.changed = true
	if q, err := e.catalog.Get(index); err == nil {
		e.speakLocked(q.Text)
	}
}

func (e *Engine) speakLocked(text string) {
	tag := e.nextTagLocked()
	if e.output.Speak(tag, text, e.handleSpeech) {
		e.speakTag = tag
		e.state.Speaking = true
		return
	}
	e.speakTag = voice.Tag{}
	e.state.Speaking = false
}

func (e *Engine) acceptLocked(q catalog.Question, option, source string, fx *effects) {
	e.cancelCaptureLocked()
	e.cancelSpeechLocked()

	e.state.Responses[q.ID] = option
	e.phase = PhaseAdvancing
	fx.changed = true
	e.metrics.ObserveAnswer(q.ID, source, sinceOrZero(e.questionAskedAt))

	tag := e.nextTagLocked()
	e.settleTag = tag
	e.stopSettle = e.schedule(e.settleDelay, func() { e.handleSettled(tag) })
}

func (e *Engine) completeLocked(fx *effects) {
	e.state.Complete = true
	e.state.CurrentIndex = e.catalog.Len()
	e.phase = PhaseCompleted
	fx.changed = true
	e.speakLocked(e.closingMessage)
	fx.notify(Notification{
		Code:     CodeSurveyComplete,
		Title:    "Survey Complete!",
		Message:  "Thank you for your valuable feedback.",
		Severity: SeverityInfo,
	})
	fx.completed = e.state.responsesCopy()
	fx.elapsed = time.Since(e.runStartedAt)
}

func (e *Engine) cancelCaptureLocked() {
	if e.captureTag.Generation != 0 {
		e.input.Cancel()
	}
	e.captureTag = voice.Tag{}
	e.state.Listening = false
}

func (e *Engine) cancelSpeechLocked() {
	if e.speakTag.Generation != 0 {
		e.output.Cancel()
	}
	e.speakTag = voice.Tag{}
	e.state.Speaking = false
}

func (e *Engine) haltLocked() {
	if e.stopSettle != nil {
		e.stopSettle()
		e.stopSettle = nil
	}
	e.settleTag = voice.Tag{}
	e.cancelCaptureLocked()
	e.cancelSpeechLocked()
}

func (e *Engine) handleSettled(tag voice.Tag) {
	e.dispatch(func(fx *effects) error {
		if e.closed || tag != e.settleTag {
			e.metrics.ObserveStaleCallback("settle")
			return nil
		}
		e.settleTag = voice.Tag{}
		e.stopSettle = nil
		next := tag.Index + 1
		if next >= e.catalog.Len() {
			e.completeLocked(fx)
			return nil
		}
		e.enterAskingLocked(next, fx)
		return nil
	})
}

func (e *Engine) handleSpeech(evt voice.OutputEvent) {
	e.dispatch(func(fx *effects) error {
		if e.closed || e.speakTag.Generation == 0 || evt.Tag != e.speakTag {
			e.metrics.ObserveStaleCallback("output")
			return nil
		}
		e.speakTag = voice.Tag{}
		e.state.Speaking = false
		e.metrics.ObserveSpeechOutcome(string(evt.Kind))
		fx.changed = true
		return nil
	})
}

func (e *Engine) handleCapture(evt voice.InputEvent) {
	e.dispatch(func(fx *effects) error {
		if e.closed || e.captureTag.Generation == 0 || evt.Tag != e.captureTag {
			e.metrics.ObserveStaleCallback("input")
			return nil
		}
		e.captureTag = voice.Tag{}
		e.state.Listening = false
		if e.phase == PhaseAwaitingVoice {
			e.phase = PhaseAsking
		}
		fx.changed = true
		q, err := e.catalog.Get(e.state.CurrentIndex)
		if err != nil {
			return nil
		}
		captured := sinceOrZero(e.captureAt)

		if evt.Err != nil {
			e.metrics.ObserveVoiceOutcome(q.ID, observability.VoiceError, captured)
			fx.notify(Notification{
				Code:     CodeRecognitionError,
				Title:    "Voice Recognition Error",
				Message:  "Please try again or use touch input.",
				Severity: SeverityError,
			})
			return nil
		}

		option, ok := matcher.Match(evt.Transcript, q.Options)
		if !ok {
			e.metrics.ObserveVoiceOutcome(q.ID, observability.VoiceNoMatch, captured)
			fx.notify(Notification{
				Code:     CodeNoMatchFound,
				Title:    "Voice Not Recognized",
				Message:  "Please try again or tap an option.",
				Severity: SeverityError,
			})
			return nil
		}
		e.metrics.ObserveVoiceOutcome(q.ID, observability.VoiceMatched, captured)
		e.acceptLocked(q, option, sourceVoice, fx)
		fx.notify(Notification{
			Code:     CodeVoiceRecorded,
			Title:    "Voice Response Recorded",
			Message:  "Selected: " + option,
			Severity: SeverityInfo,
		})
		return nil
	})
}

func (e *Engine) snapshotLocked() Snapshot {
	total := e.catalog.Len()
	snap := Snapshot{
		Revision:  e.revision,
		Phase:     e.phase,
		Index:     e.state.CurrentIndex,
		Position:  min(e.state.CurrentIndex+1, total),
		Total:     total,
		Responses: e.state.responsesCopy(),
		Listening: e.state.Listening,
		Speaking:  e.state.Speaking,
		Complete:  e.state.Complete,
	}
	if !e.state.Complete {
		if q, err := e.catalog.Get(e.state.CurrentIndex); err == nil {
			snap.Question = &q
		}
	}
	return snap
}

func sinceOrZero(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return time.Since(t)
}
