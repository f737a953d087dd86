package voice

import (
	"context"
	"strings"
	"sync"
	"time"
)

var (
	_ TTSProvider = (*MockProvider)(nil)
	_ STTProvider = (*MockProvider)(nil)
)

// MockProvider simulates a host with both speech capabilities. Utterances
// finish after a fixed delay; captures return scripted transcripts in turn.
type MockProvider struct {
	speakDelay   time.Duration
	captureDelay time.Duration

	mu          sync.Mutex
	transcripts []string
	next        int
}

func NewMockProvider(speakDelay time.Duration, transcripts []string) *MockProvider {
	if speakDelay < 0 {
		speakDelay = 0
	}
	cleaned := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{"simulated voice input"}
	}
	return &MockProvider{
		speakDelay:   speakDelay,
		captureDelay: speakDelay,
		transcripts:  cleaned,
	}
}

func (p *MockProvider) Speak(ctx context.Context, text string, _ float64) (<-chan error, error) {
	done := make(chan error, 1)
	if strings.TrimSpace(text) == "" {
		done <- nil
		return done, nil
	}
	go func() {
		timer := time.NewTimer(p.speakDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			done <- ctx.Err()
		case <-timer.C:
			done <- nil
		}
	}()
	return done, nil
}

func (p *MockProvider) Capture(ctx context.Context) (<-chan CaptureResult, error) {
	p.mu.Lock()
	transcript := p.transcripts[p.next%len(p.transcripts)]
	p.next++
	p.mu.Unlock()

	results := make(chan CaptureResult, 1)
	go func() {
		timer := time.NewTimer(p.captureDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			results <- CaptureResult{Err: ctx.Err()}
		case <-timer.C:
			results <- CaptureResult{Transcript: transcript}
		}
	}()
	return results, nil
}
