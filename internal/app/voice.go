package app

import (
	"fmt"

	"github.com/ent0n29/voicesurvey/internal/config"
	"github.com/ent0n29/voicesurvey/internal/voice"
)

// voiceSetup resolves the speech providers each new session gets.
type voiceSetup struct {
	resolvedProvider string
	detail           string
	providersFor     func(sessionID string) (voice.TTSProvider, voice.STTProvider, *voice.Bridge)
}

func resolveVoiceProviders(cfg config.Config) (voiceSetup, error) {
	switch cfg.VoiceProvider {
	case config.VoiceProviderClient, "":
		return voiceSetup{
			resolvedProvider: config.VoiceProviderClient,
			detail:           "client (browser speech synthesis and recognition over websocket)",
			providersFor: func(sessionID string) (voice.TTSProvider, voice.STTProvider, *voice.Bridge) {
				b := voice.NewBridge(sessionID)
				return b, b, b
			},
		}, nil
	case config.VoiceProviderMock:
		detail := "mock"
		if len(cfg.MockSTTScript) > 0 {
			detail = fmt.Sprintf("mock (%d scripted transcripts)", len(cfg.MockSTTScript))
		}
		return voiceSetup{
			resolvedProvider: config.VoiceProviderMock,
			detail:           detail,
			providersFor: func(string) (voice.TTSProvider, voice.STTProvider, *voice.Bridge) {
				// Each session replays the script from the start.
				p := voice.NewMockProvider(cfg.MockTTSDelay, cfg.MockSTTScript)
				return p, p, nil
			},
		}, nil
	case config.VoiceProviderNone:
		return voiceSetup{
			resolvedProvider: config.VoiceProviderNone,
			detail:           "none (touch input only)",
			providersFor: func(string) (voice.TTSProvider, voice.STTProvider, *voice.Bridge) {
				return nil, nil, nil
			},
		}, nil
	default:
		return voiceSetup{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected client|mock|none)", cfg.VoiceProvider)
	}
}
