package app

import (
	"context"
	"fmt"
	"log"

	"github.com/ent0n29/voicesurvey/internal/catalog"
	"github.com/ent0n29/voicesurvey/internal/config"
	"github.com/ent0n29/voicesurvey/internal/httpapi"
	"github.com/ent0n29/voicesurvey/internal/observability"
	"github.com/ent0n29/voicesurvey/internal/results"
	"github.com/ent0n29/voicesurvey/internal/session"
	"github.com/ent0n29/voicesurvey/internal/survey"
	"github.com/ent0n29/voicesurvey/internal/voice"
)

type VoiceInfo struct {
	Provider string
	Detail   string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Catalog  *catalog.Catalog
	Store    results.Store
	Recorder *results.Recorder
	Metrics  *observability.Metrics
	Voice    VoiceInfo

	// Cleanup should be called on shutdown to end sessions and release the store.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	voiceSetup, err := resolveVoiceProviders(cfg)
	if err != nil {
		return nil, err
	}
	cfg.VoiceProvider = voiceSetup.resolvedProvider

	store, err := results.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("results store init failed: %w", err)
	}
	recorder := results.NewRecorder(store, metrics)

	sessions := session.NewManager(cfg.SessionInactivityTimeout, newRuntimeBuilder(cfg, cat, voiceSetup, recorder, metrics))
	sessions.SetEndedRetention(cfg.SessionRetention)
	sessions.SetVoiceHost(voiceSetup.resolvedProvider)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.ObserveSessionEvent("expired")
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	api := httpapi.New(cfg, sessions, cat, store, metrics)

	cleanup := func() error {
		sessions.CloseAll()
		recorder.Wait()
		if err := store.Close(); err != nil {
			return fmt.Errorf("close results store: %w", err)
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Catalog:  cat,
		Store:    store,
		Recorder: recorder,
		Metrics:  metrics,
		Voice: VoiceInfo{
			Provider: voiceSetup.resolvedProvider,
			Detail:   voiceSetup.detail,
		},
		Cleanup: cleanup,
	}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.RoadConditions(), nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load question catalog %s: %w", path, err)
	}
	log.Printf("question catalog: %s (%d questions)", path, cat.Len())
	return cat, nil
}

// newRuntimeBuilder wires one engine per session: speech providers from the
// voice setup, notifications and snapshots out through the session relay,
// completed runs into the results recorder.
func newRuntimeBuilder(cfg config.Config, cat *catalog.Catalog, vs voiceSetup, recorder *results.Recorder, metrics *observability.Metrics) session.Builder {
	return func(sess session.Session, relay *session.Relay) (*session.Runtime, error) {
		tts, stt, bridge := vs.providersFor(sess.ID)
		if !sess.Capabilities.TTS {
			tts = nil
		}
		if !sess.Capabilities.STT {
			stt = nil
		}
		notifier := survey.NotifierFunc(func(n survey.Notification) {
			relay.Publish(session.NotificationMessage(sess.ID, n))
		})
		engine := survey.NewEngine(
			cat,
			voice.NewOutput(tts, cfg.SpeechRate),
			voice.NewInput(stt),
			notifier,
			survey.WithSettleDelay(cfg.SettleDelay),
			survey.WithClosingMessage(cfg.ClosingMessage),
			survey.WithMetrics(metrics),
			survey.WithStateListener(func(snap survey.Snapshot) {
				relay.Publish(session.StateMessage(sess.ID, snap))
			}),
			survey.WithCompletionHook(func(responses map[int]string) {
				metrics.ObserveSessionEvent("completed")
				recorder.Record(results.Submission{
					SessionID: sess.ID,
					UserID:    sess.UserID,
					Responses: responses,
				})
			}),
		)
		return &session.Runtime{Engine: engine, Bridge: bridge}, nil
	}
}
