package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.VoiceProvider != VoiceProviderClient {
		t.Fatalf("VoiceProvider = %q, want %q", cfg.VoiceProvider, VoiceProviderClient)
	}
	if cfg.SettleDelay != 500*time.Millisecond {
		t.Fatalf("SettleDelay = %s, want 500ms", cfg.SettleDelay)
	}
	if cfg.SpeechRate != 0.8 {
		t.Fatalf("SpeechRate = %v, want 0.8", cfg.SpeechRate)
	}
	if cfg.SessionInactivityTimeout != 10*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %s, want 10m", cfg.SessionInactivityTimeout)
	}
	if cfg.CatalogPath != "" || cfg.DatabaseURL != "" {
		t.Fatalf("expected empty catalog path and database url, got %q %q", cfg.CatalogPath, cfg.DatabaseURL)
	}
	if !strings.HasPrefix(cfg.ClosingMessage, "Thank you") {
		t.Fatalf("ClosingMessage = %q", cfg.ClosingMessage)
	}
}

func TestLoadMockProviderScript(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOICE_PROVIDER", "MOCK")
	t.Setenv("MOCK_STT_TRANSCRIPTS", "pretty poor | potholes everywhere||often")
	t.Setenv("MOCK_TTS_DELAY", "50ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VoiceProvider != VoiceProviderMock {
		t.Fatalf("VoiceProvider = %q, want mock", cfg.VoiceProvider)
	}
	want := []string{"pretty poor", "potholes everywhere", "often"}
	if len(cfg.MockSTTScript) != len(want) {
		t.Fatalf("MockSTTScript = %v, want %v", cfg.MockSTTScript, want)
	}
	for i := range want {
		if cfg.MockSTTScript[i] != want[i] {
			t.Fatalf("MockSTTScript[%d] = %q, want %q", i, cfg.MockSTTScript[i], want[i])
		}
	}
	if cfg.MockTTSDelay != 50*time.Millisecond {
		t.Fatalf("MockTTSDelay = %s, want 50ms", cfg.MockTTSDelay)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"VOICE_PROVIDER", "telepathy"},
		{"SURVEY_SPEECH_RATE", "0"},
		{"SURVEY_SPEECH_RATE", "fast"},
		{"SURVEY_SETTLE_DELAY", "-1s"},
		{"APP_SESSION_INACTIVITY_TIMEOUT", "1s"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() error = nil, want error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_SESSION_RETENTION",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"VOICE_PROVIDER",
		"MOCK_STT_TRANSCRIPTS",
		"MOCK_TTS_DELAY",
		"SURVEY_CATALOG_PATH",
		"SURVEY_SETTLE_DELAY",
		"SURVEY_SPEECH_RATE",
		"SURVEY_CLOSING_MESSAGE",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
