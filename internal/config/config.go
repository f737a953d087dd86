package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Voice host modes.
const (
	VoiceProviderClient = "client"
	VoiceProviderMock   = "mock"
	VoiceProviderNone   = "none"
)

// Config contains all runtime settings for the survey service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	SessionRetention         time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	VoiceProvider  string
	MockSTTScript  []string
	MockTTSDelay   time.Duration
	SpeechRate     float64
	CatalogPath    string
	SettleDelay    time.Duration
	ClosingMessage string
	DatabaseURL    string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "voicesurvey"),
		AllowAnyOrigin:           false,
		VoiceProvider:            strings.ToLower(envOrDefault("VOICE_PROVIDER", VoiceProviderClient)),
		MockSTTScript:            splitList(os.Getenv("MOCK_STT_TRANSCRIPTS")),
		MockTTSDelay:             300 * time.Millisecond,
		SpeechRate:               0.8,
		CatalogPath:              stringsTrimSpace("SURVEY_CATALOG_PATH"),
		SettleDelay:              500 * time.Millisecond,
		ClosingMessage:           envOrDefault("SURVEY_CLOSING_MESSAGE", "Thank you for completing the survey! Your responses have been recorded."),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		SessionRetention:         30 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionRetention, err = durationFromEnv("APP_SESSION_RETENTION", cfg.SessionRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MockTTSDelay, err = durationFromEnv("MOCK_TTS_DELAY", cfg.MockTTSDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.SettleDelay, err = durationFromEnv("SURVEY_SETTLE_DELAY", cfg.SettleDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeechRate, err = floatFromEnv("SURVEY_SPEECH_RATE", cfg.SpeechRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.SessionRetention <= 0 {
		return Config{}, fmt.Errorf("APP_SESSION_RETENTION must be positive")
	}
	switch cfg.VoiceProvider {
	case VoiceProviderClient, VoiceProviderMock, VoiceProviderNone:
	default:
		return Config{}, fmt.Errorf("VOICE_PROVIDER must be one of client, mock, none (got %q)", cfg.VoiceProvider)
	}
	if cfg.SpeechRate <= 0 || cfg.SpeechRate > 4 {
		return Config{}, fmt.Errorf("SURVEY_SPEECH_RATE must be in (0, 4]")
	}
	if cfg.SettleDelay < 0 {
		return Config{}, fmt.Errorf("SURVEY_SETTLE_DELAY must be >= 0")
	}
	if cfg.MockTTSDelay < 0 {
		return Config{}, fmt.Errorf("MOCK_TTS_DELAY must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// splitList parses a '|' separated list, dropping blank entries.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
