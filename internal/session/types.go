package session

import (
	"time"

	"github.com/ent0n29/voicesurvey/internal/survey"
)

// Capabilities declares which speech features a session may use. They are
// resolved once when the session is created.
type Capabilities struct {
	TTS bool `json:"tts"`
	STT bool `json:"stt"`
}

// FullCapabilities enables both speech output and speech input.
func FullCapabilities() Capabilities {
	return Capabilities{TTS: true, STT: true}
}

// CreateRequest defines payload for creating a new survey session. Voice is
// optional; when omitted both capabilities are requested.
type CreateRequest struct {
	UserID string        `json:"user_id"`
	Voice  *Capabilities `json:"voice,omitempty"`
}

// CreateResponse returns created session metadata and the opening state.
type CreateResponse struct {
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	VoiceHost       string          `json:"voice_host"`
	Capabilities    Capabilities    `json:"capabilities"`
	StartedAt       time.Time       `json:"started_at"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
	InactivityTTLMS int64           `json:"inactivity_ttl_ms"`
	State           survey.Snapshot `json:"state"`
}
