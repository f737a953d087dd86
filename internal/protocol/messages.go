package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/voicesurvey/internal/catalog"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl       MessageType = "client_control"
	TypeClientSpeechEvent   MessageType = "client_speech_event"
	TypeClientCaptureResult MessageType = "client_capture_result"

	TypeStateSnapshot  MessageType = "state_snapshot"
	TypeNotification   MessageType = "notification"
	TypeSpeakRequest   MessageType = "speak_request"
	TypeSpeakCancel    MessageType = "speak_cancel"
	TypeCaptureRequest MessageType = "capture_request"
	TypeCaptureCancel  MessageType = "capture_cancel"
	TypeErrorEvent     MessageType = "error_event"
)

// Client control actions.
const (
	ActionSubmitAnswer = "submit_answer"
	ActionStartVoice   = "start_voice"
	ActionRepeat       = "repeat"
	ActionRestart      = "restart"
)

// Speech event statuses reported by the client.
const (
	SpeechStatusEnded     = "ended"
	SpeechStatusCancelled = "cancelled"
	SpeechStatusError     = "error"
)

// CaptureErrorNoSpeech is the client error string for a capture that heard nothing.
const CaptureErrorNoSpeech = "no-speech"

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Option    string      `json:"option,omitempty"`
}

type ClientSpeechEvent struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
	Status      string      `json:"status"`
	Detail      string      `json:"detail,omitempty"`
}

type ClientCaptureResult struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	CaptureID  string      `json:"capture_id"`
	Transcript string      `json:"transcript,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type StateSnapshot struct {
	Type      MessageType       `json:"type"`
	SessionID string            `json:"session_id"`
	Revision  uint64            `json:"revision"`
	Phase     string            `json:"phase"`
	Position  int               `json:"position"`
	Total     int               `json:"total"`
	Question  *catalog.Question `json:"question,omitempty"`
	Responses map[int]string    `json:"responses"`
	Listening bool              `json:"listening"`
	Speaking  bool              `json:"speaking"`
	Complete  bool              `json:"complete"`
}

type Notification struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Severity  string      `json:"severity"`
}

type SpeakRequest struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
	Text        string      `json:"text"`
	Rate        float64     `json:"rate"`
}

type SpeakCancel struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
}

type CaptureRequest struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	CaptureID string      `json:"capture_id"`
}

type CaptureCancel struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	CaptureID string      `json:"capture_id"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionSubmitAnswer:
			if strings.TrimSpace(msg.Option) == "" {
				return nil, errors.New("invalid client_control: submit_answer requires option")
			}
		case ActionStartVoice, ActionRepeat, ActionRestart:
		default:
			return nil, fmt.Errorf("invalid client_control: unknown action %q", msg.Action)
		}
		return msg, nil
	case TypeClientSpeechEvent:
		var msg ClientSpeechEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.UtteranceID == "" {
			return nil, errors.New("invalid client_speech_event")
		}
		switch msg.Status {
		case SpeechStatusEnded, SpeechStatusCancelled, SpeechStatusError:
		default:
			return nil, fmt.Errorf("invalid client_speech_event: unknown status %q", msg.Status)
		}
		return msg, nil
	case TypeClientCaptureResult:
		var msg ClientCaptureResult
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.CaptureID == "" {
			return nil, errors.New("invalid client_capture_result")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
