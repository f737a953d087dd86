package session

import (
	"github.com/ent0n29/voicesurvey/internal/protocol"
	"github.com/ent0n29/voicesurvey/internal/survey"
)

// StateMessage renders an engine snapshot as a websocket payload.
func StateMessage(sessionID string, snap survey.Snapshot) protocol.StateSnapshot {
	return protocol.StateSnapshot{
		Type:      protocol.TypeStateSnapshot,
		SessionID: sessionID,
		Revision:  snap.Revision,
		Phase:     string(snap.Phase),
		Position:  snap.Position,
		Total:     snap.Total,
		Question:  snap.Question,
		Responses: snap.Responses,
		Listening: snap.Listening,
		Speaking:  snap.Speaking,
		Complete:  snap.Complete,
	}
}

func NotificationMessage(sessionID string, n survey.Notification) protocol.Notification {
	return protocol.Notification{
		Type:      protocol.TypeNotification,
		SessionID: sessionID,
		Code:      n.Code,
		Title:     n.Title,
		Message:   n.Message,
		Severity:  string(n.Severity),
	}
}
