package survey

import "github.com/ent0n29/voicesurvey/internal/catalog"

// Phase is the engine's position in the question state machine.
type Phase string

const (
	PhaseAsking        Phase = "asking"
	PhaseAwaitingVoice Phase = "awaiting_voice"
	PhaseAdvancing     Phase = "advancing"
	PhaseCompleted     Phase = "completed"
)

// State is the progress record of one survey run. Engine is its only writer.
type State struct {
	CurrentIndex int
	Responses    map[int]string
	Listening    bool
	Speaking     bool
	Complete     bool
}

func newState() State {
	return State{Responses: make(map[int]string)}
}

func (s State) responsesCopy() map[int]string {
	out := make(map[int]string, len(s.Responses))
	for k, v := range s.Responses {
		out[k] = v
	}
	return out
}

// Snapshot is a read-only view of the engine for the presentation layer.
// Revision grows with every state change, so a consumer can drop a snapshot
// older than one it already holds.
type Snapshot struct {
	Revision  uint64            `json:"revision"`
	Phase     Phase             `json:"phase"`
	Index     int               `json:"index"`
	Position  int               `json:"position"`
	Total     int               `json:"total"`
	Question  *catalog.Question `json:"question,omitempty"`
	Responses map[int]string    `json:"responses"`
	Listening bool              `json:"listening"`
	Speaking  bool              `json:"speaking"`
	Complete  bool              `json:"complete"`
}
