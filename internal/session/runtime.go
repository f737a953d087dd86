package session

import (
	"github.com/ent0n29/voicesurvey/internal/catalog"
	"github.com/ent0n29/voicesurvey/internal/survey"
	"github.com/ent0n29/voicesurvey/internal/voice"
)

// Runtime is the live machinery behind one session.
type Runtime struct {
	Engine *survey.Engine
	// Bridge is set when the client hosts speech; nil otherwise.
	Bridge *voice.Bridge
	Relay  *Relay
}

// Builder creates the runtime for a new session. The relay is already
// allocated so the engine's listeners can publish through it.
type Builder func(sess Session, relay *Relay) (*Runtime, error)

func defaultBuilder(_ Session, _ *Relay) (*Runtime, error) {
	return &Runtime{Engine: survey.NewEngine(catalog.RoadConditions(), nil, nil, nil)}, nil
}

func (rt *Runtime) close() {
	if rt == nil {
		return
	}
	if rt.Engine != nil {
		rt.Engine.Close()
	}
	if rt.Relay != nil {
		rt.Relay.Close()
	}
}
