package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID             string       `json:"session_id"`
	UserID         string       `json:"user_id"`
	Status         Status       `json:"status"`
	VoiceHost      string       `json:"voice_host"`
	Capabilities   Capabilities `json:"capabilities"`
	StartedAt      time.Time    `json:"started_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	EndedAt        time.Time    `json:"ended_at,omitzero"`
}

type entry struct {
	meta    Session
	runtime *Runtime
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*entry
	inactivityTimeout time.Duration
	endedRetention    time.Duration
	voiceHost         string
	build             Builder
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration, build Builder) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	if build == nil {
		build = defaultBuilder
	}
	return &Manager{
		sessions:          make(map[string]*entry),
		inactivityTimeout: inactivityTimeout,
		endedRetention:    inactivityTimeout,
		build:             build,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// SetEndedRetention controls how long ended sessions stay readable before
// the janitor drops them.
func (m *Manager) SetEndedRetention(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.endedRetention = d
	}
}

// SetVoiceHost records the speech host mode reported on new sessions.
func (m *Manager) SetVoiceHost(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceHost = host
}

// Create registers a new session, builds its runtime and starts the survey.
// The returned session reports the capabilities that actually resolved.
func (m *Manager) Create(userID string, caps Capabilities) (*Session, *Runtime, error) {
	now := time.Now().UTC()
	m.mu.RLock()
	host := m.voiceHost
	m.mu.RUnlock()
	meta := Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         StatusActive,
		VoiceHost:      host,
		Capabilities:   caps,
		StartedAt:      now,
		LastActivityAt: now,
	}

	relay := NewRelay()
	rt, err := m.build(meta, relay)
	if err != nil {
		return nil, nil, fmt.Errorf("build session runtime: %w", err)
	}
	rt.Relay = relay
	meta.Capabilities.TTS, meta.Capabilities.STT = rt.Engine.SpeechAvailable()

	m.mu.Lock()
	m.sessions[meta.ID] = &entry{meta: meta, runtime: rt}
	m.mu.Unlock()

	rt.Engine.Start()
	return clone(&meta), rt, nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(&e.meta), nil
}

// Runtime returns the live runtime of an active session.
func (m *Manager) Runtime(sessionID string) (*Runtime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.meta.Status != StatusActive {
		return nil, fmt.Errorf("%w: session %s has ended", ErrNotFound, sessionID)
	}
	return e.runtime, nil
}

// Lookup returns a session and its runtime whether or not it has ended.
func (m *Manager) Lookup(sessionID string) (*Session, *Runtime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return clone(&e.meta), e.runtime, nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	e.meta.LastActivityAt = time.Now().UTC()
	return nil
}

// End stops the session's survey and marks it ended. Ending twice is allowed.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	var rt *Runtime
	if e.meta.Status == StatusActive {
		now := time.Now().UTC()
		e.meta.Status = StatusEnded
		e.meta.LastActivityAt = now
		e.meta.EndedAt = now
		rt = e.runtime
	}
	out := clone(&e.meta)
	m.mu.Unlock()

	rt.close()
	return out, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.sessions {
		if e.meta.Status == StatusActive {
			count++
		}
	}
	return count
}

// CloseAll ends every active session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id, e := range m.sessions {
		if e.meta.Status == StatusActive {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_, _ = m.End(id)
	}
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session
	var runtimes []*Runtime

	m.mu.Lock()
	for id, e := range m.sessions {
		if e.meta.Status != StatusActive {
			if now.Sub(e.meta.EndedAt) >= m.endedRetention {
				delete(m.sessions, id)
			}
			continue
		}
		if now.Sub(e.meta.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		e.meta.Status = StatusEnded
		e.meta.LastActivityAt = now
		e.meta.EndedAt = now
		expired = append(expired, clone(&e.meta))
		runtimes = append(runtimes, e.runtime)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, rt := range runtimes {
		rt.close()
	}
	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
