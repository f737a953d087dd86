package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/voicesurvey/internal/catalog"
	"github.com/ent0n29/voicesurvey/internal/config"
	"github.com/ent0n29/voicesurvey/internal/observability"
	"github.com/ent0n29/voicesurvey/internal/protocol"
	"github.com/ent0n29/voicesurvey/internal/results"
	"github.com/ent0n29/voicesurvey/internal/session"
	"github.com/ent0n29/voicesurvey/internal/survey"
	"github.com/ent0n29/voicesurvey/internal/voice"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	catalog  *catalog.Catalog
	store    results.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, cat *catalog.Catalog, store results.Store, metrics *observability.Metrics) *Server {
	if cat == nil {
		cat = catalog.RoadConditions()
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		catalog:  cat,
		store:    store,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a survey session, so another
				// site cannot start captures on the respondent's microphone.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Get("/v1/survey/catalog", s.handleCatalog)
	r.Get("/v1/survey/submissions", s.handleListSubmissions)
	r.Post("/v1/survey/session", s.handleCreateSession)
	r.Get("/v1/survey/session/ws", s.handleSessionWS)
	r.Route("/v1/survey/session/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/answer", s.handleSubmitAnswer)
		r.Post("/voice", s.handleStartVoice)
		r.Post("/repeat", s.handleRepeat)
		r.Post("/restart", s.handleRestart)
		r.Get("/responses", s.handleResponses)
		r.Post("/end", s.handleEndSession)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"voice_provider":  s.cfg.VoiceProvider,
		"store_mode":      s.storeMode(),
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"voice_provider": s.cfg.VoiceProvider,
		"store_mode":     s.storeMode(),
		"questions":      s.catalog.Len(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"total":     s.catalog.Len(),
		"questions": s.catalog.All(),
	})
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, map[string]any{"submissions": []results.Submission{}})
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}
	items, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if items == nil {
		items = []results.Submission{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"submissions": items})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	caps := session.FullCapabilities()
	if req.Voice != nil {
		caps = *req.Voice
	}

	sess, rt, err := s.sessions.Create(req.UserID, caps)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session_create_failed", err.Error())
		return
	}
	s.observeActive()
	s.metrics.ObserveSessionEvent("created")

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		VoiceHost:       sess.VoiceHost,
		Capabilities:    sess.Capabilities,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
		State:           rt.Engine.Snapshot(),
	})
}

type sessionView struct {
	Session *session.Session `json:"session"`
	State   survey.Snapshot  `json:"state"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, rt, err := s.sessions.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionView{Session: sess, State: rt.Engine.Snapshot()})
}

type answerRequest struct {
	Option string `json:"option"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be {\"option\": \"...\"}")
		return
	}
	s.runOperation(w, r, http.StatusOK, func(e *survey.Engine) error {
		return e.SubmitAnswer(req.Option)
	})
}

func (s *Server) handleStartVoice(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, http.StatusAccepted, (*survey.Engine).StartVoiceCapture)
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, http.StatusOK, (*survey.Engine).RepeatQuestion)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, http.StatusOK, (*survey.Engine).Restart)
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	sess, rt, err := s.sessions.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"responses":  rt.Engine.Responses(),
		"complete":   rt.Engine.IsComplete(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.observeActive()
	s.metrics.ObserveSessionEvent("ended")
	respondJSON(w, http.StatusOK, sess)
}

// runOperation applies op to the session's engine and answers with the
// resulting snapshot.
func (s *Server) runOperation(w http.ResponseWriter, r *http.Request, status int, op func(*survey.Engine) error) {
	id := chi.URLParam(r, "id")
	rt, err := s.sessions.Runtime(id)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	_ = s.sessions.Touch(id)
	if err := op(rt.Engine); err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, status, rt.Engine.Snapshot())
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	rt, err := s.sessions.Runtime(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ObserveSessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	outbound <- session.StateMessage(sessionID, rt.Engine.Snapshot())

	detachRelay := rt.Relay.Attach(outbound)
	detachBridge := func() {}
	if rt.Bridge != nil {
		detachBridge = rt.Bridge.Attach(outbound)
		// The opening prompt was spoken before any host was attached.
		if err := rt.Engine.RepeatQuestion(); err != nil && !errors.Is(err, survey.ErrSessionComplete) {
			log.Printf("survey session %s: re-speak on attach: %v", sessionID, err)
		}
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					_ = conn.Close()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.observeWS("outbound", t)
				}
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		_ = s.sessions.Touch(sessionID)

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			sendError(outbound, sessionID, "invalid_client_message", "gateway", err.Error())
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.observeWS("inbound", t)
		}
		s.handleClientMessage(rt, sessionID, parsed, outbound)
	}

	detachBridge()
	detachRelay()
	cancel()
	<-writerDone
	s.metrics.ObserveSessionEvent("ws_disconnected")
}

func (s *Server) handleClientMessage(rt *session.Runtime, sessionID string, msg any, outbound chan<- any) {
	switch m := msg.(type) {
	case protocol.ClientControl:
		if m.SessionID != sessionID {
			sendError(outbound, sessionID, "session_mismatch", "gateway", "control message targets another session")
			return
		}
		var err error
		switch m.Action {
		case protocol.ActionSubmitAnswer:
			err = rt.Engine.SubmitAnswer(m.Option)
		case protocol.ActionStartVoice:
			err = rt.Engine.StartVoiceCapture()
		case protocol.ActionRepeat:
			err = rt.Engine.RepeatQuestion()
		case protocol.ActionRestart:
			err = rt.Engine.Restart()
		}
		if err != nil {
			_, code := classifyError(err)
			sendError(outbound, sessionID, code, "engine", err.Error())
		}
	case protocol.ClientSpeechEvent:
		if rt.Bridge != nil {
			rt.Bridge.ResolveSpeech(m.UtteranceID, m.Status, m.Detail)
		}
	case protocol.ClientCaptureResult:
		if rt.Bridge != nil {
			rt.Bridge.ResolveCapture(m.CaptureID, m.Transcript, m.Error)
		}
	}
}

func sendError(outbound chan<- any, sessionID, code, source, detail string) {
	select {
	case outbound <- protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    source,
		Retryable: false,
		Detail:    detail,
	}:
	default:
		// Drop when the outbound queue is saturated; writes stay single-threaded.
	}
}

// classifyError maps operation errors to an HTTP status and error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, survey.ErrSessionClosed):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, survey.ErrInvalidOption):
		return http.StatusUnprocessableEntity, "invalid_option"
	case errors.Is(err, survey.ErrSessionComplete):
		return http.StatusConflict, "session_complete"
	case errors.Is(err, survey.ErrAnswerPending):
		return http.StatusConflict, "answer_pending"
	case errors.Is(err, voice.ErrCaptureActive):
		return http.StatusConflict, "already_listening"
	case errors.Is(err, voice.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable, "capability_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondOperationError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	respondError(w, status, code, err.Error())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) storeMode() string {
	switch s.store.(type) {
	case *results.PostgresStore:
		return "postgres"
	case nil:
		return "disabled"
	default:
		return "in-memory"
	}
}

func (s *Server) observeActive() {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
}

func (s *Server) observeWS(direction string, t protocol.MessageType) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientControl:
		return m.Type, true
	case protocol.ClientSpeechEvent:
		return m.Type, true
	case protocol.ClientCaptureResult:
		return m.Type, true
	case protocol.StateSnapshot:
		return m.Type, true
	case protocol.Notification:
		return m.Type, true
	case protocol.SpeakRequest:
		return m.Type, true
	case protocol.SpeakCancel:
		return m.Type, true
	case protocol.CaptureRequest:
		return m.Type, true
	case protocol.CaptureCancel:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
