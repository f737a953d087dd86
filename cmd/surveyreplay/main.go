package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/voicesurvey/internal/protocol"
	"github.com/ent0n29/voicesurvey/internal/reliability"
)

const (
	modeVoice = "voice"
	modeTouch = "touch"
)

type options struct {
	baseURL     string
	userID      string
	mode        string
	answers     []string
	speakDelay  time.Duration
	timeout     time.Duration
	maxRetries  int
	createTries int
	verbose     bool
}

type createSessionRequest struct {
	UserID string          `json:"user_id,omitempty"`
	Voice  map[string]bool `json:"voice,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	VoiceHost string `json:"voice_host"`
}

// wsEnvelope covers every server message field the replay client reads.
type wsEnvelope struct {
	Type        string            `json:"type"`
	Revision    uint64            `json:"revision,omitempty"`
	Phase       string            `json:"phase,omitempty"`
	Position    int               `json:"position,omitempty"`
	Total       int               `json:"total,omitempty"`
	Listening   bool              `json:"listening,omitempty"`
	Complete    bool              `json:"complete,omitempty"`
	Responses   map[string]string `json:"responses,omitempty"`
	UtteranceID string            `json:"utterance_id,omitempty"`
	CaptureID   string            `json:"capture_id,omitempty"`
	Text        string            `json:"text,omitempty"`
	Code        string            `json:"code,omitempty"`
	Title       string            `json:"title,omitempty"`
	Message     string            `json:"message,omitempty"`
	Detail      string            `json:"detail,omitempty"`
}

var defaultAnswers = []string{
	"I think it's pretty poor",
	"mostly potholes",
	"quite often",
	"it's a major disruption",
	"yes, once",
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "surveyreplay: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "surveyreplay: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var cfg options
	var answersRaw string
	var speakMS, timeoutMS int

	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "voicesurvey base URL")
	fs.StringVar(&cfg.userID, "user-id", "survey-replay", "user_id for the replayed session")
	fs.StringVar(&cfg.mode, "mode", modeVoice, "answer by 'voice' (act as speech host) or 'touch' (submit options)")
	fs.StringVar(&answersRaw, "answers", "", "answers separated by '|': transcripts in voice mode, option labels in touch mode")
	fs.IntVar(&speakMS, "speak-ms", 250, "simulated duration of each spoken prompt in milliseconds")
	fs.IntVar(&timeoutMS, "timeout-ms", 60000, "overall replay timeout in milliseconds")
	fs.IntVar(&cfg.maxRetries, "max-retries", 2, "voice retries per question after no-match or recognition errors")
	fs.IntVar(&cfg.createTries, "create-attempts", 3, "attempts for session creation on retryable HTTP status")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	cfg.mode = strings.ToLower(strings.TrimSpace(cfg.mode))
	if cfg.mode != modeVoice && cfg.mode != modeTouch {
		return options{}, fmt.Errorf("mode must be voice or touch")
	}
	if speakMS < 0 {
		speakMS = 0
	}
	if timeoutMS < 1000 {
		timeoutMS = 1000
	}
	if cfg.maxRetries < 0 {
		cfg.maxRetries = 0
	}
	if cfg.createTries <= 0 {
		cfg.createTries = 1
	}
	cfg.speakDelay = time.Duration(speakMS) * time.Millisecond
	cfg.timeout = time.Duration(timeoutMS) * time.Millisecond

	if strings.TrimSpace(answersRaw) == "" {
		cfg.answers = append([]string(nil), defaultAnswers...)
	} else {
		for _, part := range strings.Split(answersRaw, "|") {
			if a := strings.TrimSpace(part); a != "" {
				cfg.answers = append(cfg.answers, a)
			}
		}
		if len(cfg.answers) == 0 {
			return options{}, fmt.Errorf("answers produced no non-empty entries")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	httpClient := &http.Client{Timeout: 15 * time.Second}
	created, err := createSession(ctx, httpClient, cfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	sessionID := created.SessionID
	defer func() {
		_ = endSession(context.Background(), httpClient, cfg.baseURL, sessionID)
	}()
	if cfg.verbose {
		fmt.Printf("surveyreplay: session=%s voice_host=%s mode=%s answers=%d\n", sessionID, created.VoiceHost, cfg.mode, len(cfg.answers))
	}

	wsURL, err := wsURLForSession(cfg.baseURL, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	sendCh := make(chan any, 64)
	writeErrCh := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sendCh:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					writeErrCh <- err
					return
				}
			}
		}
	}()

	msgCh := make(chan wsEnvelope, 64)
	readErrCh := make(chan error, 1)
	go readLoop(conn, msgCh, readErrCh)

	rp := newReplayer(sessionID, cfg.mode, cfg.answers, cfg.maxRetries)
	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout after %s at position %d", cfg.timeout, rp.acted)
		case err := <-readErrCh:
			return fmt.Errorf("ws read: %w", err)
		case err := <-writeErrCh:
			return fmt.Errorf("ws write: %w", err)
		case env := <-msgCh:
			if cfg.verbose {
				logEvent(env)
			}
			if env.Type == string(protocol.TypeSpeakRequest) {
				id := env.UtteranceID
				time.AfterFunc(cfg.speakDelay, func() {
					select {
					case sendCh <- protocol.ClientSpeechEvent{
						Type:        protocol.TypeClientSpeechEvent,
						SessionID:   sessionID,
						UtteranceID: id,
						Status:      protocol.SpeechStatusEnded,
					}:
					case <-ctx.Done():
					}
				})
				continue
			}
			out, err := rp.handle(env)
			if err != nil {
				return err
			}
			for _, msg := range out {
				sendCh <- msg
			}
			if rp.done {
				printSummary(rp.responses, time.Since(started))
				return nil
			}
		}
	}
}

// replayer decides which client messages answer each server message. Speech
// prompts are handled by the caller since they only need a delayed reply.
type replayer struct {
	sessionID  string
	mode       string
	answers    []string
	maxRetries int

	acted     int
	revision  uint64
	retries   int
	captures  int
	done      bool
	responses map[string]string
}

func newReplayer(sessionID, mode string, answers []string, maxRetries int) *replayer {
	return &replayer{
		sessionID:  sessionID,
		mode:       mode,
		answers:    answers,
		maxRetries: maxRetries,
	}
}

func (r *replayer) handle(env wsEnvelope) ([]any, error) {
	switch env.Type {
	case string(protocol.TypeStateSnapshot):
		if env.Revision != 0 && env.Revision <= r.revision {
			return nil, nil
		}
		r.revision = env.Revision
		if env.Complete {
			r.done = true
			r.responses = env.Responses
			return nil, nil
		}
		if env.Phase != "asking" || env.Listening || env.Position == r.acted {
			return nil, nil
		}
		r.acted = env.Position
		r.retries = 0
		return []any{r.answerFor(env.Position)}, nil
	case string(protocol.TypeCaptureRequest):
		transcript := r.answers[r.captures%len(r.answers)]
		r.captures++
		return []any{protocol.ClientCaptureResult{
			Type:       protocol.TypeClientCaptureResult,
			SessionID:  r.sessionID,
			CaptureID:  env.CaptureID,
			Transcript: transcript,
		}}, nil
	case string(protocol.TypeNotification):
		if env.Code != "no_match_found" && env.Code != "recognition_error" {
			return nil, nil
		}
		if r.retries >= r.maxRetries {
			return nil, fmt.Errorf("question %d: giving up after %d retries (%s)", r.acted, r.retries, env.Code)
		}
		r.retries++
		return []any{r.answerFor(r.acted)}, nil
	case string(protocol.TypeErrorEvent):
		if env.Code == "capability_unavailable" {
			return nil, fmt.Errorf("server cannot capture speech for this session: %s", env.Detail)
		}
	}
	return nil, nil
}

func (r *replayer) answerFor(position int) protocol.ClientControl {
	msg := protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: r.sessionID,
		Action:    protocol.ActionStartVoice,
	}
	if r.mode == modeTouch {
		msg.Action = protocol.ActionSubmitAnswer
		msg.Option = r.answers[(position-1)%len(r.answers)]
	}
	return msg
}

func createSession(ctx context.Context, client *http.Client, cfg options) (createSessionResponse, error) {
	reqBody := createSessionRequest{UserID: cfg.userID}
	if cfg.mode == modeTouch {
		reqBody.Voice = map[string]bool{"tts": true, "stt": false}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return createSessionResponse{}, err
	}

	var out createSessionResponse
	err = reliability.Retry(ctx, reliability.Policy{
		Attempts:  cfg.createTries,
		Base:      200 * time.Millisecond,
		Cap:       2 * time.Second,
		Retryable: func(err error) bool { _, ok := err.(retryableStatus); return ok },
	}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/v1/survey/session", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return err
		}
		if res.StatusCode != http.StatusCreated {
			if reliability.IsRetryableHTTPStatus(res.StatusCode) {
				return retryableStatus{code: res.StatusCode, body: strings.TrimSpace(string(body))}
			}
			return fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		}
		return json.Unmarshal(body, &out)
	})
	if err != nil {
		return createSessionResponse{}, err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return createSessionResponse{}, fmt.Errorf("missing session_id in response")
	}
	return out, nil
}

type retryableStatus struct {
	code int
	body string
}

func (e retryableStatus) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/survey/session/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/survey/session/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func readLoop(conn *websocket.Conn, msgCh chan<- wsEnvelope, readErrCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErrCh <- err:
			default:
			}
			return
		}
		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		msgCh <- env
	}
}

func logEvent(env wsEnvelope) {
	switch env.Type {
	case string(protocol.TypeStateSnapshot):
		fmt.Printf("surveyreplay: state phase=%s position=%d/%d listening=%v\n", env.Phase, env.Position, env.Total, env.Listening)
	case string(protocol.TypeSpeakRequest):
		fmt.Printf("surveyreplay: speak %q\n", env.Text)
	case string(protocol.TypeNotification):
		fmt.Printf("surveyreplay: notification %s: %s\n", env.Title, env.Message)
	case string(protocol.TypeErrorEvent):
		fmt.Fprintf(os.Stderr, "surveyreplay: error_event code=%s detail=%s\n", env.Code, env.Detail)
	}
}

func printSummary(responses map[string]string, elapsed time.Duration) {
	ids := make([]int, 0, len(responses))
	for k := range responses {
		if id, err := strconv.Atoi(k); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	fmt.Printf("surveyreplay: completed in %s\n", elapsed.Round(time.Millisecond))
	for _, id := range ids {
		fmt.Printf("  q%d: %s\n", id, responses[strconv.Itoa(id)])
	}
}
