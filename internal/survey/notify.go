package survey

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

const (
	CodeVoiceRecorded    = "voice_response_recorded"
	CodeNoMatchFound     = "no_match_found"
	CodeRecognitionError = "recognition_error"
	CodeSurveyComplete   = "survey_complete"
)

// Notification is a user-facing, fire-and-forget message.
type Notification struct {
	Code     string   `json:"code"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Notifier is the host notification sink.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}
