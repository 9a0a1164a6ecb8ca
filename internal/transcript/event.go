package transcript

import "time"

// EventType is the fixed vocabulary of transcript events.
type EventType string

const (
	EventInterimTranscript    EventType = "interim-transcript"
	EventFinalTranscript      EventType = "final-transcript"
	EventSingleShotTranscript EventType = "single-shot-transcript"
	EventQuestionSubmitted    EventType = "question-submitted"
	EventReplyGenerated       EventType = "reply-generated"
	EventSpeechSynthesized    EventType = "speech-synthesized"
	EventError                EventType = "error"
)

// Valid reports whether t belongs to the vocabulary.
func (t EventType) Valid() bool {
	switch t {
	case EventInterimTranscript, EventFinalTranscript, EventSingleShotTranscript,
		EventQuestionSubmitted, EventReplyGenerated, EventSpeechSynthesized, EventError:
		return true
	}
	return false
}

// Event is one immutable fact in a session log. Only the fields that apply to
// the type are set; TS is assigned by the log on append.
type Event struct {
	TS           time.Time `json:"ts"`
	Type         EventType `json:"type"`
	Text         string    `json:"text,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Bytes        int       `json:"bytes,omitempty"`
	MimeType     string    `json:"mimetype,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	RecordingKey string    `json:"recording_key,omitempty"`
}

// Session is the full record of one practice interview.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Events    []Event    `json:"events"`
}

// Summary is the list view of a session.
type Summary struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	EventCount int        `json:"event_count"`
}

func (s *Session) summary() Summary {
	return Summary{ID: s.ID, StartedAt: s.StartedAt, EndedAt: s.EndedAt, EventCount: len(s.Events)}
}

func (s *Session) clone() *Session {
	cp := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		cp.EndedAt = &t
	}
	cp.Events = make([]Event, len(s.Events))
	copy(cp.Events, s.Events)
	return &cp
}

// Transcript result events.

func InterimTranscript(text, provider string) Event {
	return Event{Type: EventInterimTranscript, Text: text, Provider: provider}
}

func FinalTranscript(text, provider string, bytes int) Event {
	return Event{Type: EventFinalTranscript, Text: text, Provider: provider, Bytes: bytes}
}

func SingleShotTranscript(text, provider string, bytes int) Event {
	return Event{Type: EventSingleShotTranscript, Text: text, Provider: provider, Bytes: bytes}
}

// Question/answer events.

func QuestionSubmitted(text string) Event {
	return Event{Type: EventQuestionSubmitted, Text: text}
}

func ReplyGenerated(text, provider string) Event {
	return Event{Type: EventReplyGenerated, Text: text, Provider: provider}
}

// SpeechSynthesized records the size of the synthesized audio, never the audio.
func SpeechSynthesized(provider, mimeType string, bytes int) Event {
	return Event{Type: EventSpeechSynthesized, Provider: provider, MimeType: mimeType, Bytes: bytes}
}

// Failure records a stage-tagged error.
func Failure(stage, provider string, err error) Event {
	ev := Event{Type: EventError, Stage: stage, Provider: provider}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
