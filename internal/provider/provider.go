// Package provider defines the capability interfaces the interview core consumes:
// speech-to-text, text generation and speech synthesis.
//
// Concrete backends live in sub-packages (openai, deepgram, elevenlabs, ollama,
// whisper) and are resolved once at startup through a Registry. Implementations
// must be safe for concurrent use.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Capability names one AI function.
type Capability string

const (
	CapabilitySTT Capability = "stt"
	CapabilityLLM Capability = "llm"
	CapabilityTTS Capability = "tts"
)

// ErrNotConfigured is returned at call time when a provider is missing a
// required credential or setting.
var ErrNotConfigured = errors.New("provider not configured")

// Error wraps a failure from a provider call with the provider name and operation.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err wrapped in *Error, or nil when err is nil.
func Wrap(name, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Provider: name, Op: op, Err: err}
}

// TranscribeOptions are recognition hints for a single transcription.
type TranscribeOptions struct {
	Language string
	MimeType string
}

// Segment is one word or phrase with timing, when the backend reports it.
type Segment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcript is the result of a transcription.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// GenerateOptions tune a text generation call. Zero values mean provider defaults.
type GenerateOptions struct {
	Model       string
	Temperature *float64
	System      string
}

// Usage is token accounting as reported by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is the result of a text generation call.
type Generation struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// SynthesizeOptions select the voice and encoding for speech synthesis.
type SynthesizeOptions struct {
	Voice  string
	Model  string
	Format string
}

// Speech is synthesized audio.
type Speech struct {
	Audio    []byte
	MimeType string
}

// STT transcribes a complete audio buffer.
type STT interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error)
}

// LLM generates a text reply for a prompt.
type LLM interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Generation, error)
}

// TTS synthesizes speech for a text.
type TTS interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Speech, error)
}

// Set is the resolved trio of providers injected into the core.
type Set struct {
	STT STT
	LLM LLM
	TTS TTS
}

// MimeForFormat maps a short audio format name to its MIME type.
func MimeForFormat(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	case "oga", "ogg", "opus":
		return "audio/ogg"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}
