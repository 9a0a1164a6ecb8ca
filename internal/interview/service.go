// Package interview answers candidate questions: optional transcription, a
// reply from the language model and optional speech synthesis. The same
// Service backs the push channel and the REST endpoint.
package interview

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/internal/transcript"
)

// Placeholder replaces an empty question so the model is still asked.
const Placeholder = "(none)"

// DefaultInstruction prefixes every question sent to the language model.
const DefaultInstruction = "You are conducting a mock job interview. Reply to the candidate in two to four sentences: acknowledge what they said, give one concrete suggestion, and ask a natural follow-up question.\n\nCandidate: "

// Stages reported in StageError.
const (
	StageSTT = "stt"
	StageLLM = "llm"
	StageTTS = "tts"
)

// StageError is a provider failure tagged with the stage that failed.
type StageError struct {
	Stage    string
	Provider string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AskRequest is one question. Audio, when present, is transcribed and
// replaces Text.
type AskRequest struct {
	SessionID  string
	Text       string
	Audio      []byte
	MimeType   string
	Language   string
	WantSpeech bool
}

// Providers names the backend that served each stage.
type Providers struct {
	STT string `json:"stt,omitempty"`
	LLM string `json:"llm"`
	TTS string `json:"tts,omitempty"`
}

// Speech is synthesized reply audio.
type Speech struct {
	AudioBase64 string `json:"audio_base64"`
	MimeType    string `json:"mimetype"`
	Bytes       int    `json:"bytes"`
}

// AskResult is the shape both transports return.
type AskResult struct {
	ReceivedText string    `json:"received_text"`
	ReplyText    string    `json:"reply_text"`
	Providers    Providers `json:"providers"`
	Speech       *Speech   `json:"speech"`
}

// Config tunes the service.
type Config struct {
	Instruction string
	Timeout     time.Duration
	Generate    provider.GenerateOptions
	Synthesize  provider.SynthesizeOptions
}

// Service runs the question pipeline.
type Service struct {
	set    provider.Set
	log    *transcript.Log
	cfg    Config
	logger *zap.Logger
}

// NewService creates the interview service.
func NewService(set provider.Set, log *transcript.Log, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Instruction == "" {
		cfg.Instruction = DefaultInstruction
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Service{set: set, log: log, cfg: cfg, logger: logger}
}

// Providers returns the configured provider names.
func (s *Service) Providers() Providers {
	return Providers{STT: s.set.STT.Name(), LLM: s.set.LLM.Name(), TTS: s.set.TTS.Name()}
}

// Ask runs the pipeline. A failing stage stops the remaining ones and is
// returned as *StageError. A tts failure still returns the result with the
// reply text and no speech. Transcript events are written only when
// req.SessionID is set.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	res := &AskResult{}
	text := strings.TrimSpace(req.Text)

	if len(req.Audio) > 0 {
		stt := s.set.STT
		res.Providers.STT = stt.Name()
		tr, err := stt.Transcribe(ctx, req.Audio, provider.TranscribeOptions{Language: req.Language, MimeType: req.MimeType})
		if err != nil {
			return nil, s.fail(req.SessionID, StageSTT, stt.Name(), err)
		}
		text = strings.TrimSpace(tr.Text)
		s.record(req.SessionID, transcript.SingleShotTranscript(tr.Text, stt.Name(), len(req.Audio)))
	}
	if text == "" {
		text = Placeholder
	}
	res.ReceivedText = text

	llm := s.set.LLM
	res.Providers.LLM = llm.Name()
	s.record(req.SessionID, transcript.QuestionSubmitted(text))
	gen, err := llm.Generate(ctx, s.cfg.Instruction+text, s.cfg.Generate)
	if err != nil {
		return nil, s.fail(req.SessionID, StageLLM, llm.Name(), err)
	}
	res.ReplyText = gen.Text
	s.record(req.SessionID, transcript.ReplyGenerated(gen.Text, llm.Name()))

	if !req.WantSpeech {
		return res, nil
	}
	tts := s.set.TTS
	res.Providers.TTS = tts.Name()
	speech, err := tts.Synthesize(ctx, gen.Text, s.cfg.Synthesize)
	if err != nil {
		return res, s.fail(req.SessionID, StageTTS, tts.Name(), err)
	}
	res.Speech = &Speech{
		AudioBase64: base64.StdEncoding.EncodeToString(speech.Audio),
		MimeType:    speech.MimeType,
		Bytes:       len(speech.Audio),
	}
	s.record(req.SessionID, transcript.SpeechSynthesized(tts.Name(), speech.MimeType, len(speech.Audio)))
	return res, nil
}

func (s *Service) record(sessionID string, ev transcript.Event) {
	if sessionID == "" {
		return
	}
	s.log.Append(sessionID, ev)
}

func (s *Service) fail(sessionID, stage, name string, err error) error {
	s.logger.Warn("interview stage failed",
		zap.String("stage", stage), zap.String("provider", name), zap.String("session_id", sessionID), zap.Error(err))
	s.record(sessionID, transcript.Failure(stage, name, err))
	return &StageError{Stage: stage, Provider: name, Err: err}
}
