// Package mock provides scriptable in-memory providers for tests.
package mock

import (
	"context"
	"sync"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

// STT is a speech-to-text provider whose result is computed by TranscribeFunc.
// When TranscribeFunc is nil it echoes the audio bytes as text.
type STT struct {
	ProviderName   string
	TranscribeFunc func(ctx context.Context, audio []byte) (*provider.Transcript, error)

	mu    sync.Mutex
	calls [][]byte
}

func (m *STT) Name() string {
	if m.ProviderName == "" {
		return "mock-stt"
	}
	return m.ProviderName
}

func (m *STT) Transcribe(ctx context.Context, audio []byte, _ provider.TranscribeOptions) (*provider.Transcript, error) {
	cp := append([]byte(nil), audio...)
	m.mu.Lock()
	m.calls = append(m.calls, cp)
	m.mu.Unlock()
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, cp)
	}
	return &provider.Transcript{Text: string(cp)}, nil
}

// Calls returns copies of the audio passed to each Transcribe call, in order.
func (m *STT) Calls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.calls))
	copy(out, m.calls)
	return out
}

// LLM is a text generation provider. With a nil GenerateFunc it replies "reply: <prompt>".
type LLM struct {
	ProviderName string
	GenerateFunc func(ctx context.Context, prompt string) (*provider.Generation, error)

	mu      sync.Mutex
	prompts []string
}

func (m *LLM) Name() string {
	if m.ProviderName == "" {
		return "mock-llm"
	}
	return m.ProviderName
}

func (m *LLM) Generate(ctx context.Context, prompt string, _ provider.GenerateOptions) (*provider.Generation, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return &provider.Generation{Text: "reply: " + prompt}, nil
}

// Prompts returns every prompt passed to Generate, in order.
func (m *LLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// TTS is a speech synthesis provider. With a nil SynthesizeFunc it returns the
// text bytes as "audio/mpeg".
type TTS struct {
	ProviderName   string
	SynthesizeFunc func(ctx context.Context, text string) (*provider.Speech, error)

	mu    sync.Mutex
	texts []string
}

func (m *TTS) Name() string {
	if m.ProviderName == "" {
		return "mock-tts"
	}
	return m.ProviderName
}

func (m *TTS) Synthesize(ctx context.Context, text string, _ provider.SynthesizeOptions) (*provider.Speech, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return &provider.Speech{Audio: []byte(text), MimeType: "audio/mpeg"}, nil
}

// Texts returns every text passed to Synthesize, in order.
func (m *TTS) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}
