package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/internal/provider/mock"
)

func TestRegistryResolve(t *testing.T) {
	r := provider.NewRegistry()
	r.RegisterSTT("Whisper", func() (provider.STT, error) { return &mock.STT{ProviderName: "whisper"}, nil })
	r.RegisterLLM("openai", func() (provider.LLM, error) { return &mock.LLM{ProviderName: "openai"}, nil })
	r.RegisterTTS("elevenlabs", func() (provider.TTS, error) { return &mock.TTS{ProviderName: "elevenlabs"}, nil })

	set, warnings := r.Resolve(provider.Selection{STT: "WHISPER", LLM: "openai", TTS: "elevenlabs"})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if set.STT.Name() != "whisper" || set.LLM.Name() != "openai" || set.TTS.Name() != "elevenlabs" {
		t.Fatalf("unexpected set: %s %s %s", set.STT.Name(), set.LLM.Name(), set.TTS.Name())
	}
}

func TestRegistryUnknownNameFailsOnlyAtCallTime(t *testing.T) {
	r := provider.NewRegistry()
	r.RegisterLLM("openai", func() (provider.LLM, error) { return &mock.LLM{}, nil })

	set, warnings := r.Resolve(provider.Selection{STT: "nope", LLM: "openai", TTS: "nope"})
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warnings))
	}

	if _, err := set.LLM.Generate(context.Background(), "hi", provider.GenerateOptions{}); err != nil {
		t.Fatalf("llm should still work: %v", err)
	}

	_, err := set.STT.Transcribe(context.Background(), []byte("x"), provider.TranscribeOptions{})
	var pe *provider.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *provider.Error, got %v", err)
	}
	if pe.Provider != "nope" || pe.Op != "transcribe" {
		t.Fatalf("unexpected error fields: %+v", pe)
	}
}

func TestRegistryFactoryErrorIsDeferred(t *testing.T) {
	r := provider.NewRegistry()
	r.RegisterTTS("elevenlabs", func() (provider.TTS, error) { return nil, provider.ErrNotConfigured })

	set, warnings := r.Resolve(provider.Selection{TTS: "elevenlabs"})
	if len(warnings) != 3 {
		t.Fatalf("expected warnings for all three capabilities, got %d", len(warnings))
	}
	_, err := set.TTS.Synthesize(context.Background(), "hello", provider.SynthesizeOptions{})
	if !errors.Is(err, provider.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRegistryNames(t *testing.T) {
	r := provider.NewRegistry()
	r.RegisterSTT("whisper", func() (provider.STT, error) { return &mock.STT{}, nil })
	r.RegisterSTT("deepgram", func() (provider.STT, error) { return &mock.STT{}, nil })
	got := r.Names(provider.CapabilitySTT)
	if len(got) != 2 || got[0] != "deepgram" || got[1] != "whisper" {
		t.Fatalf("unexpected names: %v", got)
	}
}

func TestWrapKeepsExistingProviderError(t *testing.T) {
	inner := &provider.Error{Provider: "a", Op: "x", Err: errors.New("boom")}
	if got := provider.Wrap("b", "y", inner); got != error(inner) {
		t.Fatalf("expected the original error to be returned")
	}
	if provider.Wrap("b", "y", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
