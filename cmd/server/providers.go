package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/config"
	"github.com/jenin-ai/interview-backend/internal/eval"
	"github.com/jenin-ai/interview-backend/internal/metrics"
	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/internal/provider/deepgram"
	"github.com/jenin-ai/interview-backend/internal/provider/elevenlabs"
	"github.com/jenin-ai/interview-backend/internal/provider/ollama"
	"github.com/jenin-ai/interview-backend/internal/provider/openai"
	"github.com/jenin-ai/interview-backend/internal/provider/whisper"
)

// newProviders registers every backend, resolves the configured selection
// once and wraps the result with latency metrics.
func newProviders(pc config.ProvidersConfig, m *metrics.Metrics, logger *zap.Logger) provider.Set {
	httpClient := &http.Client{Timeout: pc.Timeout()}
	oa := openai.Config{
		APIKey:   pc.OpenAIAPIKey,
		BaseURL:  pc.OpenAIBaseURL,
		Timeout:  pc.Timeout(),
		Model:    pc.LLM.Model,
		STTModel: pc.STT.Model,
		TTSModel: pc.TTS.Model,
		Voice:    pc.TTS.Voice,
		Format:   pc.TTS.Format,
		Language: pc.STT.Language,
	}

	reg := provider.NewRegistry()
	reg.RegisterSTT(whisper.Name, func() (provider.STT, error) { return whisper.New(), nil })
	reg.RegisterSTT(openai.Name, func() (provider.STT, error) { return openai.NewSTT(oa), nil })
	reg.RegisterSTT(deepgram.Name, func() (provider.STT, error) {
		return deepgram.New(deepgram.Config{APIKey: pc.STT.APIKey, Model: pc.DeepgramModel, Language: pc.STT.Language}, httpClient), nil
	})
	reg.RegisterLLM(openai.Name, func() (provider.LLM, error) { return openai.NewLLM(oa), nil })
	reg.RegisterLLM(ollama.Name, func() (provider.LLM, error) {
		p, err := ollama.New(pc.OllamaBaseURL, pc.LLM.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	reg.RegisterTTS(openai.Name, func() (provider.TTS, error) { return openai.NewTTS(oa), nil })
	reg.RegisterTTS(elevenlabs.Name, func() (provider.TTS, error) {
		return elevenlabs.New(elevenlabs.Config{APIKey: pc.TTS.APIKey, Voice: pc.TTS.Voice, Model: pc.TTS.Model}, httpClient), nil
	})

	set, warnings := reg.Resolve(provider.Selection{STT: pc.STT.Provider, LLM: pc.LLM.Provider, TTS: pc.TTS.Provider})
	for _, w := range warnings {
		logger.Warn("provider unavailable", zap.Error(w))
	}
	logger.Info("providers resolved",
		zap.String("stt", set.STT.Name()),
		zap.String("llm", set.LLM.Name()),
		zap.String("tts", set.TTS.Name()),
	)
	return provider.Instrument(set, m)
}

// generateOptions are the LLM options shared by the interview pipeline and eval.
func generateOptions(pc config.ProvidersConfig) provider.GenerateOptions {
	return provider.GenerateOptions{
		Model:       pc.LLM.Model,
		Temperature: pc.LLM.Temperature,
		System:      pc.LLM.System,
	}
}

func synthesizeOptions(pc config.ProvidersConfig) provider.SynthesizeOptions {
	return provider.SynthesizeOptions{Voice: pc.TTS.Voice, Model: pc.TTS.Model, Format: pc.TTS.Format}
}

// evalDefaults names the effective models so eval responses report them.
func evalDefaults(cfg *config.Config) eval.Defaults {
	pc := cfg.Providers
	d := eval.Defaults{
		STTModel: pc.STT.Model,
		Language: pc.STT.Language,
		MimeType: cfg.Interview.DefaultMime,
		Generate: generateOptions(pc),
		Speech:   synthesizeOptions(pc),
		Timeout:  pc.Timeout(),
	}
	switch pc.STT.Provider {
	case deepgram.Name:
		d.STTModel = pc.DeepgramModel
	case whisper.Name, openai.Name:
	default:
		d.STTModel = ""
	}
	if d.Generate.Model == "" {
		d.Generate.Model = openai.DefaultChatModel
		if pc.LLM.Provider == ollama.Name {
			d.Generate.Model = ollama.DefaultModel
		}
	}
	if pc.TTS.Provider == openai.Name {
		if d.Speech.Model == "" {
			d.Speech.Model = openai.DefaultTTSModel
		}
		if d.Speech.Voice == "" {
			d.Speech.Voice = openai.DefaultVoice
		}
	}
	return d
}
