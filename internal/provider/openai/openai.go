// Package openai provides chat generation, Whisper transcription and speech
// synthesis backed by the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

const (
	// Name is the registry name shared by all three OpenAI capabilities.
	Name = "openai"

	DefaultChatModel   = "gpt-4o-mini"
	DefaultSTTModel    = "whisper-1"
	DefaultTTSModel    = "tts-1"
	DefaultVoice       = "alloy"
	DefaultSpeechFmt   = "mp3"
	DefaultTemperature = 0.7
	// DefaultSystemPrompt is the persona used when the caller supplies none.
	DefaultSystemPrompt = "You are Jenin, The Resilient Guide: confident, motivational, structured, empowering, calm, authoritative yet approachable."
)

// Config holds the settings shared by the OpenAI providers.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Model    string // chat model
	STTModel string
	TTSModel string
	Voice    string
	Format   string
	Language string
}

func newClient(cfg Config) oai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return oai.NewClient(opts...)
}

// LLM implements provider.LLM with chat completions.
type LLM struct {
	client oai.Client
	cfg    Config
}

// NewLLM creates the chat provider. A missing API key is reported on first call.
func NewLLM(cfg Config) *LLM {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	return &LLM{client: newClient(cfg), cfg: cfg}
}

func (p *LLM) Name() string { return Name }

// Generate implements provider.LLM.
func (p *LLM) Generate(ctx context.Context, prompt string, opts provider.GenerateOptions) (*provider.Generation, error) {
	if p.cfg.APIKey == "" {
		return nil, provider.Wrap(Name, "generate", fmt.Errorf("missing OPENAI_API_KEY: %w", provider.ErrNotConfigured))
	}
	model := opts.Model
	if model == "" {
		model = p.cfg.Model
	}
	system := opts.System
	if system == "" {
		system = DefaultSystemPrompt
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(prompt),
		},
		Temperature: param.NewOpt(temperature),
	})
	if err != nil {
		return nil, provider.Wrap(Name, "generate", err)
	}
	out := &provider.Generation{
		Usage: provider.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
	}
	return out, nil
}

// STT implements provider.STT with the Whisper transcription endpoint.
type STT struct {
	client oai.Client
	cfg    Config
}

// NewSTT creates the transcription provider.
func NewSTT(cfg Config) *STT {
	if cfg.STTModel == "" {
		cfg.STTModel = DefaultSTTModel
	}
	return &STT{client: newClient(cfg), cfg: cfg}
}

func (p *STT) Name() string { return Name }

// Transcribe implements provider.STT.
func (p *STT) Transcribe(ctx context.Context, audio []byte, opts provider.TranscribeOptions) (*provider.Transcript, error) {
	if p.cfg.APIKey == "" {
		return nil, provider.Wrap(Name, "transcribe", fmt.Errorf("missing OPENAI_API_KEY: %w", provider.ErrNotConfigured))
	}
	mime := opts.MimeType
	if mime == "" {
		mime = "audio/webm"
	}
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), "audio"+extForMime(mime), mime),
		Model: oai.AudioModel(p.cfg.STTModel),
	}
	lang := opts.Language
	if lang == "" {
		lang = p.cfg.Language
	}
	if lang != "" {
		params.Language = param.NewOpt(lang)
	}
	res, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, provider.Wrap(Name, "transcribe", err)
	}
	return &provider.Transcript{Text: res.Text, Segments: []provider.Segment{}}, nil
}

// TTS implements provider.TTS with the speech endpoint.
type TTS struct {
	client oai.Client
	cfg    Config
}

// NewTTS creates the speech provider.
func NewTTS(cfg Config) *TTS {
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Format == "" {
		cfg.Format = DefaultSpeechFmt
	}
	return &TTS{client: newClient(cfg), cfg: cfg}
}

func (p *TTS) Name() string { return Name }

// Synthesize implements provider.TTS.
func (p *TTS) Synthesize(ctx context.Context, text string, opts provider.SynthesizeOptions) (*provider.Speech, error) {
	if p.cfg.APIKey == "" {
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("missing OPENAI_API_KEY: %w", provider.ErrNotConfigured))
	}
	model, voice, format := p.cfg.TTSModel, p.cfg.Voice, p.cfg.Format
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.Voice != "" {
		voice = opts.Voice
	}
	if opts.Format != "" {
		format = opts.Format
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat(format),
	})
	if err != nil {
		return nil, provider.Wrap(Name, "synthesize", err)
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("read audio: %w", err))
	}
	return &provider.Speech{Audio: audio, MimeType: provider.MimeForFormat(format)}, nil
}

func extForMime(mime string) string {
	switch mime {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	default:
		return ".webm"
	}
}
