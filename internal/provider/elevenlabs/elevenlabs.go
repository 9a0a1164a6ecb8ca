// Package elevenlabs provides speech synthesis via the ElevenLabs REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

const (
	Name           = "elevenlabs"
	DefaultModel   = "eleven_monolingual_v1"
	defaultBaseURL = "https://api.elevenlabs.io"
)

// Config configures the ElevenLabs provider. Voice is a voice ID and is required.
type Config struct {
	APIKey  string
	Voice   string
	Model   string
	BaseURL string
}

// Provider implements provider.TTS.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New creates an ElevenLabs provider. Missing settings are reported on first call.
func New(cfg Config, client *http.Client) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return Name }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize implements provider.TTS.
func (p *Provider) Synthesize(ctx context.Context, text string, opts provider.SynthesizeOptions) (*provider.Speech, error) {
	if p.cfg.APIKey == "" {
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("missing ELEVENLABS_API_KEY/TTS_API_KEY: %w", provider.ErrNotConfigured))
	}
	voice := opts.Voice
	if voice == "" {
		voice = p.cfg.Voice
	}
	if voice == "" {
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("missing TTS_VOICE (voice ID): %w", provider.ErrNotConfigured))
	}
	model := opts.Model
	if model == "" {
		model = p.cfg.Model
	}

	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("marshal request: %w", err))
	}
	endpoint := p.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, provider.Wrap(Name, "synthesize", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.Wrap(Name, "synthesize", fmt.Errorf("read audio: %w", err))
	}
	return &provider.Speech{Audio: audio, MimeType: "audio/mpeg"}, nil
}
