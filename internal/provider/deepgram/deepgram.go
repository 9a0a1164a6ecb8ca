// Package deepgram provides pre-recorded speech-to-text via the Deepgram REST API.
package deepgram

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
	Name           = "deepgram"
	DefaultModel   = "nova-2"
	defaultBaseURL = "https://api.deepgram.com"
)

// Config configures the Deepgram provider.
type Config struct {
	APIKey   string
	Model    string
	Language string
	BaseURL  string
}

// Provider implements provider.STT.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New creates a Deepgram provider. A missing API key is reported on first call.
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

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements provider.STT.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, opts provider.TranscribeOptions) (*provider.Transcript, error) {
	if p.cfg.APIKey == "" {
		return nil, provider.Wrap(Name, "transcribe", fmt.Errorf("missing DEEPGRAM_API_KEY/STT_API_KEY: %w", provider.ErrNotConfigured))
	}
	mime := opts.MimeType
	if mime == "" {
		mime = "audio/webm"
	}
	lang := opts.Language
	if lang == "" {
		lang = p.cfg.Language
	}
	if lang == "" {
		lang = "en"
	}

	q := url.Values{}
	q.Set("model", p.cfg.Model)
	q.Set("smart_format", "true")
	q.Set("language", lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/listen?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, provider.Wrap(Name, "transcribe", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+p.cfg.APIKey)
	req.Header.Set("Content-Type", mime)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, provider.Wrap(Name, "transcribe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, provider.Wrap(Name, "transcribe", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	var out listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, provider.Wrap(Name, "transcribe", fmt.Errorf("decode response: %w", err))
	}
	tr := &provider.Transcript{Segments: []provider.Segment{}}
	if len(out.Results.Channels) > 0 && len(out.Results.Channels[0].Alternatives) > 0 {
		alt := out.Results.Channels[0].Alternatives[0]
		tr.Text = alt.Transcript
		for _, w := range alt.Words {
			tr.Segments = append(tr.Segments, provider.Segment{Text: w.Word, Start: w.Start, End: w.End, Confidence: w.Confidence})
		}
	}
	return tr, nil
}
