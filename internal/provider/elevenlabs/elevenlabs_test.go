package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		var body synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Text != "hello" || body.ModelID != DefaultModel {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90})
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", Voice: "voice-1", BaseURL: srv.URL}, srv.Client())
	out, err := p.Synthesize(context.Background(), "hello", provider.SynthesizeOptions{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(out.Audio) != 3 || out.MimeType != "audio/mpeg" {
		t.Fatalf("unexpected speech %+v", out)
	}
}

func TestSynthesizeRequiresVoice(t *testing.T) {
	p := New(Config{APIKey: "k"}, nil)
	_, err := p.Synthesize(context.Background(), "hello", provider.SynthesizeOptions{})
	if !errors.Is(err, provider.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
