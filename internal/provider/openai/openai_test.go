package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode chat body: %v", err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("expected system + user messages, got %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"`+body.Model+`",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"echo: `+body.Messages[1].Content+`"}}],
			"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != DefaultSTTModel {
			t.Errorf("unexpected model %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"tell me about yourself"}`)
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLLMGenerate(t *testing.T) {
	srv := newTestServer(t)
	p := NewLLM(Config{APIKey: "test", BaseURL: srv.URL + "/v1/"})

	out, err := p.Generate(context.Background(), "Why this role?", provider.GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Text != "echo: Why this role?" {
		t.Fatalf("unexpected text %q", out.Text)
	}
	if out.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected usage %+v", out.Usage)
	}
}

func TestSTTTranscribe(t *testing.T) {
	srv := newTestServer(t)
	p := NewSTT(Config{APIKey: "test", BaseURL: srv.URL + "/v1/"})

	out, err := p.Transcribe(context.Background(), []byte("webm-bytes"), provider.TranscribeOptions{MimeType: "audio/webm", Language: "en"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if out.Text != "tell me about yourself" {
		t.Fatalf("unexpected text %q", out.Text)
	}
}

func TestTTSSynthesize(t *testing.T) {
	srv := newTestServer(t)
	p := NewTTS(Config{APIKey: "test", BaseURL: srv.URL + "/v1/", Format: "wav"})

	out, err := p.Synthesize(context.Background(), "hello", provider.SynthesizeOptions{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(out.Audio) != "ID3-audio" {
		t.Fatalf("unexpected audio %q", out.Audio)
	}
	if out.MimeType != "audio/wav" {
		t.Fatalf("unexpected mime %q", out.MimeType)
	}
}

func TestMissingKeyFailsAtCallTime(t *testing.T) {
	p := NewLLM(Config{})
	_, err := p.Generate(context.Background(), "x", provider.GenerateOptions{})
	if !errors.Is(err, provider.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Fatalf("error should name the provider: %v", err)
	}
}

func TestUpstreamErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewLLM(Config{APIKey: "bad", BaseURL: srv.URL + "/v1/"})
	_, err := p.Generate(context.Background(), "x", provider.GenerateOptions{})
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Op != "generate" {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}
