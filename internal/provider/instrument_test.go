package provider_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/internal/provider/mock"
)

type observation struct {
	capability, provider string
	failed               bool
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveProvider(capability, name string, _ time.Duration, err error) {
	r.mu.Lock()
	r.obs = append(r.obs, observation{capability, name, err != nil})
	r.mu.Unlock()
}

func TestInstrumentReportsEachCall(t *testing.T) {
	rec := &recordingObserver{}
	set := provider.Instrument(provider.Set{
		STT: &mock.STT{},
		LLM: &mock.LLM{GenerateFunc: func(context.Context, string) (*provider.Generation, error) {
			return nil, errors.New("quota")
		}},
		TTS: &mock.TTS{},
	}, rec)
	ctx := context.Background()

	_, _ = set.STT.Transcribe(ctx, []byte("a"), provider.TranscribeOptions{})
	_, _ = set.LLM.Generate(ctx, "q", provider.GenerateOptions{})
	_, _ = set.TTS.Synthesize(ctx, "r", provider.SynthesizeOptions{})

	want := []observation{{"stt", "mock-stt", false}, {"llm", "mock-llm", true}, {"tts", "mock-tts", false}}
	if len(rec.obs) != len(want) {
		t.Fatalf("got %v", rec.obs)
	}
	for i := range want {
		if rec.obs[i] != want[i] {
			t.Fatalf("observation %d = %+v, want %+v", i, rec.obs[i], want[i])
		}
	}
	if set.LLM.Name() != "mock-llm" {
		t.Fatal("wrapper must keep the provider name")
	}
}

func TestInstrumentNilObserver(t *testing.T) {
	stt := &mock.STT{}
	set := provider.Instrument(provider.Set{STT: stt}, nil)
	if set.STT != stt {
		t.Fatal("nil observer must return the set unchanged")
	}
}
