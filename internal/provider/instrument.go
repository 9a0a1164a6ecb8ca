package provider

import (
	"context"
	"time"
)

// Observer receives the outcome of every provider call.
type Observer interface {
	ObserveProvider(capability, provider string, d time.Duration, err error)
}

// Instrument wraps each provider in set so calls are reported to obs.
func Instrument(set Set, obs Observer) Set {
	if obs == nil {
		return set
	}
	return Set{
		STT: instrumentedSTT{STT: set.STT, obs: obs},
		LLM: instrumentedLLM{LLM: set.LLM, obs: obs},
		TTS: instrumentedTTS{TTS: set.TTS, obs: obs},
	}
}

type instrumentedSTT struct {
	STT
	obs Observer
}

func (i instrumentedSTT) Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error) {
	start := time.Now()
	out, err := i.STT.Transcribe(ctx, audio, opts)
	i.obs.ObserveProvider(string(CapabilitySTT), i.Name(), time.Since(start), err)
	return out, err
}

type instrumentedLLM struct {
	LLM
	obs Observer
}

func (i instrumentedLLM) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Generation, error) {
	start := time.Now()
	out, err := i.LLM.Generate(ctx, prompt, opts)
	i.obs.ObserveProvider(string(CapabilityLLM), i.Name(), time.Since(start), err)
	return out, err
}

type instrumentedTTS struct {
	TTS
	obs Observer
}

func (i instrumentedTTS) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Speech, error) {
	start := time.Now()
	out, err := i.TTS.Synthesize(ctx, text, opts)
	i.obs.ObserveProvider(string(CapabilityTTS), i.Name(), time.Since(start), err)
	return out, err
}
