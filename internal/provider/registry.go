package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// STTFactory builds a speech-to-text provider.
type STTFactory func() (STT, error)

// LLMFactory builds a text generation provider.
type LLMFactory func() (LLM, error)

// TTSFactory builds a speech synthesis provider.
type TTSFactory func() (TTS, error)

// Registry maps capability + name to a factory. Factories are registered during
// bootstrap and resolved once; the core never looks providers up per call.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func() (STT, error)
	llm map[string]func() (LLM, error)
	tts map[string]func() (TTS, error)
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func() (STT, error)),
		llm: make(map[string]func() (LLM, error)),
		tts: make(map[string]func() (TTS, error)),
	}
}

// RegisterSTT adds a speech-to-text factory under name (case-insensitive).
func (r *Registry) RegisterSTT(name string, f STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[strings.ToLower(name)] = f
}

// RegisterLLM adds a text generation factory under name.
func (r *Registry) RegisterLLM(name string, f LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[strings.ToLower(name)] = f
}

// RegisterTTS adds a speech synthesis factory under name.
func (r *Registry) RegisterTTS(name string, f TTSFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[strings.ToLower(name)] = f
}

// Names lists the registered names for a capability, sorted.
func (r *Registry) Names(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	switch c {
	case CapabilitySTT:
		for k := range r.stt {
			out = append(out, k)
		}
	case CapabilityLLM:
		for k := range r.llm {
			out = append(out, k)
		}
	case CapabilityTTS:
		for k := range r.tts {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Selection names the backend chosen for each capability.
type Selection struct {
	STT string
	LLM string
	TTS string
}

// Resolve builds the provider set for sel. A name that is unknown or whose
// factory fails resolves to an Unavailable provider: the failure surfaces when
// that capability is called, and the other capabilities keep working. The
// returned warnings describe each such substitution.
func (r *Registry) Resolve(sel Selection) (Set, []error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		set      Set
		warnings []error
	)

	stt, err := resolve(r.stt, CapabilitySTT, sel.STT)
	if err != nil {
		warnings = append(warnings, err)
		set.STT = Unavailable{ProviderName: sel.STT, Err: err}
	} else {
		set.STT = stt
	}

	llm, err := resolve(r.llm, CapabilityLLM, sel.LLM)
	if err != nil {
		warnings = append(warnings, err)
		set.LLM = Unavailable{ProviderName: sel.LLM, Err: err}
	} else {
		set.LLM = llm
	}

	tts, err := resolve(r.tts, CapabilityTTS, sel.TTS)
	if err != nil {
		warnings = append(warnings, err)
		set.TTS = Unavailable{ProviderName: sel.TTS, Err: err}
	} else {
		set.TTS = tts
	}
	return set, warnings
}

func resolve[T any](m map[string]func() (T, error), c Capability, name string) (T, error) {
	var zero T
	key := strings.ToLower(strings.TrimSpace(name))
	f, ok := m[key]
	if !ok {
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)
		return zero, fmt.Errorf("unknown %s provider %q (available: %s)", c, name, strings.Join(names, ", "))
	}
	p, err := f()
	if err != nil {
		return zero, fmt.Errorf("build %s provider %q: %w", c, name, err)
	}
	return p, nil
}

// Unavailable stands in for a provider that could not be resolved. Every call
// fails with Err.
type Unavailable struct {
	ProviderName string
	Err          error
}

func (u Unavailable) Name() string { return u.ProviderName }

func (u Unavailable) Transcribe(context.Context, []byte, TranscribeOptions) (*Transcript, error) {
	return nil, &Error{Provider: u.ProviderName, Op: "transcribe", Err: u.Err}
}

func (u Unavailable) Generate(context.Context, string, GenerateOptions) (*Generation, error) {
	return nil, &Error{Provider: u.ProviderName, Op: "generate", Err: u.Err}
}

func (u Unavailable) Synthesize(context.Context, string, SynthesizeOptions) (*Speech, error) {
	return nil, &Error{Provider: u.ProviderName, Op: "synthesize", Err: u.Err}
}
