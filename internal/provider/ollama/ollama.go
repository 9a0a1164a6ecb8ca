// Package ollama provides text generation from a local Ollama server through
// github.com/mozilla-ai/any-llm-go.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllm "github.com/mozilla-ai/any-llm-go"
	anyllmollama "github.com/mozilla-ai/any-llm-go/providers/ollama"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

const (
	Name           = "ollama"
	DefaultModel   = "llama3"
	DefaultBaseURL = "http://localhost:11434"
)

// Provider implements provider.LLM on the any-llm-go Ollama backend.
type Provider struct {
	backend anyllm.Provider
	model   string
}

// New creates an Ollama provider. An empty baseURL connects to DefaultBaseURL.
func New(baseURL, model string) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	backend, err := anyllmollama.New(anyllm.WithBaseURL(strings.TrimRight(baseURL, "/")))
	if err != nil {
		return nil, provider.Wrap(Name, "init", fmt.Errorf("create backend: %w", err))
	}
	return &Provider{backend: backend, model: model}, nil
}

func (p *Provider) Name() string { return Name }

// Generate implements provider.LLM.
func (p *Provider) Generate(ctx context.Context, prompt string, opts provider.GenerateOptions) (*provider.Generation, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(prompt, opts))
	if err != nil {
		return nil, provider.Wrap(Name, "generate", err)
	}
	if len(resp.Choices) == 0 {
		return nil, provider.Wrap(Name, "generate", errors.New("empty choices in response"))
	}
	out := &provider.Generation{Text: resp.Choices[0].Message.ContentString()}
	if resp.Usage != nil {
		out.Usage = provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (p *Provider) buildParams(prompt string, opts provider.GenerateOptions) anyllm.CompletionParams {
	model := opts.Model
	if model == "" {
		model = p.model
	}
	var messages []anyllm.Message
	if opts.System != "" {
		messages = append(messages, anyllm.Message{Role: "system", Content: opts.System})
	}
	messages = append(messages, anyllm.Message{Role: "user", Content: prompt})

	params := anyllm.CompletionParams{Model: model, Messages: messages}
	if opts.Temperature != nil {
		t := *opts.Temperature
		params.Temperature = &t
	}
	return params
}
