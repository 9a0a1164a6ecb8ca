// Package whisper is a local placeholder speech-to-text backend. It returns a
// fixed transcript so the pipeline can run without credentials.
package whisper

import (
	"context"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

const (
	Name     = "whisper"
	StubText = "(stub) transcribed text from Whisper"
)

// Stub implements provider.STT.
type Stub struct{}

// New creates the placeholder provider.
func New() *Stub { return &Stub{} }

func (s *Stub) Name() string { return Name }

// Transcribe ignores the audio and returns StubText.
func (s *Stub) Transcribe(ctx context.Context, _ []byte, _ provider.TranscribeOptions) (*provider.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.Wrap(Name, "transcribe", err)
	}
	return &provider.Transcript{Text: StubText, Segments: []provider.Segment{}}, nil
}
