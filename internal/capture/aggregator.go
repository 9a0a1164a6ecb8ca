// Package capture turns a stream of small audio fragments into provider-ready
// buffers. An Aggregator belongs to exactly one connection: it buffers
// fragments, runs a debounced interim transcription while the client keeps
// talking and a final transcription when the client ends the stream.
package capture

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/provider"
)

// DefaultDebounce is the quiet period after the last fragment before an
// interim transcription runs.
const DefaultDebounce = 400 * time.Millisecond

// Kind tags a transcription result.
type Kind string

const (
	KindInterim    Kind = "interim"
	KindFinal      Kind = "final"
	KindSingleShot Kind = "single-shot"
)

// Result is one transcription outcome. Err is set when the provider failed;
// Text is then empty. Audio carries the transcribed buffer for final results.
type Result struct {
	Kind     Kind
	Text     string
	Provider string
	Bytes    int
	Audio    []byte
	Err      error
}

// Sink receives results. It is called from timer goroutines and from the
// caller of Finalize/SingleShot, never concurrently for the same Aggregator
// except for SingleShot, which is independent of the buffer.
type Sink func(Result)

// Config tunes an Aggregator.
type Config struct {
	Debounce    time.Duration
	CallTimeout time.Duration
	Options     provider.TranscribeOptions
}

// Aggregator buffers fragments for a single connection.
type Aggregator struct {
	stt    provider.STT
	cfg    Config
	sink   Sink
	logger *zap.Logger
	timer  *flushTimer

	mu       sync.Mutex
	buf      [][]byte
	inflight bool
	idle     chan struct{}
	closed   bool
}

// New creates an Aggregator that reports through sink.
func New(stt provider.STT, cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if sink == nil {
		sink = func(Result) {}
	}
	a := &Aggregator{stt: stt, cfg: cfg, sink: sink, logger: logger}
	a.timer = newFlushTimer(cfg.Debounce, a.interimFlush)
	return a
}

// Push appends a fragment and restarts the debounce. Empty fragments are
// ignored and leave the timer alone. Push after Close is a no-op.
func (a *Aggregator) Push(fragment []byte) {
	if len(fragment) == 0 {
		return
	}
	cp := append([]byte(nil), fragment...)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.buf = append(a.buf, cp)
	a.mu.Unlock()
	a.timer.Reset()
}

// Buffered returns the number of buffered bytes.
func (a *Aggregator) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, b := range a.buf {
		n += len(b)
	}
	return n
}

// interimFlush transcribes the buffer so far without clearing it. If a
// previous interim call is still running the debounce is re-armed instead.
func (a *Aggregator) interimFlush() {
	a.mu.Lock()
	if a.closed || len(a.buf) == 0 {
		a.mu.Unlock()
		return
	}
	if a.inflight {
		a.mu.Unlock()
		a.timer.Reset()
		return
	}
	audio := bytes.Join(a.buf, nil)
	a.inflight = true
	a.idle = make(chan struct{})
	a.mu.Unlock()

	res := a.transcribe(context.Background(), KindInterim, audio)
	res.Audio = nil
	a.sink(res)

	a.mu.Lock()
	a.inflight = false
	close(a.idle)
	a.idle = nil
	a.mu.Unlock()
}

// Finalize cancels the debounce, waits for a running interim call, then
// transcribes and clears the whole buffer. It always emits exactly one final
// result, with empty text when nothing was buffered.
func (a *Aggregator) Finalize(ctx context.Context) Result {
	var audio []byte
	for {
		a.timer.Cancel()
		a.mu.Lock()
		if !a.inflight {
			audio = bytes.Join(a.buf, nil)
			a.buf = nil
			a.mu.Unlock()
			break
		}
		idle := a.idle
		a.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			a.mu.Lock()
			audio = bytes.Join(a.buf, nil)
			a.buf = nil
			a.mu.Unlock()
			res := Result{Kind: KindFinal, Provider: a.stt.Name(), Bytes: len(audio), Err: ctx.Err()}
			a.sink(res)
			return res
		}
	}

	var res Result
	if len(audio) == 0 {
		res = Result{Kind: KindFinal, Provider: a.stt.Name()}
	} else {
		res = a.transcribe(ctx, KindFinal, audio)
	}
	a.sink(res)
	return res
}

// SingleShot transcribes audio directly, leaving the buffer untouched.
func (a *Aggregator) SingleShot(ctx context.Context, audio []byte) Result {
	res := a.transcribe(ctx, KindSingleShot, audio)
	res.Audio = nil
	a.sink(res)
	return res
}

// Close cancels the debounce and discards the buffer without transcribing.
// A provider call already running is not cancelled; its result still
// reaches the sink.
func (a *Aggregator) Close() {
	a.timer.Cancel()
	a.mu.Lock()
	a.closed = true
	dropped := len(a.buf)
	a.buf = nil
	a.mu.Unlock()
	if dropped > 0 {
		a.logger.Debug("capture discarded", zap.Int("fragments", dropped))
	}
}

func (a *Aggregator) transcribe(ctx context.Context, kind Kind, audio []byte) Result {
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}
	res := Result{Kind: kind, Provider: a.stt.Name(), Bytes: len(audio), Audio: audio}
	tr, err := a.stt.Transcribe(ctx, audio, a.cfg.Options)
	if err != nil {
		a.logger.Warn("transcription failed", zap.String("kind", string(kind)), zap.Int("bytes", len(audio)), zap.Error(err))
		res.Err = err
		return res
	}
	res.Text = tr.Text
	return res
}
