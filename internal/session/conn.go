package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/capture"
	"github.com/jenin-ai/interview-backend/internal/transcript"
)

// State is a connection's lifecycle state.
type State string

const (
	StateOpen      State = "open"
	StateStreaming State = "streaming"
	StateClosed    State = "closed"
)

// Conn is one live connection bound to a transcript session.
type Conn struct {
	ID        string
	SessionID string

	reg *Registry
	out Outbound

	mu       sync.Mutex
	state    State
	agg      *capture.Aggregator
	mimeType string
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetMimeType sets the MIME type used for the next capture.
func (c *Conn) SetMimeType(mimeType string) {
	if mimeType == "" {
		return
	}
	c.mu.Lock()
	c.mimeType = mimeType
	c.mu.Unlock()
}

// Send queues an event for the client unless the connection is closed.
func (c *Conn) Send(event string, payload any) bool {
	if c.State() == StateClosed || c.out == nil {
		return false
	}
	return c.out.Send(event, payload)
}

// PushFragment buffers a fragment, starting a capture on the first one.
func (c *Conn) PushFragment(fragment []byte) {
	if len(fragment) == 0 {
		return
	}
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if c.agg == nil {
		c.agg = c.reg.newAggregator(c, c.mimeType)
		c.state = StateStreaming
	}
	agg := c.agg
	c.mu.Unlock()
	agg.Push(fragment)
}

// EndStream finalizes the current capture and returns the connection to
// OPEN. Without a capture it still produces an empty final result.
func (c *Conn) EndStream(ctx context.Context) capture.Result {
	c.mu.Lock()
	agg := c.agg
	if agg == nil {
		agg = c.reg.newAggregator(c, c.mimeType)
	}
	c.agg = nil
	if c.state != StateClosed {
		c.state = StateOpen
	}
	c.mu.Unlock()
	return agg.Finalize(ctx)
}

// SingleShot transcribes a complete blob outside the streaming buffer.
func (c *Conn) SingleShot(ctx context.Context, audio []byte, mimeType string) capture.Result {
	if mimeType == "" {
		c.mu.Lock()
		mimeType = c.mimeType
		c.mu.Unlock()
	}
	return c.reg.newAggregator(c, mimeType).SingleShot(ctx, audio)
}

func (c *Conn) close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	agg := c.agg
	c.agg = nil
	c.mu.Unlock()

	if agg != nil {
		if c.reg.cfg.DisconnectPolicy == DisconnectFinalize && agg.Buffered() > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), c.reg.cfg.CallTimeout)
			agg.Finalize(ctx)
			cancel()
		}
		agg.Close()
	}
	c.reg.log.End(c.SessionID)
}

// deliver records a capture result in the transcript and forwards it to the
// client while the connection is still open.
func (c *Conn) deliver(res capture.Result, mimeType string) {
	log := c.reg.log
	if res.Err != nil {
		log.Append(c.SessionID, transcript.Failure(StageSTT, res.Provider, res.Err))
		c.emit(EventError, ErrorMessage{Stage: StageSTT, Error: res.Err.Error()})
		return
	}

	msg := STTMessage{Text: res.Text, Provider: res.Provider}
	var recordingKey string
	switch res.Kind {
	case capture.KindInterim:
		msg.Interim = true
		log.Append(c.SessionID, transcript.InterimTranscript(res.Text, res.Provider))
	case capture.KindFinal:
		msg.Final = true
		ev := transcript.FinalTranscript(res.Text, res.Provider, res.Bytes)
		if c.reg.archiver != nil && len(res.Audio) > 0 {
			recordingKey = c.reg.archiver.RecordingKey(c.SessionID, mimeType)
			ev.RecordingKey = recordingKey
			msg.RecordingKey = recordingKey
		}
		log.Append(c.SessionID, ev)
	case capture.KindSingleShot:
		msg.Final = true
		log.Append(c.SessionID, transcript.SingleShotTranscript(res.Text, res.Provider, res.Bytes))
	}
	c.emit(EventSTT, msg)
	if recordingKey != "" {
		c.reg.archive(recordingKey, c.SessionID, res.Audio, mimeType)
	}
}

func (c *Conn) emit(event string, payload any) {
	if !c.Send(event, payload) {
		c.reg.logger.Debug("result not delivered", zap.String("conn_id", c.ID), zap.String("event", event))
	}
}
