// Package session binds live interview connections to transcript sessions and
// owns each connection's capture lifecycle.
//
// A connection moves OPEN -> STREAMING on its first audio fragment, back to
// OPEN when the stream is finalized, and to CLOSED on disconnect. CLOSED is
// terminal for the connection; the transcript session stays queryable.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jenin-ai/interview-backend/internal/capture"
	"github.com/jenin-ai/interview-backend/internal/metrics"
	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/internal/transcript"
)

// Push channel event names.
const (
	EventReady = "interview:ready"
	EventSTT   = "interview:stt"
	EventReply = "interview:reply"
	EventError = "interview:error"
)

// StageSTT tags transcription failures.
const StageSTT = "stt"

// ErrUnknownConnection is returned for operations on a connection that was
// never opened or is already closed.
var ErrUnknownConnection = errors.New("session: unknown connection")

// DisconnectPolicy decides what happens to buffered audio on disconnect.
type DisconnectPolicy string

const (
	// DisconnectDiscard drops unflushed audio without transcribing it.
	DisconnectDiscard DisconnectPolicy = "discard"
	// DisconnectFinalize transcribes unflushed audio once before closing.
	DisconnectFinalize DisconnectPolicy = "finalize"
)

// ParseDisconnectPolicy maps a config string to a policy; unknown values discard.
func ParseDisconnectPolicy(s string) DisconnectPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(DisconnectFinalize)) {
		return DisconnectFinalize
	}
	return DisconnectDiscard
}

// Outbound delivers server events to one client. Send reports false when the
// event could not be queued.
type Outbound interface {
	Send(event string, payload any) bool
}

// Retention is triggered whenever a session starts.
type Retention interface {
	Trigger() <-chan singleflight.Result
}

// Archiver stores the audio of a finalized capture. The key is assigned up
// front so the final result can carry it while the upload runs.
type Archiver interface {
	RecordingKey(sessionID, mimeType string) string
	Archive(ctx context.Context, key, sessionID string, audio []byte, mimeType string) error
}

// STTMessage is the payload of EventSTT.
type STTMessage struct {
	Text         string `json:"text"`
	Provider     string `json:"provider"`
	Interim      bool   `json:"interim"`
	Final        bool   `json:"final"`
	RecordingKey string `json:"recording_key,omitempty"`
}

// ErrorMessage is the payload of EventError.
type ErrorMessage struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Config tunes the registry.
type Config struct {
	Debounce         time.Duration
	CallTimeout      time.Duration
	Language         string
	DefaultMimeType  string
	DisconnectPolicy DisconnectPolicy
}

// Registry maps connection ids to live connections.
type Registry struct {
	stt       provider.STT
	log       *transcript.Log
	retention Retention
	archiver  Archiver
	metrics   *metrics.Metrics
	cfg       Config
	logger    *zap.Logger

	mu    sync.RWMutex
	conns map[string]*Conn

	archives sync.WaitGroup
}

// NewRegistry creates a registry. retention, archiver and m may be nil.
func NewRegistry(stt provider.STT, log *transcript.Log, retention Retention, archiver Archiver, m *metrics.Metrics, cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DisconnectPolicy == "" {
		cfg.DisconnectPolicy = DisconnectDiscard
	}
	if cfg.DefaultMimeType == "" {
		cfg.DefaultMimeType = "audio/webm"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	return &Registry{
		stt:       stt,
		log:       log,
		retention: retention,
		archiver:  archiver,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		conns:     make(map[string]*Conn),
	}
}

// Open registers a connection for sessionID and starts the transcript session.
func (r *Registry) Open(connID, sessionID string, out Outbound) (*Conn, error) {
	if connID == "" || sessionID == "" {
		return nil, fmt.Errorf("open connection: connection and session id required")
	}
	c := &Conn{
		ID:        connID,
		SessionID: sessionID,
		reg:       r,
		out:       out,
		state:     StateOpen,
		mimeType:  r.cfg.DefaultMimeType,
	}
	r.mu.Lock()
	if _, exists := r.conns[connID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("open connection %s: already open", connID)
	}
	r.conns[connID] = c
	r.mu.Unlock()

	r.log.Start(sessionID)
	if r.retention != nil {
		r.retention.Trigger()
	}
	r.metrics.ConnectionOpened()
	r.logger.Debug("connection opened", zap.String("conn_id", connID), zap.String("session_id", sessionID))
	return c, nil
}

// Get returns the live connection for connID.
func (r *Registry) Get(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// PushFragment buffers an audio fragment for connID.
func (r *Registry) PushFragment(connID string, fragment []byte) error {
	c, ok := r.Get(connID)
	if !ok {
		return ErrUnknownConnection
	}
	c.PushFragment(fragment)
	return nil
}

// EndStream finalizes the current capture on connID.
func (r *Registry) EndStream(ctx context.Context, connID string) (capture.Result, error) {
	c, ok := r.Get(connID)
	if !ok {
		return capture.Result{}, ErrUnknownConnection
	}
	return c.EndStream(ctx), nil
}

// SingleShot transcribes one complete blob for connID.
func (r *Registry) SingleShot(ctx context.Context, connID string, audio []byte, mimeType string) (capture.Result, error) {
	c, ok := r.Get(connID)
	if !ok {
		return capture.Result{}, ErrUnknownConnection
	}
	return c.SingleShot(ctx, audio, mimeType), nil
}

// Close tears down connID and ends its transcript session. Closing an
// unknown connection is a no-op.
func (r *Registry) Close(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	r.metrics.ConnectionClosed()
	r.logger.Debug("connection closed", zap.String("conn_id", connID), zap.String("session_id", c.SessionID))
}

// CloseAll closes every live connection and waits for running recording
// uploads, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		r.Close(id)
	}
	r.archives.Wait()
}

// archive uploads a finalized capture off the delivery path.
func (r *Registry) archive(key, sessionID string, audio []byte, mimeType string) {
	r.archives.Add(1)
	go func() {
		defer r.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.CallTimeout)
		defer cancel()
		if err := r.archiver.Archive(ctx, key, sessionID, audio, mimeType); err != nil {
			r.logger.Warn("recording archive failed", zap.String("session_id", sessionID), zap.String("key", key), zap.Error(err))
			return
		}
		r.logger.Debug("recording archived", zap.String("session_id", sessionID), zap.String("key", key))
	}()
}

func (r *Registry) newAggregator(c *Conn, mimeType string) *capture.Aggregator {
	return capture.New(r.stt, capture.Config{
		Debounce:    r.cfg.Debounce,
		CallTimeout: r.cfg.CallTimeout,
		Options:     provider.TranscribeOptions{Language: r.cfg.Language, MimeType: mimeType},
	}, func(res capture.Result) { c.deliver(res, mimeType) }, r.logger.With(zap.String("session_id", c.SessionID)))
}
