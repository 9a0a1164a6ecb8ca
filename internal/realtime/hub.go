package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/transcript"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// EventTranscript is sent to watchers for every appended transcript event.
const EventTranscript = "transcript:event"

const outboxSize = 256

// Publisher publishes session events for other instances.
type Publisher interface {
	PublishSessionEvent(sessionID, event string, payload []byte) error
}

// Subscriber subscribes to a session's events from every instance.
type Subscriber interface {
	SubscribeSession(sessionID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains session_id -> set of watcher connections. With Redis it fans
// events out across instances; without it delivery is local only.
type Hub struct {
	sessions map[string]map[string]*Client
	subs     map[string]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	pub      Publisher
	sub      Subscriber

	outbox    chan publication
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type publication struct {
	sessionID string
	data      []byte
}

// NewHub creates a watcher hub. pub and sub may be nil. With a publisher,
// events are published from a background loop stopped by Close.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		sessions: make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		pub:      pub,
		sub:      sub,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if pub != nil {
		h.outbox = make(chan publication, outboxSize)
		go h.publishLoop()
	} else {
		close(h.done)
	}
	return h
}

// Register adds a watcher. The first watcher of a session subscribes to its
// Redis channel; the subscribe round trip runs without holding the hub lock.
func (h *Hub) Register(c *Client) {
	sessionID := c.SessionID
	h.mu.Lock()
	first := h.sessions[sessionID] == nil
	if first {
		h.sessions[sessionID] = make(map[string]*Client)
	}
	h.sessions[sessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("watcher joined", zap.String("client_id", c.ID), zap.String("session_id", sessionID))

	if !first || h.sub == nil {
		return
	}
	cancel, err := h.sub.SubscribeSession(sessionID, func(event string, payload []byte) {
		h.Broadcast(sessionID, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("session subscribe failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	h.mu.Lock()
	_, watched := h.sessions[sessionID]
	_, subscribed := h.subs[sessionID]
	if watched && !subscribed {
		h.subs[sessionID] = cancel
		cancel = nil
	}
	h.mu.Unlock()
	if cancel != nil {
		// Every watcher left, or another Register won, while subscribing.
		cancel()
	}
}

// Unregister removes a watcher and drops the subscription with the last one.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("watcher left", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID))
}

// Watchers returns the number of local watchers of a session.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Broadcast sends a message to the local watchers of a session.
func (h *Hub) Broadcast(sessionID, event string, payload any) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions[sessionID] {
		c.enqueue(msg)
	}
}

// Publish implements transcript.Notifier and never blocks. With Redis the
// event is queued for the publish loop and the subscription delivers it
// locally, so each watcher sees it once. A full queue or a stopped hub falls
// back to local delivery.
func (h *Hub) Publish(sessionID string, ev transcript.Event) {
	if h.pub == nil {
		h.Broadcast(sessionID, EventTranscript, ev)
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case <-h.quit:
		h.Broadcast(sessionID, EventTranscript, json.RawMessage(data))
		return
	default:
	}
	select {
	case h.outbox <- publication{sessionID: sessionID, data: data}:
	default:
		h.logger.Warn("publish queue full, delivering locally", zap.String("session_id", sessionID))
		h.Broadcast(sessionID, EventTranscript, json.RawMessage(data))
	}
}

func (h *Hub) publishLoop() {
	defer close(h.done)
	for {
		select {
		case p := <-h.outbox:
			h.publish(p)
		case <-h.quit:
			for {
				select {
				case p := <-h.outbox:
					h.publish(p)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) publish(p publication) {
	if err := h.pub.PublishSessionEvent(p.sessionID, EventTranscript, p.data); err != nil {
		h.logger.Warn("publish session event failed", zap.String("session_id", p.sessionID), zap.Error(err))
		h.Broadcast(p.sessionID, EventTranscript, json.RawMessage(p.data))
	}
}

// Close drains queued publications and cancels every Redis subscription.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cancel := range h.subs {
		cancel()
		delete(h.subs, id)
	}
}

func encode(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
