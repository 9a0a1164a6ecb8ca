package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/interview"
	"github.com/jenin-ai/interview-backend/internal/session"
)

// Client -> server events.
const (
	EventAudio      = "interview:audio"
	EventAudioChunk = "interview:audio_chunk"
	EventAudioEnd   = "interview:audio_end"
	EventQuestion   = "interview:question"
)

const (
	interviewReadLimit = 16 << 20
	watchReadLimit     = 4096
	writeWait          = 10 * time.Second
	sendBuffer         = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AudioMessage is the payload of interview:audio and interview:audio_chunk.
type AudioMessage struct {
	AudioBase64 string `json:"audio_base64"`
	MimeType    string `json:"mimetype"`
}

// ReadyMessage is the payload of interview:ready.
type ReadyMessage struct {
	SessionID    string              `json:"session_id"`
	ConnectionID string              `json:"connection_id"`
	Providers    interview.Providers `json:"providers"`
}

// ReplyMessage is the payload of interview:reply.
type ReplyMessage struct {
	Text      string              `json:"text"`
	Provider  string              `json:"provider"`
	Received  string              `json:"received"`
	Providers interview.Providers `json:"providers"`
	TTS       *interview.Speech   `json:"tts"`
}

// SocketAuth authorizes an upgrade request. It returns the session id a
// token is bound to, or "" when the request may pick its own.
type SocketAuth interface {
	AuthorizeSocket(r *http.Request) (sessionID string, err error)
}

// Client is a single WebSocket connection: an interview connection bound to
// the session registry, or a read-only session watcher.
type Client struct {
	ID        string
	SessionID string
	conn      *websocket.Conn
	send      chan WSMessage
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger

	// interview connections only
	reg  *session.Registry
	svc  *interview.Service
	work chan func()
}

func newClient(conn *websocket.Conn, sessionID string, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		ID:        id,
		SessionID: sessionID,
		conn:      conn,
		send:      make(chan WSMessage, sendBuffer),
		done:      make(chan struct{}),
		logger:    logger.With(zap.String("client_id", id), zap.String("session_id", sessionID)),
	}
}

// Send implements session.Outbound. It never blocks; a full buffer drops the event.
func (c *Client) Send(event string, payload any) bool {
	data, err := encode(payload)
	if err != nil {
		c.logger.Warn("encode event", zap.String("event", event), zap.Error(err))
		return false
	}
	return c.enqueue(WSMessage{Event: event, Data: data})
}

func (c *Client) enqueue(msg WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("send buffer full, dropping event", zap.String("event", msg.Event))
		return false
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Server upgrades interview and watcher connections.
type Server struct {
	hub    *Hub
	reg    *session.Registry
	svc    *interview.Service
	auth   SocketAuth
	logger *zap.Logger
}

// NewServer creates the WebSocket server. auth may be nil for open access.
func NewServer(hub *Hub, reg *session.Registry, svc *interview.Service, auth SocketAuth, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{hub: hub, reg: reg, svc: svc, auth: auth, logger: logger}
}

// Register mounts /ws and /ws/sessions/:id/watch.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/ws", s.ServeInterview)
	r.GET("/ws/sessions/:id/watch", s.ServeWatch)
}

func (s *Server) authorize(c *gin.Context, requested string) (string, bool) {
	if s.auth == nil {
		return requested, true
	}
	bound, err := s.auth.AuthorizeSocket(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return "", false
	}
	if bound == "" {
		return requested, true
	}
	if requested != "" && requested != bound {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "token is bound to another session"})
		return "", false
	}
	return bound, true
}

// ServeInterview handles GET /ws?session_id=&token=. Without a session id the
// connection id names the session.
func (s *Server) ServeInterview(c *gin.Context) {
	sessionID, ok := s.authorize(c, strings.TrimSpace(c.Query("session_id")))
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn, sessionID, s.logger)
	if client.SessionID == "" {
		client.SessionID = client.ID
	}
	client.reg = s.reg
	client.svc = s.svc
	client.work = make(chan func(), sendBuffer)

	if _, err := s.reg.Open(client.ID, client.SessionID, client); err != nil {
		s.logger.Warn("open connection failed", zap.Error(err))
		_ = conn.Close()
		return
	}
	client.Send(session.EventReady, ReadyMessage{
		SessionID:    client.SessionID,
		ConnectionID: client.ID,
		Providers:    s.svc.Providers(),
	})

	go client.writePump()
	go client.runWork()
	client.readInterview()
}

// ServeWatch handles GET /ws/sessions/:id/watch.
func (s *Server) ServeWatch(c *gin.Context) {
	sessionID, ok := s.authorize(c, c.Param("id"))
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(conn, sessionID, s.logger)
	s.hub.Register(client)
	go client.writePump()
	client.readWatch(s.hub)
}

func (c *Client) prepareRead(limit int64) {
	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})
}

// readWatch discards client input until the socket closes.
func (c *Client) readWatch(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.shutdown()
		_ = c.conn.Close()
	}()
	c.prepareRead(watchReadLimit)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) readInterview() {
	defer func() {
		c.shutdown()
		c.reg.Close(c.ID)
		_ = c.conn.Close()
	}()
	c.prepareRead(interviewReadLimit)

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("interview socket closed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		if kind == websocket.BinaryMessage {
			c.schedule(func() { c.pushFragment(data) })
			continue
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(session.EventError, session.ErrorMessage{Stage: "input", Error: "malformed message"})
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg WSMessage) {
	switch msg.Event {
	case EventAudioChunk:
		var p AudioMessage
		audio, err := decodeAudio(msg.Data, &p)
		if err != nil {
			c.Send(session.EventError, session.ErrorMessage{Stage: session.StageSTT, Error: err.Error()})
			return
		}
		c.schedule(func() {
			if conn, ok := c.reg.Get(c.ID); ok {
				conn.SetMimeType(p.MimeType)
			}
			c.pushFragment(audio)
		})
	case EventAudioEnd:
		c.schedule(func() {
			if _, err := c.reg.EndStream(context.Background(), c.ID); err != nil {
				c.logger.Debug("end stream", zap.Error(err))
			}
		})
	case EventAudio:
		var p AudioMessage
		audio, err := decodeAudio(msg.Data, &p)
		if err != nil {
			c.Send(session.EventError, session.ErrorMessage{Stage: session.StageSTT, Error: err.Error()})
			return
		}
		go func() {
			if _, err := c.reg.SingleShot(context.Background(), c.ID, audio, p.MimeType); err != nil {
				c.logger.Debug("single shot", zap.Error(err))
			}
		}()
	case EventQuestion:
		var q interview.QuestionRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &q); err != nil {
				c.Send(session.EventError, session.ErrorMessage{Stage: "input", Error: "invalid question payload"})
				return
			}
		}
		go c.ask(q)
	default:
		c.logger.Debug("ignoring event", zap.String("event", msg.Event))
	}
}

func (c *Client) ask(q interview.QuestionRequest) {
	req, err := q.ToAsk(c.SessionID)
	if err != nil {
		c.Send(session.EventError, session.ErrorMessage{Stage: "input", Error: err.Error()})
		return
	}
	res, err := c.svc.Ask(context.Background(), req)
	if res != nil {
		c.Send(session.EventReply, ReplyMessage{
			Text:      res.ReplyText,
			Provider:  res.Providers.LLM,
			Received:  res.ReceivedText,
			Providers: res.Providers,
			TTS:       res.Speech,
		})
	}
	if err != nil {
		stage := "internal"
		var se *interview.StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		c.Send(session.EventError, session.ErrorMessage{Stage: stage, Error: err.Error()})
	}
}

func (c *Client) pushFragment(b []byte) {
	if err := c.reg.PushFragment(c.ID, b); err != nil {
		c.logger.Debug("push fragment", zap.Error(err))
	}
}

// schedule runs fn on the connection's ordered worker.
func (c *Client) schedule(fn func()) {
	select {
	case c.work <- fn:
	case <-c.done:
	}
}

func (c *Client) runWork() {
	for {
		select {
		case fn := <-c.work:
			fn()
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func decodeAudio(data json.RawMessage, p *AudioMessage) ([]byte, error) {
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.New("invalid audio payload")
	}
	if p.AudioBase64 == "" {
		return nil, errors.New("audio_base64 required")
	}
	return interview.DecodeAudio(p.AudioBase64)
}
