package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jenin-ai/interview-backend/internal/interview"
	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/internal/provider/mock"
	"github.com/jenin-ai/interview-backend/internal/session"
	"github.com/jenin-ai/interview-backend/internal/transcript"
)

type testEnv struct {
	srv *httptest.Server
	log *transcript.Log
	hub *Hub
	reg *session.Registry
}

type staticAuth struct {
	session string
	err     error
}

func (a staticAuth) AuthorizeSocket(*http.Request) (string, error) { return a.session, a.err }

func newEnv(t *testing.T, set provider.Set, auth SocketAuth) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil, nil)
	log := transcript.NewLog(transcript.NewMemoryStore(), transcript.Options{Notifier: hub}, nil)
	reg := session.NewRegistry(set.STT, log, nil, nil, nil, session.Config{Debounce: time.Hour}, nil)
	svc := interview.NewService(set, log, interview.Config{}, nil)

	r := gin.New()
	NewServer(hub, reg, svc, auth, nil).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, log: log, hub: hub, reg: reg}
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Event == want {
			return msg.Data
		}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, _ := json.Marshal(data)
	if err := conn.WriteJSON(WSMessage{Event: event, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func mockSet() provider.Set {
	return provider.Set{STT: &mock.STT{}, LLM: &mock.LLM{}, TTS: &mock.TTS{}}
}

func TestInterviewSocketReady(t *testing.T) {
	env := newEnv(t, mockSet(), nil)
	conn := env.dial(t, "/ws?session_id=s1")

	var ready ReadyMessage
	if err := json.Unmarshal(readEvent(t, conn, session.EventReady), &ready); err != nil {
		t.Fatal(err)
	}
	if ready.SessionID != "s1" || ready.ConnectionID == "" || ready.Providers.LLM != "mock-llm" {
		t.Errorf("ready = %+v", ready)
	}
	if _, ok := env.log.Get(context.Background(), "s1"); !ok {
		t.Error("session not started on connect")
	}
}

func TestInterviewSocketStreaming(t *testing.T) {
	env := newEnv(t, mockSet(), nil)
	conn := env.dial(t, "/ws?session_id=s1")
	readEvent(t, conn, session.EventReady)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("hello ")); err != nil {
		t.Fatal(err)
	}
	sendEvent(t, conn, EventAudioChunk, AudioMessage{AudioBase64: base64.StdEncoding.EncodeToString([]byte("world"))})
	sendEvent(t, conn, EventAudioEnd, nil)

	var msg session.STTMessage
	if err := json.Unmarshal(readEvent(t, conn, session.EventSTT), &msg); err != nil {
		t.Fatal(err)
	}
	if !msg.Final || msg.Text != "hello world" {
		t.Errorf("stt = %+v", msg)
	}
}

func TestInterviewSocketQuestion(t *testing.T) {
	env := newEnv(t, mockSet(), nil)
	conn := env.dial(t, "/ws?session_id=s1")
	readEvent(t, conn, session.EventReady)

	sendEvent(t, conn, EventQuestion, map[string]any{"text": "hi", "want_tts": true})

	var reply ReplyMessage
	if err := json.Unmarshal(readEvent(t, conn, session.EventReply), &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Received != "hi" || reply.Provider != "mock-llm" || reply.TTS == nil {
		t.Errorf("reply = %+v", reply)
	}
}

func TestInterviewSocketQuestionFailure(t *testing.T) {
	set := mockSet()
	set.LLM = &mock.LLM{GenerateFunc: func(context.Context, string) (*provider.Generation, error) {
		return nil, errors.New("down")
	}}
	env := newEnv(t, set, nil)
	conn := env.dial(t, "/ws?session_id=s1")
	readEvent(t, conn, session.EventReady)

	sendEvent(t, conn, EventQuestion, map[string]any{"text": "hi"})

	var msg session.ErrorMessage
	if err := json.Unmarshal(readEvent(t, conn, session.EventError), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Stage != interview.StageLLM {
		t.Errorf("error = %+v", msg)
	}
}

func TestInterviewSocketDisconnectEndsSession(t *testing.T) {
	env := newEnv(t, mockSet(), nil)
	conn := env.dial(t, "/ws?session_id=s1")
	readEvent(t, conn, session.EventReady)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := env.log.Get(context.Background(), "s1"); ok && s.EndedAt != nil && env.reg.Count() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session not ended after disconnect")
}

func TestWatchSocketReceivesEvents(t *testing.T) {
	env := newEnv(t, mockSet(), nil)
	watch := env.dial(t, "/ws/sessions/s1/watch")

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Watchers("s1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	env.log.Append("s1", transcript.QuestionSubmitted("tell me more"))

	var ev transcript.Event
	if err := json.Unmarshal(readEvent(t, watch, EventTranscript), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != transcript.EventQuestionSubmitted || ev.Text != "tell me more" {
		t.Errorf("event = %+v", ev)
	}
}

func TestSocketAuth(t *testing.T) {
	env := newEnv(t, mockSet(), staticAuth{err: errors.New("bad token")})
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?session_id=s1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got resp=%v err=%v", resp, err)
	}

	bound := newEnv(t, mockSet(), staticAuth{session: "bound"})
	conn := bound.dial(t, "/ws")
	var ready ReadyMessage
	_ = json.Unmarshal(readEvent(t, conn, session.EventReady), &ready)
	if ready.SessionID != "bound" {
		t.Errorf("session = %q", ready.SessionID)
	}

	url = "ws" + strings.TrimPrefix(bound.srv.URL, "http") + "/ws?session_id=other"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got resp=%v err=%v", resp, err)
	}
}
