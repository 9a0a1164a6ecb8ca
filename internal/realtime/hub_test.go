package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/transcript"
)

func transcriptEvent() transcript.Event {
	return transcript.QuestionSubmitted("why go?")
}

func watcher(id, sessionID string) *Client {
	return &Client{ID: id, SessionID: sessionID, send: make(chan WSMessage, 4), done: make(chan struct{}), logger: zap.NewNop()}
}

func TestHubLocalBroadcast(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	a, b, other := watcher("a", "s1"), watcher("b", "s1"), watcher("c", "s2")
	hub.Register(a)
	hub.Register(b)
	hub.Register(other)

	if n := hub.Watchers("s1"); n != 2 {
		t.Fatalf("watchers = %d", n)
	}

	hub.Publish("s1", transcriptEvent())

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			var ev transcript.Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				t.Fatal(err)
			}
			if msg.Event != EventTranscript || ev.Type != transcript.EventQuestionSubmitted || ev.Text != "why go?" {
				t.Errorf("%s got %+v", c.ID, msg)
			}
		default:
			t.Errorf("%s received nothing", c.ID)
		}
	}
	if len(other.send) != 0 {
		t.Error("watcher of another session received the event")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	a := watcher("a", "s1")
	hub.Register(a)
	hub.Unregister(a)
	if n := hub.Watchers("s1"); n != 0 {
		t.Fatalf("watchers = %d", n)
	}
	hub.Publish("s1", transcriptEvent())
	if len(a.send) != 0 {
		t.Error("unregistered watcher received an event")
	}
}

func TestClientSendAfterShutdown(t *testing.T) {
	c := watcher("a", "s1")
	if !c.Send("x", map[string]int{"n": 1}) {
		t.Fatal("Send on open client returned false")
	}
	c.shutdown()
	c.shutdown()
	if c.Send("x", nil) {
		t.Error("Send after shutdown returned true")
	}
}

type slowPublisher struct {
	delay time.Duration

	mu     sync.Mutex
	events []string
}

func (p *slowPublisher) PublishSessionEvent(sessionID, event string, _ []byte) error {
	time.Sleep(p.delay)
	p.mu.Lock()
	p.events = append(p.events, sessionID+"/"+event)
	p.mu.Unlock()
	return nil
}

func (p *slowPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestHubPublishDoesNotBlockOnSlowPublisher(t *testing.T) {
	pub := &slowPublisher{delay: 500 * time.Millisecond}
	hub := NewHub(nil, pub, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		hub.Publish("s1", transcriptEvent())
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("publish blocked for %v", elapsed)
	}

	hub.Close()
	if n := pub.published(); n != 3 {
		t.Fatalf("close must drain queued events, published %d", n)
	}
}

func TestHubPublishAfterCloseDeliversLocally(t *testing.T) {
	pub := &slowPublisher{}
	hub := NewHub(nil, pub, nil)
	w := watcher("w1", "s1")
	hub.Register(w)
	hub.Close()

	hub.Publish("s1", transcriptEvent())
	if len(w.send) != 1 {
		t.Fatalf("expected local delivery after close, got %d", len(w.send))
	}
	if pub.published() != 0 {
		t.Fatal("nothing should be published after close")
	}
}

type blockingSubscriber struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSubscriber) SubscribeSession(string, func(string, []byte)) (func(), error) {
	close(s.entered)
	<-s.release
	return func() {}, nil
}

func TestHubRegisterSubscribesWithoutLock(t *testing.T) {
	sub := &blockingSubscriber{entered: make(chan struct{}), release: make(chan struct{})}
	hub := NewHub(nil, nil, sub)
	other := watcher("o", "s2")
	hub.mu.Lock()
	hub.sessions["s2"] = map[string]*Client{other.ID: other}
	hub.mu.Unlock()

	registered := make(chan struct{})
	go func() {
		hub.Register(watcher("w1", "s1"))
		close(registered)
	}()
	<-sub.entered

	broadcast := make(chan struct{})
	go func() {
		hub.Broadcast("s2", EventTranscript, transcriptEvent())
		close(broadcast)
	}()
	select {
	case <-broadcast:
	case <-time.After(time.Second):
		t.Fatal("broadcast waited for the subscribe round trip")
	}

	close(sub.release)
	<-registered
	hub.mu.RLock()
	_, ok := hub.subs["s1"]
	hub.mu.RUnlock()
	if !ok {
		t.Fatal("subscription cancel not installed")
	}
	hub.Close()
}
