package transcript

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakePruner struct {
	log    *Log
	max    int
	called int
}

func (p *fakePruner) PruneTo(ctx context.Context, max int) int {
	p.called = max
	return p.log.Prune(ctx, max)
}

func (p *fakePruner) Max() int { return p.max }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(l *Log, p Pruner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(l, p).Register(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r http.Handler, method, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec.Code, env
}

func TestHandlerSessions(t *testing.T) {
	l := NewLog(NewMemoryStore(), Options{}, nil)
	p := &fakePruner{log: l, max: 500}
	r := newTestRouter(l, p)

	l.Start("a")
	l.Append("a", QuestionSubmitted("q"))
	l.Start("b")

	code, env := do(t, r, http.MethodGet, "/api/v1/sessions")
	if code != http.StatusOK {
		t.Fatalf("list status %d", code)
	}
	var list struct {
		Sessions []Summary `json:"sessions"`
	}
	_ = json.Unmarshal(env.Data, &list)
	if len(list.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %+v", list.Sessions)
	}

	code, env = do(t, r, http.MethodGet, "/api/v1/sessions/a")
	if code != http.StatusOK {
		t.Fatalf("get status %d", code)
	}
	var s Session
	_ = json.Unmarshal(env.Data, &s)
	if s.ID != "a" || len(s.Events) != 1 || s.Events[0].Type != EventQuestionSubmitted {
		t.Fatalf("unexpected session %+v", s)
	}

	if code, _ := do(t, r, http.MethodGet, "/api/v1/sessions/missing"); code != http.StatusNotFound {
		t.Fatalf("missing get status %d", code)
	}

	if code, _ := do(t, r, http.MethodDelete, "/api/v1/sessions/a"); code != http.StatusOK {
		t.Fatalf("delete status %d", code)
	}
	if code, _ := do(t, r, http.MethodDelete, "/api/v1/sessions/a"); code != http.StatusNotFound {
		t.Fatalf("repeat delete status %d", code)
	}
}

func TestHandlerPrune(t *testing.T) {
	l := NewLog(NewMemoryStore(), Options{}, nil)
	p := &fakePruner{log: l, max: 7}
	r := newTestRouter(l, p)
	l.Start("a")
	l.Start("b")
	l.Flush(context.Background())

	code, env := do(t, r, http.MethodDelete, "/api/v1/sessions?max=1")
	if code != http.StatusOK {
		t.Fatalf("prune status %d", code)
	}
	var out struct {
		Deleted int `json:"deleted"`
		Max     int `json:"max"`
	}
	_ = json.Unmarshal(env.Data, &out)
	if out.Deleted != 1 || out.Max != 1 {
		t.Fatalf("unexpected prune result %+v", out)
	}

	do(t, r, http.MethodDelete, "/api/v1/sessions")
	if p.called != 7 {
		t.Fatalf("default max not used, got %d", p.called)
	}

	if code, _ := do(t, r, http.MethodDelete, "/api/v1/sessions?max=-2"); code != http.StatusBadRequest {
		t.Fatalf("invalid max status %d", code)
	}
}
