package interview

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/internal/provider/mock"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).Register(r.Group("/api/v1"))
	return r
}

func post(t *testing.T, r http.Handler, path, body string, header map[string]string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return rec.Code, env
}

func TestQuestionEndpoint(t *testing.T) {
	set, _, _, _ := mockSet()
	svc, log := newService(set)
	r := newRouter(svc)

	code, env := post(t, r, "/api/v1/interview/question", `{"question":"Why this role?","want_tts":true}`,
		map[string]string{"X-Session-Id": "rest-1"})
	if code != http.StatusOK || !env.Success {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
	var res AskResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.ReceivedText != "Why this role?" || res.Speech == nil || res.Providers.TTS != "mock-tts" {
		t.Errorf("result = %+v", res)
	}
	if _, ok := log.Get(context.Background(), "rest-1"); !ok {
		t.Error("session not recorded")
	}
}

func TestQuestionEndpointEmptyBody(t *testing.T) {
	set, _, _, _ := mockSet()
	svc, _ := newService(set)
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/interview/question", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d (%s)", rec.Code, rec.Body.String())
	}
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	var res AskResult
	_ = json.Unmarshal(env.Data, &res)
	if res.ReceivedText != Placeholder {
		t.Errorf("received = %q", res.ReceivedText)
	}
}

func TestQuestionEndpointAudio(t *testing.T) {
	set, _, _, _ := mockSet()
	svc, _ := newService(set)
	r := newRouter(svc)

	audio := "data:audio/webm;base64," + base64.StdEncoding.EncodeToString([]byte("spoken"))
	code, env := post(t, r, "/api/v1/interview/question?session_id=q1", `{"audio_base64":"`+audio+`"}`, nil)
	if code != http.StatusOK {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
	var res AskResult
	_ = json.Unmarshal(env.Data, &res)
	if res.ReceivedText != "spoken" || res.Providers.STT != "mock-stt" {
		t.Errorf("result = %+v", res)
	}

	code, _ = post(t, r, "/api/v1/interview/question", `{"audio_base64":"%%%"}`, nil)
	if code != http.StatusBadRequest {
		t.Errorf("bad base64 code = %d", code)
	}
}

func TestQuestionEndpointStageFailure(t *testing.T) {
	set, _, _, _ := mockSet()
	set.LLM = &mock.LLM{GenerateFunc: func(context.Context, string) (*provider.Generation, error) {
		return nil, errors.New("upstream down")
	}}
	svc, _ := newService(set)
	r := newRouter(svc)

	code, env := post(t, r, "/api/v1/interview/question", `{"text":"hi"}`, nil)
	if code != http.StatusBadGateway || env.Success {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
	var data struct {
		Stage string `json:"stage"`
	}
	_ = json.Unmarshal(env.Data, &data)
	if data.Stage != StageLLM {
		t.Errorf("stage = %q", data.Stage)
	}
}

func TestInterviewIndexAndHealth(t *testing.T) {
	set, _, _, _ := mockSet()
	svc, _ := newService(set)
	r := newRouter(svc)

	for _, path := range []string{"/api/v1/interview", "/api/v1/interview/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s code = %d", path, rec.Code)
		}
	}
}
