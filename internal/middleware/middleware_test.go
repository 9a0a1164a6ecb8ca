package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/auth"
	"github.com/jenin-ai/interview-backend/internal/metrics"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAPIKey(t *testing.T) {
	r := newRouter(APIKey(auth.NewGate("secret", nil)))

	if rec := do(r, httptest.NewRequest(http.MethodGet, "/items/1", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key code = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/items/1", nil)
	req.Header.Set("x-api-key", "secret")
	if rec := do(r, req); rec.Code != http.StatusOK {
		t.Errorf("valid key code = %d", rec.Code)
	}

	open := newRouter(APIKey(auth.NewGate("", nil)))
	if rec := do(open, httptest.NewRequest(http.MethodGet, "/items/1", nil)); rec.Code != http.StatusOK {
		t.Errorf("open gate code = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS("http://a.test"))
	req := httptest.NewRequest(http.MethodOptions, "/items/1", nil)
	req.Header.Set("Origin", "http://a.test")
	rec := do(r, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://a.test" {
		t.Errorf("code=%d headers=%v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/items/1", nil)
	req.Header.Set("Origin", "http://other.test")
	if got := do(r, req).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := newRouter(Logger(zap.NewNop()), Metrics(m))
	do(r, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if n := testutil.CollectAndCount(m.HTTPRequestDuration); n != 2 {
		t.Errorf("series = %d, want 2", n)
	}
	if n := testutil.CollectAndCount(m.HTTPRequestDuration, "interview_http_request_duration_seconds"); n != 2 {
		t.Errorf("named series = %d", n)
	}
}
