package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		write   func(c *gin.Context)
		status  int
		success bool
	}{
		{"ok", func(c *gin.Context) { OK(c, gin.H{"a": 1}) }, http.StatusOK, true},
		{"created", func(c *gin.Context) { Created(c, nil) }, http.StatusCreated, true},
		{"bad request", func(c *gin.Context) { BadRequest(c, "x") }, http.StatusBadRequest, false},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "x") }, http.StatusUnauthorized, false},
		{"not found", func(c *gin.Context) { NotFound(c, "x") }, http.StatusNotFound, false},
		{"bad gateway", func(c *gin.Context) { BadGateway(c, "x", gin.H{"stage": "llm"}) }, http.StatusBadGateway, false},
		{"not implemented", func(c *gin.Context) { NotImplemented(c, "x") }, http.StatusNotImplemented, false},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, "x") }, http.StatusServiceUnavailable, false},
		{"internal", func(c *gin.Context) { Internal(c, "x") }, http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			tc.write(c)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body Body
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success != tc.success {
				t.Fatalf("success = %v", body.Success)
			}
		})
	}
}
