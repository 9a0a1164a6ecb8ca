package interview

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jenin-ai/interview-backend/pkg/response"
)

// QuestionRequest is the body for POST /interview/question. Question is
// accepted as an alias of Text.
type QuestionRequest struct {
	Text        string `json:"text"`
	Question    string `json:"question"`
	WantTTS     bool   `json:"want_tts"`
	AudioBase64 string `json:"audio_base64"`
	MimeType    string `json:"mimetype"`
	Language    string `json:"language"`
}

// ToAsk converts the body into an AskRequest.
func (r QuestionRequest) ToAsk(sessionID string) (AskRequest, error) {
	req := AskRequest{
		SessionID:  sessionID,
		Text:       r.Text,
		MimeType:   r.MimeType,
		Language:   r.Language,
		WantSpeech: r.WantTTS,
	}
	if req.Text == "" {
		req.Text = r.Question
	}
	if r.AudioBase64 != "" {
		audio, err := DecodeAudio(r.AudioBase64)
		if err != nil {
			return req, err
		}
		req.Audio = audio
	}
	return req, nil
}

// DecodeAudio accepts raw base64 or a data URL.
func DecodeAudio(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("audio_base64 is not valid base64")
	}
	return b, nil
}

// Handler serves /api/v1/interview.
type Handler struct {
	svc *Service
}

// NewHandler creates an interview handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/interview")
	g.GET("", h.Index)
	g.GET("/health", h.Health)
	g.POST("/question", h.Question)
}

// Index handles GET /interview.
func (h *Handler) Index(c *gin.Context) {
	response.OK(c, gin.H{
		"route": "/api/v1/interview",
		"endpoints": []string{
			"GET /api/v1/interview",
			"GET /api/v1/interview/health",
			"POST /api/v1/interview/question",
		},
		"providers": h.svc.Providers(),
	})
}

// Health handles GET /interview/health.
func (h *Handler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok", "module": "interview", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// SessionID reads the optional session id from X-Session-Id or ?session_id.
func SessionID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Session-Id")); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("session_id"))
}

// Question handles POST /interview/question.
func (h *Handler) Question(c *gin.Context) {
	var body QuestionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	req, err := body.ToAsk(SessionID(c))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.svc.Ask(c.Request.Context(), req)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			response.BadGateway(c, se.Error(), gin.H{"stage": se.Stage, "provider": se.Provider, "result": res})
			return
		}
		response.Internal(c, "failed to answer question")
		return
	}
	response.OK(c, res)
}
