// Package eval exposes single-provider probes so each of STT, LLM and TTS can
// be exercised in isolation.
package eval

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/interview"
	"github.com/jenin-ai/interview-backend/internal/provider"
	"github.com/jenin-ai/interview-backend/pkg/response"
)

// Defaults fill options the request leaves empty and name the models in responses.
type Defaults struct {
	STTModel string
	Language string
	MimeType string
	Generate provider.GenerateOptions
	Speech   provider.SynthesizeOptions
	Timeout  time.Duration
}

// STTRequest is the body for POST /eval/stt.
type STTRequest struct {
	AudioBase64 string `json:"audio_base64"`
	MimeType    string `json:"mimetype"`
	Language    string `json:"language"`
}

// LLMRequest is the body for POST /eval/llm.
type LLMRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	System      string   `json:"system"`
}

// TTSRequest is the body for POST /eval/tts.
type TTSRequest struct {
	Text   string `json:"text"`
	Model  string `json:"model"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

// Handler serves /api/v1/eval.
type Handler struct {
	set    provider.Set
	def    Defaults
	logger *zap.Logger
}

// NewHandler creates an eval handler.
func NewHandler(set provider.Set, def Defaults, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if def.Timeout <= 0 {
		def.Timeout = 60 * time.Second
	}
	if def.MimeType == "" {
		def.MimeType = "audio/webm"
	}
	return &Handler{set: set, def: def, logger: logger}
}

// Register mounts the routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/eval")
	g.GET("", h.Index)
	g.POST("/stt", h.STT)
	g.POST("/llm", h.LLM)
	g.POST("/tts", h.TTS)
}

// Index handles GET /eval.
func (h *Handler) Index(c *gin.Context) {
	response.OK(c, gin.H{
		"route": "/api/v1/eval",
		"endpoints": []string{
			"GET /api/v1/eval",
			"POST /api/v1/eval/stt",
			"POST /api/v1/eval/llm",
			"POST /api/v1/eval/tts",
		},
	})
}

// STT handles POST /eval/stt.
func (h *Handler) STT(c *gin.Context) {
	var req STTRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AudioBase64 == "" {
		response.BadRequest(c, "missing audio_base64")
		return
	}
	audio, err := interview.DecodeAudio(req.AudioBase64)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	opts := provider.TranscribeOptions{
		MimeType: or(req.MimeType, h.def.MimeType),
		Language: or(req.Language, h.def.Language),
	}

	ctx, cancel := h.context(c)
	defer cancel()
	tr, err := h.set.STT.Transcribe(ctx, audio, opts)
	if err != nil {
		h.fail(c, h.set.STT.Name(), err)
		return
	}
	segments := tr.Segments
	if segments == nil {
		segments = []provider.Segment{}
	}
	response.OK(c, gin.H{
		"provider": h.set.STT.Name(),
		"model":    h.def.STTModel,
		"text":     tr.Text,
		"segments": segments,
	})
}

// LLM handles POST /eval/llm.
func (h *Handler) LLM(c *gin.Context) {
	var req LLMRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		response.BadRequest(c, "missing prompt")
		return
	}
	opts := h.def.Generate
	opts.Model = or(req.Model, opts.Model)
	opts.System = or(req.System, opts.System)
	if req.Temperature != nil {
		opts.Temperature = req.Temperature
	}

	ctx, cancel := h.context(c)
	defer cancel()
	gen, err := h.set.LLM.Generate(ctx, req.Prompt, opts)
	if err != nil {
		h.fail(c, h.set.LLM.Name(), err)
		return
	}
	response.OK(c, gin.H{
		"provider": h.set.LLM.Name(),
		"model":    opts.Model,
		"text":     gen.Text,
		"usage":    gen.Usage,
	})
}

// TTS handles POST /eval/tts.
func (h *Handler) TTS(c *gin.Context) {
	var req TTSRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		response.BadRequest(c, "missing text")
		return
	}
	opts := h.def.Speech
	opts.Model = or(req.Model, opts.Model)
	opts.Voice = or(req.Voice, opts.Voice)
	opts.Format = or(req.Format, opts.Format)

	ctx, cancel := h.context(c)
	defer cancel()
	sp, err := h.set.TTS.Synthesize(ctx, req.Text, opts)
	if err != nil {
		h.fail(c, h.set.TTS.Name(), err)
		return
	}
	response.OK(c, gin.H{
		"provider":     h.set.TTS.Name(),
		"model":        opts.Model,
		"voice":        opts.Voice,
		"audio_base64": base64.StdEncoding.EncodeToString(sp.Audio),
		"mimetype":     sp.MimeType,
	})
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.def.Timeout)
}

func (h *Handler) fail(c *gin.Context, name string, err error) {
	h.logger.Warn("eval provider call failed", zap.String("provider", name), zap.Error(err))
	if errors.Is(err, provider.ErrNotConfigured) {
		response.ServiceUnavailable(c, err.Error())
		return
	}
	response.BadGateway(c, err.Error(), gin.H{"provider": name})
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
