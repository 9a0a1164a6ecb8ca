package auth

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/pkg/response"
)

// TokenRequest is the body for POST /auth/token.
type TokenRequest struct {
	SessionID string `json:"session_id"`
}

// TokenResponse carries a socket token bound to one session.
type TokenResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler. jwt may be nil when no secret is configured.
func NewHandler(jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jwt: jwt, logger: logger}
}

// Register mounts the auth routes. The group is expected to carry the API key middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.Token)
}

// Token handles POST /auth/token. An empty session_id gets a fresh one.
func (h *Handler) Token(c *gin.Context) {
	if h.jwt == nil {
		response.NotImplemented(c, "socket tokens are disabled (JWT_SECRET not set)")
		return
	}
	var req TokenRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	token, exp, err := h.jwt.Generate(req.SessionID)
	if err != nil {
		h.logger.Error("sign socket token", zap.Error(err))
		response.Internal(c, "failed to issue token")
		return
	}
	response.Created(c, TokenResponse{Token: token, SessionID: req.SessionID, ExpiresAt: exp})
}
