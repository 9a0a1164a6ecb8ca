package transcript

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jenin-ai/interview-backend/pkg/response"
)

// Pruner bounds the number of stored sessions on operator request.
type Pruner interface {
	PruneTo(ctx context.Context, max int) int
	Max() int
}

// Handler serves the session query surface under /api/v1/sessions.
type Handler struct {
	log    *Log
	pruner Pruner
}

// NewHandler creates a sessions handler.
func NewHandler(log *Log, pruner Pruner) *Handler {
	return &Handler{log: log, pruner: pruner}
}

// Register mounts the routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/sessions", h.List)
	rg.GET("/sessions/:id", h.Get)
	rg.DELETE("/sessions/:id", h.Delete)
	rg.DELETE("/sessions", h.Prune)
}

// List handles GET /sessions.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, gin.H{"sessions": h.log.List(c.Request.Context())})
}

// Get handles GET /sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	s, ok := h.log.Get(c.Request.Context(), c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, s)
}

// Delete handles DELETE /sessions/:id.
func (h *Handler) Delete(c *gin.Context) {
	if !h.log.Delete(c.Request.Context(), c.Param("id")) {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// Prune handles DELETE /sessions?max=N. Without max the configured limit applies.
func (h *Handler) Prune(c *gin.Context) {
	max := h.pruner.Max()
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "max must be a non-negative integer")
			return
		}
		max = n
	}
	deleted := h.pruner.PruneTo(c.Request.Context(), max)
	response.OK(c, gin.H{"deleted": deleted, "max": max})
}
