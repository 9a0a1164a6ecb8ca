package configs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/pkg/response"
)

// NotPersisted is the warning attached to a save that could not reach the database.
const NotPersisted = "Not persisted (DB not configured)"

// Store is the persistence surface the handler uses. *Repository implements it.
type Store interface {
	Upsert(ctx context.Context, cfg Config) (*Config, error)
	List(ctx context.Context) ([]Config, error)
	Get(ctx context.Context, id string) (*Config, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Handler serves /api/v1/interview/configs. With a nil store every save is
// answered with the NotPersisted warning and reads come back empty.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a configs handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Register mounts the routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/interview/configs")
	g.POST("", h.Upsert)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

type envelope struct {
	ConfigID        string          `json:"config_id"`
	InterviewConfig json.RawMessage `json:"interview_config"`
}

type header struct {
	ConfigID string `json:"config_id"`
	Name     string `json:"name"`
}

// Upsert handles POST /interview/configs. The body is either the configuration
// itself or {"interview_config": {...}}.
func (h *Handler) Upsert(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		response.BadRequest(c, "invalid config payload")
		return
	}
	doc := json.RawMessage(raw)
	if len(env.InterviewConfig) > 0 && string(env.InterviewConfig) != "null" {
		doc = env.InterviewConfig
	}
	var hd header
	if err := json.Unmarshal(doc, &hd); err != nil {
		response.BadRequest(c, "invalid config payload")
		return
	}
	if hd.ConfigID == "" {
		hd.ConfigID = env.ConfigID
	}
	if hd.ConfigID == "" {
		response.BadRequest(c, "config_id required")
		return
	}

	cfg := Config{ConfigID: hd.ConfigID, Name: hd.Name, InterviewConfig: doc}
	if h.store == nil {
		response.OK(c, gin.H{"interview_config": doc, "warning": NotPersisted})
		return
	}
	saved, err := h.store.Upsert(c.Request.Context(), cfg)
	if err != nil {
		h.logger.Warn("interview config not persisted", zap.String("config_id", cfg.ConfigID), zap.Error(err))
		response.OK(c, gin.H{"interview_config": doc, "warning": NotPersisted})
		return
	}
	response.OK(c, saved)
}

// List handles GET /interview/configs.
func (h *Handler) List(c *gin.Context) {
	if h.store == nil {
		response.OK(c, []Config{})
		return
	}
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("list interview configs", zap.Error(err))
		list = []Config{}
	}
	response.OK(c, list)
}

// Get handles GET /interview/configs/:id.
func (h *Handler) Get(c *gin.Context) {
	if h.store == nil {
		response.NotFound(c, "interview config not found")
		return
	}
	cfg, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.logger.Warn("get interview config", zap.String("config_id", c.Param("id")), zap.Error(err))
		}
		response.NotFound(c, "interview config not found")
		return
	}
	response.OK(c, cfg)
}

// Delete handles DELETE /interview/configs/:id.
func (h *Handler) Delete(c *gin.Context) {
	deleted := false
	if h.store != nil {
		var err error
		deleted, err = h.store.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.logger.Warn("delete interview config", zap.String("config_id", c.Param("id")), zap.Error(err))
		}
	}
	if !deleted {
		response.NotFound(c, "interview config not found")
		return
	}
	response.OK(c, gin.H{"deleted": true, "config_id": c.Param("id")})
}
