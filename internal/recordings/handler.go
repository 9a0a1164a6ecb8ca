package recordings

import (
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/pkg/response"
	"github.com/jenin-ai/interview-backend/pkg/storage"
)

// ObjectReader reads archived objects. *storage.S3 implements it.
type ObjectReader interface {
	GetObject(ctx context.Context, key string) (*storage.Object, error)
	PresignGet(ctx context.Context, key string) (string, error)
}

// Lister lists a session's recordings. *Repository implements it.
type Lister interface {
	ListBySession(ctx context.Context, sessionID string) ([]Recording, error)
}

// Handler serves archived recordings.
type Handler struct {
	objects ObjectReader
	list    Lister
	logger  *zap.Logger
}

// NewHandler creates a recordings handler. A nil objects disables media
// routes (501); a nil list disables the listing route.
func NewHandler(objects ObjectReader, list Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{objects: objects, list: list, logger: logger}
}

// RegisterMedia mounts /media/recording and /media/recording/url on r.
func (h *Handler) RegisterMedia(r gin.IRouter) {
	r.GET("/media/recording", h.Stream)
	r.GET("/media/recording/url", h.PresignURL)
}

// Register mounts GET /sessions/:id/recordings on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/sessions/:id/recordings", h.ListBySession)
}

func (h *Handler) key(c *gin.Context) (string, bool) {
	if h.objects == nil {
		response.NotImplemented(c, "storage not configured")
		return "", false
	}
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		response.BadRequest(c, "key required")
		return "", false
	}
	return key, true
}

// Stream handles GET /media/recording?key=&download=1.
func (h *Handler) Stream(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	obj, err := h.objects.GetObject(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("get recording failed", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to fetch recording")
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	if obj.ContentLength > 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	if d := c.Query("download"); d == "1" || d == "true" {
		c.Header("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	}
	c.Status(200)
	if _, err := io.Copy(c.Writer, obj.Body); err != nil {
		h.logger.Warn("stream recording interrupted", zap.String("key", key), zap.Error(err))
	}
}

// PresignURL handles GET /media/recording/url?key=.
func (h *Handler) PresignURL(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	url, err := h.objects.PresignGet(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("presign recording failed", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to sign url")
		return
	}
	response.OK(c, gin.H{"key": key, "url": url})
}

// ListBySession handles GET /sessions/:id/recordings.
func (h *Handler) ListBySession(c *gin.Context) {
	if h.list == nil {
		response.NotImplemented(c, "recording metadata requires a database")
		return
	}
	list, err := h.list.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list recordings failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, gin.H{"recordings": list})
}
