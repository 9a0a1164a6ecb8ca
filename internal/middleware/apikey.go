package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jenin-ai/interview-backend/pkg/response"
)

// Authorizer checks request credentials. *auth.Gate implements it.
type Authorizer interface {
	AuthorizeRequest(r *http.Request) error
}

// APIKey returns a middleware that rejects requests the authorizer refuses.
func APIKey(a Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}
		if err := a.AuthorizeRequest(c.Request); err != nil {
			response.Unauthorized(c, "Unauthorized")
			return
		}
		c.Next()
	}
}
