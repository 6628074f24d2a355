package middleware

import (
	"net/http"
	"strings"

	"busease/internal/domain"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// TokenParser turns a bearer token into the caller it identifies.
type TokenParser interface {
	ParseToken(raw string) (domain.RequestContext, error)
}

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg, "request_id": GetRequestID(c)})
}

// VerifyToken requires a valid bearer token.
func VerifyToken(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "You are not authenticated!")
			return
		}
		actor, err := p.ParseToken(raw)
		if err != nil {
			abort(c, http.StatusForbidden, "Token is not valid!")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is sent and lets
// anonymous requests through. An invalid token is treated as anonymous.
func OptionalAuth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if actor, err := p.ParseToken(raw); err == nil {
				c.Set(actorKey, actor)
			}
		}
		c.Next()
	}
}

// RequireAdmin runs after VerifyToken.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Actor(c).IsAdmin {
			abort(c, http.StatusForbidden, "You are not authorized as an admin")
			return
		}
		c.Next()
	}
}

// RequireSelfOrAdmin runs after VerifyToken and compares the caller with
// the user id in the named path parameter.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := domain.ParseID(c.Param(param))
		if err != nil || !Actor(c).CanActFor(id) {
			abort(c, http.StatusForbidden, "You are not authorized!")
			return
		}
		c.Next()
	}
}

// Actor returns the authenticated caller, or the zero value.
func Actor(c *gin.Context) domain.RequestContext {
	if v, ok := c.Get(actorKey); ok {
		if rc, ok := v.(domain.RequestContext); ok {
			return rc
		}
	}
	return domain.RequestContext{}
}
