package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-support/internal/domain/entity"
)

// Identity headers set by the upstream session provider
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const actorKey = "actor"

// identityMiddleware turns the identity headers into an entity.Actor.
// A missing user ID or an unknown role is rejected before any handler runs.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + HeaderUserID + " header",
			})
			return
		}

		role := entity.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
		switch role {
		case "":
			role = entity.RoleSpeaker
		case entity.RoleSpeaker, entity.RoleReviewer, entity.RoleAdmin:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "unrecognized role " + string(role),
			})
			return
		}

		c.Set(actorKey, entity.Actor{ID: id, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) (entity.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return entity.Actor{}, false
	}
	actor, ok := v.(entity.Actor)
	return actor, ok
}

// actor returns the authenticated actor. Routes without identityMiddleware
// get the zero actor, which every service rejects.
func actor(c *gin.Context) entity.Actor {
	a, _ := actorFrom(c)
	return a
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderUserID+", "+HeaderUserRole)
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
