package auth

import (
	"net/http"
	"strings"

	"polling-system-backend/errs"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const identityKey = "identity"

// RequireAuth rejects requests without a valid Bearer token and attaches the
// resolved identity to the context.
func RequireAuth(svc *Service, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "error", "code": "unauthorized", "message": "authentication required",
			})
			return
		}
		ident, err := svc.Authenticate(db, raw)
		if err != nil {
			c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{
				"status": "error", "code": errs.Code(err), "message": errs.Message(err),
			})
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := CurrentIdentity(c)
		if ident == nil || !ident.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status": "error", "code": "forbidden", "message": "admin access required",
			})
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by RequireAuth, or nil.
func CurrentIdentity(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	ident, _ := v.(*Identity)
	return ident
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
