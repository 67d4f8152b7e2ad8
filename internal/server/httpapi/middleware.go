package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sessionworks/authd/internal/server/auth"
)

const claimsContextKey = "authClaims"

// bearerToken extracts the raw token from the Authorization header, or ""
// when the header is absent or not a Bearer scheme.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

// requireBearer rejects requests without a valid, unexpired access token and
// stores the parsed claims for the handler.
func (h *Handler) requireBearer(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
		return
	}

	claims, err := h.auth.Issuer().Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Set(claimsContextKey, claims)
	c.Next()
}

// mustClaims returns the claims stored by requireBearer. Calling it from a
// route outside that middleware is a programming error.
func mustClaims(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsContextKey).(*auth.Claims)
}
