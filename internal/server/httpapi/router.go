// Package httpapi is the HTTP boundary of the auth server: gin routes,
// request/response shapes, the refresh-token cookie and the error-to-status
// mapping.
package httpapi

import (
	"github.com/gin-gonic/gin"
)

// NewRouter assembles the gin engine. Refresh and logout endpoints accept
// both GET and POST for compatibility with clients that trigger them via
// redirects.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	g := r.Group("/auth")
	g.POST("/login", h.login)
	g.POST("/register", h.register)
	g.GET("/refresh", h.refresh)
	g.POST("/refresh", h.refresh)

	authed := g.Group("", h.requireBearer)
	authed.GET("/logout", h.logout)
	authed.POST("/logout", h.logout)
	authed.GET("/logoutall", h.logoutAll)
	authed.POST("/logoutall", h.logoutAll)

	return r
}
