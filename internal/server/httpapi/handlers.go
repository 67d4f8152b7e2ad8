package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sessionworks/authd/internal/common"
	"github.com/sessionworks/authd/internal/logging"
	"github.com/sessionworks/authd/internal/server/config"
	"github.com/sessionworks/authd/internal/server/models"
	"github.com/sessionworks/authd/internal/server/services"
)

// refreshCookieName is the cookie carrying the opaque refresh token. It is
// HttpOnly so the browser sends it back on /auth/refresh but scripts never
// see it.
const refreshCookieName = "X-Refresh-Token"

// Handler bundles the auth endpoints and their shared collaborators.
type Handler struct {
	auth       *services.AuthService
	users      *services.UserService
	refreshTTL time.Duration
	log        logging.Logger
}

func NewHandler(auth *services.AuthService, users *services.UserService, cfg *config.Config, log logging.Logger) *Handler {
	return &Handler{
		auth:       auth,
		users:      users,
		refreshTTL: cfg.RefreshTokenValidityDuration,
		log:        log,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username        string `json:"username" binding:"required"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Role            string `json:"role"`
}

type refreshRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"token": pair.AccessToken})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}

	// A requested role only takes effect when the caller presents a valid
	// SuperAdmin bearer token; anonymous registration always yields a
	// regular user.
	callerRole := models.RoleUser
	if raw := bearerToken(c); raw != "" {
		if claims, err := h.auth.Issuer().Parse(raw); err == nil {
			callerRole = claims.Role
		}
	}

	pair, err := h.auth.Register(c.Request.Context(), services.CreateUserParams{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      models.Role(req.Role),
		Password:  req.Password,
	}, callerRole)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"token": pair.AccessToken})
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refreshValue, err := c.Cookie(refreshCookieName)
	if err != nil || refreshValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh token cookie missing"})
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.Token, refreshValue)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"token": pair.AccessToken})
}

func (h *Handler) logout(c *gin.Context) {
	claims := mustClaims(c)
	if err := h.auth.Logout(c.Request.Context(), claims.ID); err != nil {
		h.writeError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) logoutAll(c *gin.Context) {
	claims := mustClaims(c)
	userID, err := claims.UserID()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return
	}

	if err := h.auth.LogoutAll(c.Request.Context(), userID); err != nil {
		h.writeError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
}

// writeError is the single error-to-status mapping. Rotation rejection
// reasons deliberately collapse into one generic 400 so clients cannot probe
// the refresh-token store.
func (h *Handler) writeError(c *gin.Context, err error) {
	var rerr *services.RotationError
	switch {
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.As(err, &rerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials or token"})
	case errors.Is(err, common.ErrOwnerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, common.ErrorAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
	default:
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(refreshCookieName, value, int(h.refreshTTL.Seconds()), "/", "", true, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", true, true)
}
