package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/christlifeministries/portal/internal/auth"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/uploads"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionContextKey = "clm_session"

// session is the authenticated caller attached to the request context.
type session struct {
	Claims  auth.SessionClaims
	Profile models.UserProfile
}

func (s session) UserID() string {
	return s.Profile.ID
}

// IsAdmin honours both the stored profile role and roles asserted by the
// auth provider.
func (s session) IsAdmin() bool {
	return s.Profile.Role.IsAdmin() ||
		s.Claims.HasRole(string(models.RoleAdmin)) ||
		s.Claims.HasRole(string(models.RoleSuperAdmin))
}

func (s session) UploadUser() *uploads.User {
	return &uploads.User{ID: s.Profile.ID, Email: s.Profile.Email, FullName: s.Profile.FullName}
}

// authorizeRequest validates the session token, mirrors the caller into
// user_profiles and stores the session on the context. EventSource clients
// that cannot send headers may pass access_token as a query parameter.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	if c.GetHeader("Authorization") == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			c.Request.Header.Set("Authorization", "Bearer "+token)
		}
	}
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	profile, err := h.users.EnsureProfile(c.Request.Context(), claims.UserID, claims.UserEmail, claims.UserDisplayName)
	if err != nil {
		h.logger.Error("profile sync failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile_sync_failed"})
		return
	}
	c.Set(sessionContextKey, session{Claims: claims, Profile: profile})
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	if !currentSession(c).IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func currentSession(c *gin.Context) session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return session{}
	}
	current, _ := value.(session)
	return current
}
