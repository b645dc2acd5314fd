package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"admin-console/internal/backend"
	"admin-console/internal/sessions"
	"admin-console/internal/telemetry"
)

type authBackend interface {
	Login(ctx context.Context, email, password string) (backend.LoginResult, error)
}

// AuthHandler manages console login and logout.
type AuthHandler struct {
	backend authBackend
	store   sessions.Store
	audit   *telemetry.AuditEmitter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(authBackend authBackend, store sessions.Store, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{backend: authBackend, store: store, audit: audit}
}

// Login handles POST /login. The backend issues the opaque token; the
// gateway records it as a console session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.backend.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var reqErr *backend.RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusUnauthorized {
			h.emitAudit(c, "ERROR", "login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "login failed"})
		return
	}

	session, err := h.store.Create(c.Request.Context(), result.Token, result.AdminID, result.Nickname)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	h.emitAudit(c, "INFO", "Admin logged in")
	c.JSON(http.StatusOK, gin.H{
		"token":    session.Token,
		"adminId":  session.AdminID,
		"nickname": session.Nickname,
	})
}

// Logout handles POST /logout and revokes the caller's session.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := tokenFromHeader(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), token); err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not revoke session"})
		return
	}

	h.emitAudit(c, "INFO", "Admin logged out")
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) emitAudit(c *gin.Context, level, action string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, action, requestIDFromContext(c), adminIDFromContext(c))
}

func tokenFromHeader(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
