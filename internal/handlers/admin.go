package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"admin-console/internal/models"
	"admin-console/internal/telemetry"
)

type adminBackend interface {
	Users(ctx context.Context) ([]models.User, error)
	User(ctx context.Context, userID string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	UpdateUser(ctx context.Context, userID string, user models.User) (models.User, error)
	DeleteUser(ctx context.Context, userID string) error

	Content(ctx context.Context) ([]models.ContentItem, error)
	CreateContent(ctx context.Context, item models.ContentItem) (models.ContentItem, error)
	UpdateContent(ctx context.Context, contentID string, item models.ContentItem) (models.ContentItem, error)
	DeleteContent(ctx context.Context, contentID string) error

	Stats(ctx context.Context) (models.Stats, error)
	ChatStats(ctx context.Context) (models.ChatStats, error)
}

// AdminHandler proxies user, content and dashboard endpoints to the backend.
type AdminHandler struct {
	backend adminBackend
	audit   *telemetry.AuditEmitter
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(adminBackend adminBackend, audit *telemetry.AuditEmitter) *AdminHandler {
	return &AdminHandler{backend: adminBackend, audit: audit}
}

// ListUsers handles GET /users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.backend.Users(c.Request.Context())
	if err != nil {
		c.JSON(backendStatus(err), gin.H{"error": "could not list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser handles GET /users/:user_id.
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.backend.User(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(backendStatus(err), gin.H{"error": "could not fetch user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser handles POST /users.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.backend.CreateUser(c.Request.Context(), user)
	if err != nil {
		h.emitAudit(c, "ERROR", "user create failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not create user"})
		return
	}

	h.emitAudit(c, "INFO", "User created")
	c.JSON(http.StatusCreated, created)
}

// UpdateUser handles PUT /users/:user_id.
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.backend.UpdateUser(c.Request.Context(), c.Param("user_id"), user)
	if err != nil {
		h.emitAudit(c, "ERROR", "user update failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not update user"})
		return
	}

	h.emitAudit(c, "INFO", "User updated")
	c.JSON(http.StatusOK, updated)
}

// DeleteUser handles DELETE /users/:user_id.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.backend.DeleteUser(c.Request.Context(), c.Param("user_id")); err != nil {
		h.emitAudit(c, "ERROR", "user delete failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not delete user"})
		return
	}

	h.emitAudit(c, "INFO", "User deleted")
	c.Status(http.StatusNoContent)
}

// ListContent handles GET /content.
func (h *AdminHandler) ListContent(c *gin.Context) {
	items, err := h.backend.Content(c.Request.Context())
	if err != nil {
		c.JSON(backendStatus(err), gin.H{"error": "could not list content"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": items})
}

// CreateContent handles POST /content.
func (h *AdminHandler) CreateContent(c *gin.Context) {
	var item models.ContentItem
	if err := c.ShouldBindJSON(&item); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.backend.CreateContent(c.Request.Context(), item)
	if err != nil {
		h.emitAudit(c, "ERROR", "content create failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not create content"})
		return
	}

	h.emitAudit(c, "INFO", "Content created")
	c.JSON(http.StatusCreated, created)
}

// UpdateContent handles PUT /content/:content_id.
func (h *AdminHandler) UpdateContent(c *gin.Context) {
	var item models.ContentItem
	if err := c.ShouldBindJSON(&item); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.backend.UpdateContent(c.Request.Context(), c.Param("content_id"), item)
	if err != nil {
		h.emitAudit(c, "ERROR", "content update failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not update content"})
		return
	}

	h.emitAudit(c, "INFO", "Content updated")
	c.JSON(http.StatusOK, updated)
}

// DeleteContent handles DELETE /content/:content_id.
func (h *AdminHandler) DeleteContent(c *gin.Context) {
	if err := h.backend.DeleteContent(c.Request.Context(), c.Param("content_id")); err != nil {
		h.emitAudit(c, "ERROR", "content delete failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not delete content"})
		return
	}

	h.emitAudit(c, "INFO", "Content deleted")
	c.Status(http.StatusNoContent)
}

// Stats handles GET /stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.backend.Stats(c.Request.Context())
	if err != nil {
		c.JSON(backendStatus(err), gin.H{"error": "could not fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ChatStats handles GET /stats/chats.
func (h *AdminHandler) ChatStats(c *gin.Context) {
	stats, err := h.backend.ChatStats(c.Request.Context())
	if err != nil {
		c.JSON(backendStatus(err), gin.H{"error": "could not fetch chat stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) emitAudit(c *gin.Context, level, action string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, action, requestIDFromContext(c), adminIDFromContext(c))
}
