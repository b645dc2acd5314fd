package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"admin-console/internal/backend"
	"admin-console/internal/channel"
	"admin-console/internal/chatsync"
	"admin-console/internal/directory"
	"admin-console/internal/models"
	"admin-console/internal/telemetry"
)

type communityBackend interface {
	CreateGroup(ctx context.Context, name, description string, isPrivate bool) (models.Group, error)
	UpdateGroup(ctx context.Context, groupID, name, description string) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
	AddMember(ctx context.Context, groupID, userID, nickname string) (models.GroupMember, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// CommunityHandler manages the group directory and the active group's
// real-time moderation view.
type CommunityHandler struct {
	directory *directory.Directory
	sync      *chatsync.Client
	backend   communityBackend
	audit     *telemetry.AuditEmitter
}

// NewCommunityHandler constructs a CommunityHandler.
func NewCommunityHandler(dir *directory.Directory, sync *chatsync.Client, communityBackend communityBackend, audit *telemetry.AuditEmitter) *CommunityHandler {
	return &CommunityHandler{
		directory: dir,
		sync:      sync,
		backend:   communityBackend,
		audit:     audit,
	}
}

// ListGroups returns the cached group directory.
func (h *CommunityHandler) ListGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": h.directory.Groups()})
}

// CreateGroup handles POST /community/groups.
func (h *CommunityHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"isPrivate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.backend.CreateGroup(c.Request.Context(), req.Name, req.Description, req.IsPrivate)
	if err != nil {
		h.emitAudit(c, "ERROR", "group create failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not create group"})
		return
	}

	_ = h.directory.Refresh(c.Request.Context())
	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, group)
}

// UpdateGroup handles PUT /community/groups/:group_id.
func (h *CommunityHandler) UpdateGroup(c *gin.Context) {
	groupID := c.Param("group_id")

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.backend.UpdateGroup(c.Request.Context(), groupID, req.Name, req.Description)
	if err != nil {
		h.emitAudit(c, "ERROR", "group update failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not update group"})
		return
	}

	_ = h.directory.Refresh(c.Request.Context())
	h.emitAudit(c, "INFO", "Group updated")
	c.JSON(http.StatusOK, group)
}

// DeleteGroup handles DELETE /community/groups/:group_id. Deleting the
// active group also tears its subscription down.
func (h *CommunityHandler) DeleteGroup(c *gin.Context) {
	groupID := c.Param("group_id")

	if err := h.backend.DeleteGroup(c.Request.Context(), groupID); err != nil {
		h.emitAudit(c, "ERROR", "group delete failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not delete group"})
		return
	}

	if h.sync.ActiveGroup() == groupID {
		_ = h.sync.SelectGroup(c.Request.Context(), "")
		h.directory.Resume(groupID)
	}

	_ = h.directory.Refresh(c.Request.Context())
	h.emitAudit(c, "INFO", "Group deleted")
	c.Status(http.StatusNoContent)
}

// SelectGroup handles POST /community/groups/:group_id/select: switches the
// active group and suspends directory polling while its stream is viewed.
func (h *CommunityHandler) SelectGroup(c *gin.Context) {
	groupID := c.Param("group_id")
	if _, ok := h.directory.Group(groupID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown group"})
		return
	}

	if err := h.sync.SelectGroup(c.Request.Context(), groupID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not select group"})
		return
	}
	h.directory.Suspend(groupID)

	c.JSON(http.StatusOK, gin.H{"groupId": groupID})
}

// DeselectGroup handles DELETE /community/active: leaves the active group
// and resumes directory polling.
func (h *CommunityHandler) DeselectGroup(c *gin.Context) {
	prev := h.sync.ActiveGroup()
	if err := h.sync.SelectGroup(c.Request.Context(), ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not deselect group"})
		return
	}
	if prev != "" {
		h.directory.Resume(prev)
	}
	c.Status(http.StatusNoContent)
}

// ActiveSnapshot handles GET /community/active: the ordered message list,
// members, loading and connection state for the active group.
func (h *CommunityHandler) ActiveSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Snapshot())
}

// PostMessage handles POST /community/active/messages with optimistic
// feedback: the pending entry is returned immediately.
func (h *CommunityHandler) PostMessage(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.sync.SendMessage(req.Body)
	switch {
	case errors.Is(err, chatsync.ErrNoActiveGroup):
		c.JSON(http.StatusConflict, gin.H{"error": "no active group"})
		return
	case errors.Is(err, chatsync.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message body is empty"})
		return
	case errors.Is(err, channel.ErrNotConnected):
		// The entry stays in the list marked failed so the operator can retry.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "channel disconnected", "message": msg})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}

	h.emitAudit(c, "INFO", "Group message sent")
	c.JSON(http.StatusCreated, msg)
}

// RetryMessage handles POST /community/active/messages/:temp_id/retry for
// entries whose send was rejected while disconnected.
func (h *CommunityHandler) RetryMessage(c *gin.Context) {
	msg, err := h.sync.RetrySend(c.Param("temp_id"))
	switch {
	case errors.Is(err, chatsync.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no failed message with that id"})
		return
	case errors.Is(err, channel.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "channel disconnected", "message": msg})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not retry message"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

// EditMessage handles PUT /community/messages/:message_id.
func (h *CommunityHandler) EditMessage(c *gin.Context) {
	messageID := c.Param("message_id")

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.sync.EditMessage(c.Request.Context(), messageID, req.Body)
	switch {
	case errors.Is(err, chatsync.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	case errors.Is(err, chatsync.ErrNotConfirmed):
		c.JSON(http.StatusConflict, gin.H{"error": "message not confirmed yet"})
		return
	case err != nil:
		h.emitAudit(c, "ERROR", "message edit failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not update message"})
		return
	}

	h.emitAudit(c, "INFO", "Group message edited")
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage handles DELETE /community/messages/:message_id.
func (h *CommunityHandler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("message_id")

	if err := h.sync.DeleteMessage(c.Request.Context(), messageID); err != nil {
		h.emitAudit(c, "ERROR", "message delete failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not delete message"})
		return
	}

	h.emitAudit(c, "INFO", "Group message deleted")
	c.Status(http.StatusNoContent)
}

// ClearMessages handles DELETE /community/active/messages.
func (h *CommunityHandler) ClearMessages(c *gin.Context) {
	if err := h.sync.ClearAll(c.Request.Context()); err != nil {
		if errors.Is(err, chatsync.ErrNoActiveGroup) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active group"})
			return
		}
		h.emitAudit(c, "ERROR", "message clear failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not clear messages"})
		return
	}

	h.emitAudit(c, "INFO", "Group messages cleared")
	c.Status(http.StatusNoContent)
}

// AddMember handles POST /community/groups/:group_id/members.
func (h *CommunityHandler) AddMember(c *gin.Context) {
	groupID := c.Param("group_id")

	var req struct {
		UserID   string `json:"userId" binding:"required"`
		Nickname string `json:"nickname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Nickname == "" {
		req.Nickname = "Anonymous"
	}

	member, err := h.backend.AddMember(c.Request.Context(), groupID, req.UserID, req.Nickname)
	if err != nil {
		h.emitAudit(c, "ERROR", "member add failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not add member"})
		return
	}

	h.emitAudit(c, "INFO", "Group member added")
	c.JSON(http.StatusCreated, member)
}

// RemoveMember handles DELETE /community/groups/:group_id/members/:user_id.
func (h *CommunityHandler) RemoveMember(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := c.Param("user_id")

	if err := h.backend.RemoveMember(c.Request.Context(), groupID, userID); err != nil {
		h.emitAudit(c, "ERROR", "member remove failed")
		c.JSON(backendStatus(err), gin.H{"error": "could not remove member"})
		return
	}

	h.emitAudit(c, "INFO", "Group member removed")
	c.Status(http.StatusNoContent)
}

func (h *CommunityHandler) emitAudit(c *gin.Context, level, action string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, action, requestIDFromContext(c), adminIDFromContext(c))
}

// backendStatus maps a backend failure to the status the console receives:
// 404s pass through, everything else is a gateway-side 502.
func backendStatus(err error) int {
	var reqErr *backend.RequestError
	if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
