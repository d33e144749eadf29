package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hisaab-app/hisaab-backend/internal/api/middleware"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/service"
)

// ============================================
// Group Handler
// ============================================

type GroupHandler struct {
	groupService service.GroupService
	userService  service.UserService
}

type createGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type updateGroupInfoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// proposeRequest is the client's side of a group request. The kind selects
// the workflow; the remaining fields are that kind's payload.
type proposeRequest struct {
	Kind       models.RequestKind `json:"kind" binding:"required"`
	Name       string             `json:"name,omitempty"`
	NewMembers []models.Member    `json:"newMembers,omitempty"`
	NewMember  *models.Member     `json:"newMember,omitempty"`
	NewOwner   string             `json:"newOwner,omitempty"`
	Month      string             `json:"month,omitempty"`
}

func (h *GroupHandler) Create(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	group, err := h.groupService.Create(c.Request.Context(), req.Name, req.Description, owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) List(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	groups, err := h.groupService.List(c.Request.Context(), mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Get(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	group, err := h.groupService.Get(c.Request.Context(), c.Param("id"), mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateInfo edits name and description directly; member changes must go
// through a group_edit request instead.
func (h *GroupHandler) UpdateInfo(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	var req updateGroupInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.groupService.UpdateInfo(c.Request.Context(), c.Param("id"), member, req.Name, req.Description); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Propose opens an approval request on the group.
func (h *GroupHandler) Propose(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	err := h.groupService.Propose(c.Request.Context(), c.Param("id"), models.Request{
		Kind:            req.Kind,
		RequestedBy:     member.Mobile,
		RequestedByName: member.Name,
		Name:            req.Name,
		NewMembers:      req.NewMembers,
		NewMember:       req.NewMember,
		NewOwner:        req.NewOwner,
		Month:           req.Month,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// Approve adds the caller's approval to a pending request. For the list
// kinds (join, leave) the subject query parameter picks the request.
func (h *GroupHandler) Approve(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	kind, ok := groupKind(c)
	if !ok {
		return
	}
	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.groupService.Approve(c.Request.Context(), c.Param("id"), kind, c.Query("subject"), member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *GroupHandler) Reject(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	kind, ok := groupKind(c)
	if !ok {
		return
	}
	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.groupService.Reject(c.Request.Context(), c.Param("id"), kind, c.Query("subject"), member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// DismissNotification removes one notification from the caller's inbox on
// the group.
func (h *GroupHandler) DismissNotification(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	if err := h.groupService.DismissNotification(c.Request.Context(), c.Param("id"), mobile, c.Param("nid")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "dismissed"})
}

func groupKind(c *gin.Context) (models.RequestKind, bool) {
	switch c.Param("kind") {
	case "delete":
		return models.KindGroupDelete, true
	case "edit":
		return models.KindGroupEdit, true
	case "add-member":
		return models.KindAddMember, true
	case "leave":
		return models.KindLeave, true
	case "join":
		return models.KindJoin, true
	case "transfer-ownership":
		return models.KindTransferOwnership, true
	case "settlement":
		return models.KindSettlement, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request kind"})
		return "", false
	}
}
