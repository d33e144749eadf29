package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hisaab-app/hisaab-backend/internal/api/middleware"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/service"
)

// ============================================
// User Handler
// ============================================

type UserHandler struct {
	userService service.UserService
}

type saveUserRequest struct {
	Name   string `json:"name" binding:"required"`
	Mobile string `json:"mobile" binding:"required"`
}

type updateUserRequest struct {
	Name string `json:"name" binding:"required"`
}

// List returns the user directory. Mobiles of strangers are masked.
func (h *UserHandler) List(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	users, err := h.userService.List(c.Request.Context(), mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	if users == nil {
		users = []service.UserView{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Save registers a user on someone else's behalf, recording who added them.
func (h *UserHandler) Save(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	var req saveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Save(c.Request.Context(), req.Name, req.Mobile, mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ResetLoginCode clears a member's login code so they can claim the account
// again on next login.
func (h *UserHandler) ResetLoginCode(c *gin.Context) {
	if _, ok := middleware.RequireMobile(c); !ok {
		return
	}

	if err := h.userService.ResetLoginCode(c.Request.Context(), c.Param("mobile")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// RequestUpdate opens a name-change request for the caller's own account.
func (h *UserHandler) RequestUpdate(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.userService.RequestUpdate(c.Request.Context(), member, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// RequestDelete opens an account-deletion request for the caller's own
// account.
func (h *UserHandler) RequestDelete(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.userService.RequestDelete(c.Request.Context(), member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

func (h *UserHandler) ApproveRequest(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	kind, ok := userKind(c)
	if !ok {
		return
	}
	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.userService.ApproveRequest(c.Request.Context(), c.Param("mobile"), kind, member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *UserHandler) RejectRequest(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	kind, ok := userKind(c)
	if !ok {
		return
	}
	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.userService.RejectRequest(c.Request.Context(), c.Param("mobile"), kind, member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func userKind(c *gin.Context) (models.RequestKind, bool) {
	switch c.Param("kind") {
	case "delete":
		return models.KindUserDelete, true
	case "update":
		return models.KindUserUpdate, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request kind"})
		return "", false
	}
}
