package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hisaab-app/hisaab-backend/internal/api/middleware"
	"github.com/hisaab-app/hisaab-backend/internal/service"
)

// ============================================
// Settlement Handler
// ============================================

type SettlementHandler struct {
	settlementService service.SettlementService
	userService       service.UserService
}

type settlementRequest struct {
	Month string `json:"month" binding:"required"`
}

// Compute returns balances and the transfer plan for a group month without
// changing anything.
func (h *SettlementHandler) Compute(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	settlement, err := h.settlementService.Compute(c.Request.Context(), c.Param("id"), c.Param("month"), mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}

// Request opens the settlement workflow; approval by every member archives
// the month.
func (h *SettlementHandler) Request(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	var req settlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.settlementService.Request(c.Request.Context(), c.Param("id"), req.Month, member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

func (h *SettlementHandler) Approve(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.settlementService.Approve(c.Request.Context(), c.Param("id"), member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *SettlementHandler) Reject(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.settlementService.Reject(c.Request.Context(), c.Param("id"), member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}
