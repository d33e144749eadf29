package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hisaab-app/hisaab-backend/internal/api/middleware"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/service"
	"github.com/hisaab-app/hisaab-backend/internal/workflow"
)

// ============================================
// Record Handler
// ============================================

// Records live under /records/:root/:scope/:month where root is one of
// payments, loans or personal-loans and scope is a group id or "global".
type RecordHandler struct {
	recordService service.RecordService
	userService   service.UserService
}

func (h *RecordHandler) loc(c *gin.Context) (workflow.RecordLoc, bool) {
	root, ok := recordRoot(c.Param("root"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown record root"})
		return workflow.RecordLoc{}, false
	}
	return workflow.RecordLoc{
		Root:  root,
		Scope: c.Param("scope"),
		Month: c.Param("month"),
		ID:    c.Param("id"),
	}, true
}

func (h *RecordHandler) Create(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	loc, ok := h.loc(c)
	if !ok {
		return
	}

	var input models.Record
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	record, err := h.recordService.Create(c.Request.Context(), loc.Root, loc.Scope, loc.Month, input, member)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *RecordHandler) List(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	loc, ok := h.loc(c)
	if !ok {
		return
	}
	records, err := h.recordService.List(c.Request.Context(), loc.Root, loc.Scope, loc.Month, mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *RecordHandler) Get(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	loc, ok := h.loc(c)
	if !ok {
		return
	}
	record, err := h.recordService.Get(c.Request.Context(), loc, mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Months lists the months that hold records for this root and scope.
func (h *RecordHandler) Months(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	root, ok := recordRoot(c.Param("root"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown record root"})
		return
	}
	months, err := h.recordService.Months(c.Request.Context(), root, c.Param("scope"), mobile)
	if err != nil {
		writeError(c, err)
		return
	}
	if months == nil {
		months = []string{}
	}
	c.JSON(http.StatusOK, months)
}

// RequestDelete opens a deletion request; every required approver (the
// group's members, or the participants outside a group) must consent.
func (h *RecordHandler) RequestDelete(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	loc, ok := h.loc(c)
	if !ok {
		return
	}
	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.recordService.RequestDelete(c.Request.Context(), loc, member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// RequestUpdate opens an update request carrying the full replacement
// record.
func (h *RecordHandler) RequestUpdate(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	loc, ok := h.loc(c)
	if !ok {
		return
	}

	var changes models.Record
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.recordService.RequestUpdate(c.Request.Context(), loc, changes, member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

func (h *RecordHandler) ApproveRequest(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	loc, ok := h.loc(c)
	if !ok {
		return
	}
	kind, ok := recordKind(c)
	if !ok {
		return
	}
	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.recordService.ApproveRequest(c.Request.Context(), loc, kind, member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *RecordHandler) RejectRequest(c *gin.Context) {
	mobile, ok := middleware.RequireMobile(c)
	if !ok {
		return
	}

	loc, ok := h.loc(c)
	if !ok {
		return
	}
	kind, ok := recordKind(c)
	if !ok {
		return
	}
	member, ok := actor(c, h.userService, mobile)
	if !ok {
		return
	}
	if err := h.recordService.RejectRequest(c.Request.Context(), loc, kind, member); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func recordKind(c *gin.Context) (models.RequestKind, bool) {
	switch c.Param("kind") {
	case "delete":
		return models.KindRecordDelete, true
	case "update":
		return models.KindRecordUpdate, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request kind"})
		return "", false
	}
}
