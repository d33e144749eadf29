package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	Group      *GroupHandler
	Record     *RecordHandler
	Settlement *SettlementHandler
}

// NewHandlers creates all handlers
func NewHandlers(auth service.AuthService, users service.UserService, groups service.GroupService,
	records service.RecordService, settlements service.SettlementService) *Handlers {
	return &Handlers{
		Auth:       &AuthHandler{authService: auth},
		User:       &UserHandler{userService: users},
		Group:      &GroupHandler{groupService: groups, userService: users},
		Record:     &RecordHandler{recordService: records, userService: users},
		Settlement: &SettlementHandler{settlementService: settlements, userService: users},
	}
}

// ============================================
// Error Mapping
// ============================================

// writeError translates service errors into HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrAlreadyPending), errors.Is(err, apperr.ErrAlreadyApproved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsRemoteIO(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// actor resolves the authenticated caller into a member value with their
// display name attached.
func actor(c *gin.Context, users service.UserService, mobile string) (models.Member, bool) {
	u, err := users.Get(c.Request.Context(), mobile)
	if err != nil {
		writeError(c, err)
		return models.Member{}, false
	}
	return models.Member{Mobile: u.Mobile, Name: u.Name}, true
}

// recordRoot maps a URL segment to a record tree root.
func recordRoot(segment string) (string, bool) {
	switch segment {
	case "payments":
		return models.RootPayments, true
	case "loans":
		return models.RootLoans, true
	case "personal-loans":
		return models.RootPersonalLoans, true
	default:
		return "", false
	}
}
