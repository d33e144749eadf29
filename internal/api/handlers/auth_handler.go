package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hisaab-app/hisaab-backend/internal/service"
)

// ============================================
// Auth Handler
// ============================================

type AuthHandler struct {
	authService service.AuthService
}

type registerRequest struct {
	Name   string `json:"name" binding:"required"`
	Mobile string `json:"mobile" binding:"required"`
}

type loginRequest struct {
	Mobile    string `json:"mobile" binding:"required"`
	LoginCode string `json:"loginCode" binding:"required"`
}

type recoverRequest struct {
	Mobile       string `json:"mobile" binding:"required"`
	Passcode     string `json:"passcode" binding:"required"`
	NewLoginCode string `json:"newLoginCode" binding:"required"`
}

type verifySessionRequest struct {
	Session string `json:"session" binding:"required"`
	Store   string `json:"store" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Mobile)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"mobile": user.Mobile, "name": user.Name})
}

// Login authenticates a user. The first login with an unclaimed account sets
// the login code and returns recovery passcodes; the client must show them
// once.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Mobile, req.LoginCode)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse(result))
}

// Recover burns a recovery passcode to set a new login code.
func (h *AuthHandler) Recover(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.Recover(c.Request.Context(), req.Mobile, req.Passcode, req.NewLoginCode)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse(result))
}

// Logout is a client-side affair with stateless tokens; the endpoint exists
// so clients have a uniform call to clear their stored credentials against.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// VerifySession checks a stored session blob pair without issuing anything.
func (h *AuthHandler) VerifySession(c *gin.Context) {
	var req verifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": h.authService.VerifySession(req.Session, req.Store)})
}

func loginResponse(result *service.LoginResult) gin.H {
	resp := gin.H{
		"mobile":     result.User.Mobile,
		"name":       result.User.Name,
		"token":      result.Token,
		"session":    result.SessionBlob,
		"store":      result.StoreBlob,
		"firstLogin": result.FirstLogin,
	}
	if len(result.RecoveryCodes) > 0 {
		resp["recoveryCodes"] = result.RecoveryCodes
	}
	return resp
}
