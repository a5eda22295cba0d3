package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/api/middleware"
	"github.com/leozw/mantenapp/internal/api/respond"
	"github.com/leozw/mantenapp/internal/auth"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
)

type AuthHandler struct {
	users      UserStore
	audit      auditor
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

func NewAuthHandler(users UserStore, audit AuditStore, tokens *auth.TokenManager, bcryptCost int, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		audit:      auditor{store: audit, logger: logger},
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type AuthResponse struct {
	User      *core.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		respond.ErrorWithDetails(c, http.StatusBadRequest, "Validation failed", []respond.FieldError{{
			Field: "password", Message: err.Error(), Code: "weak_password",
		}})
		return
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	now := time.Now().UTC()
	user := &core.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		Role:         core.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, db.ErrConflict) {
			respond.Error(c, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("Failed to create user", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respond.Created(c, "User registered successfully", AuthResponse{User: user, Token: token, ExpiresAt: expiresAt})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error("Failed to load user", zap.Error(err))
		}
		respond.Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respond.Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsActive {
		respond.Error(c, http.StatusForbidden, "Account is disabled")
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.Set(middleware.ContextUserID, user.ID)
	h.audit.record(c, "login", "user", user.ID, core.JSONB{"email": user.Email})

	respond.OK(c, "Login successful", AuthResponse{User: user, Token: token, ExpiresAt: expiresAt})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to load user", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load user")
		return
	}

	respond.OK(c, "", gin.H{"user": user})
}

// Activity lists the caller's most recent audit entries.
func (h *AuthHandler) Activity(c *gin.Context) {
	limit := intQuery(c, "limit", 20, 100)

	logs, err := h.audit.store.ListAuditLogs(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		h.logger.Error("Failed to list audit logs", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load activity")
		return
	}

	respond.OK(c, "", gin.H{"activity": logs})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUser(ctx, currentUserID(c))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to load user", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to change password")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		respond.Error(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	if err := auth.ValidatePasswordStrength(req.NewPassword); err != nil {
		respond.ErrorWithDetails(c, http.StatusBadRequest, "Validation failed", []respond.FieldError{{
			Field: "newPassword", Message: err.Error(), Code: "weak_password",
		}})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, h.bcryptCost)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to change password")
		return
	}
	if err := h.users.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		h.logger.Error("Failed to update password", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to change password")
		return
	}

	h.audit.record(c, "change_password", "user", user.ID, core.JSONB{})
	respond.OK(c, "Password updated successfully", nil)
}

// Logout only records the event; tokens are stateless and expire on their own.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.audit.record(c, "logout", "user", currentUserID(c), core.JSONB{})
	respond.OK(c, "Logged out successfully", nil)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil || !user.IsActive {
		respond.Error(c, http.StatusNotFound, "User not found or inactive")
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respond.OK(c, "Token refreshed successfully", gin.H{"token": token, "expiresAt": expiresAt})
}
