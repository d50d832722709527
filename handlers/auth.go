package handlers

import (
	"errors"
	"net/http"
	"sync"

	"cafe-ordering-api/apperr"
	"cafe-ordering-api/middleware"
	"cafe-ordering-api/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

const invalidCredentials = "Invalid credentials"

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// equalizeTiming burns one bcrypt comparison so unknown usernames take as
// long as wrong passwords.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Login authenticates an admin and returns a JWT
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Auth(invalidCredentials))
		return
	}

	var admin models.Admin
	err := h.DB.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		equalizeTiming(req.Password)
		h.respondError(c, apperr.Auth(invalidCredentials))
		return
	}
	if err != nil {
		h.respondError(c, apperr.Internal("Login failed", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		h.respondError(c, apperr.Auth(invalidCredentials))
		return
	}

	token, err := middleware.GenerateToken(&admin, h.Secret, h.TokenTTL)
	if err != nil {
		h.respondError(c, apperr.Internal("Failed to generate token", err))
		return
	}

	middleware.Logger(c, h.Log).WithField("admin", admin.Username).Info("admin logged in")
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": admin.Username,
	})
}
