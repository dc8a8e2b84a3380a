package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/utils"
)

type AuthHandler struct {
	authService *service.AdminAuthService
}

func NewAuthHandler(authService *service.AdminAuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles POST /v1/admin/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidCredentials) {
			utils.Error(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		log.Error().Err(err).Msg("Admin login failed")
		utils.Error(c, http.StatusInternalServerError, "login failed")
		return
	}

	utils.Success(c, http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt,
	})
}
