package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// AuthMiddleware handles API key authentication, client validation, and IP checks
// for ERP clients calling the exchange endpoint.
type AuthMiddleware struct {
	authService *service.AuthService
	rateLimiter *InvalidAuthRateLimiter
}

// NewAuthMiddleware constructs a new AuthMiddleware.
func NewAuthMiddleware(authService *service.AuthService, limiter *InvalidAuthRateLimiter) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		rateLimiter: limiter,
	}
}

// Handle returns a Gin middleware function that enforces authentication.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract API key: bearer token or X-Api-Key
		token := c.GetHeader("X-Api-Key")
		if authHeader := c.GetHeader("Authorization"); token == "" && strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if token == "" {
			m.handleAuthError(c, http.StatusUnauthorized, "missing API key")
			return
		}

		// 2. Validate API key
		client, err := m.authService.ValidateAPIKey(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, utils.ErrInvalidToken) {
				m.handleAuthError(c, http.StatusUnauthorized, "invalid API key")
				return
			}
			log.Error().Err(err).Msg("Failed to validate API key")
			utils.AbortError(c, http.StatusInternalServerError, "authentication unavailable")
			return
		}

		// 3. Check if client is active
		if !client.IsActive {
			m.handleAuthError(c, http.StatusForbidden, "client is not active")
			return
		}

		// 4. Validate Client ID header
		if !m.authService.ValidateClientID(client, c.GetHeader("X-Client-Id")) {
			m.handleAuthError(c, http.StatusUnauthorized, "client ID mismatch")
			return
		}

		// 5. Validate IP whitelist
		if !m.authService.IsIPAllowed(client, c.ClientIP()) {
			m.handleAuthError(c, http.StatusForbidden, "request from unauthorized IP address")
			return
		}

		// 6. Set context values
		c.Set("client", client)
		c.Set("client_id", client.ClientID)

		c.Next()
	}
}

func (m *AuthMiddleware) handleAuthError(c *gin.Context, code int, message string) {
	// Apply rate limit for invalid auth attempts
	if m.rateLimiter != nil && !m.rateLimiter.Allow(c.ClientIP()) {
		utils.AbortError(c, http.StatusTooManyRequests, "too many invalid authentication attempts")
		return
	}
	utils.AbortError(c, code, message)
}

// GetClient returns the authenticated client from context.
func GetClient(c *gin.Context) *models.ExchangeClient {
	client, ok := c.Get("client")
	if !ok {
		return nil
	}
	ec, _ := client.(*models.ExchangeClient)
	return ec
}
