package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/repository/memory"
	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T, limiter *InvalidAuthRateLimiter) (*gin.Engine, *memory.ClientStore) {
	t.Helper()
	clients := memory.NewAccess().Clients()
	ctx := context.Background()

	require.NoError(t, clients.Create(ctx, &models.ExchangeClient{
		ClientID: "erp_main", Name: "1C", APIKey: "sx_live_good",
		IPWhitelist: []string{"10.0.0.0/8"}, IsActive: true,
	}))
	require.NoError(t, clients.Create(ctx, &models.ExchangeClient{
		ClientID: "erp_off", Name: "Legacy", APIKey: "sx_live_off", IsActive: false,
	}))

	r := gin.New()
	r.Use(LoggingMiddleware())
	r.GET("/v1/exchange", NewAuthMiddleware(service.NewAuthService(clients), limiter).Handle(), func(c *gin.Context) {
		c.String(http.StatusOK, GetClient(c).ClientID)
	})
	return r, clients
}

func authRequest(key, clientID, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/exchange?action=get_catalog", nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("X-Client-Id", clientID)
	req.RemoteAddr = ip + ":5000"
	return req
}

func TestAuthMiddleware(t *testing.T) {
	r, _ := newAuthRouter(t, nil)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"valid bearer key", authRequest("sx_live_good", "erp_main", "10.1.2.3"), http.StatusOK},
		{"missing key", authRequest("", "erp_main", "10.1.2.3"), http.StatusUnauthorized},
		{"unknown key", authRequest("sx_live_bad", "erp_main", "10.1.2.3"), http.StatusUnauthorized},
		{"client id mismatch", authRequest("sx_live_good", "erp_other", "10.1.2.3"), http.StatusUnauthorized},
		{"ip outside whitelist", authRequest("sx_live_good", "erp_main", "192.168.1.5"), http.StatusForbidden},
		{"inactive client", authRequest("sx_live_off", "erp_off", "10.1.2.3"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			if tt.status != http.StatusOK {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}

	t.Run("accepts X-Api-Key header", func(t *testing.T) {
		req := authRequest("", "erp_main", "10.9.9.9")
		req.Header.Set("X-Api-Key", "sx_live_good")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "erp_main", w.Body.String())
	})
}

func TestAuthMiddleware_ThrottlesInvalidAttempts(t *testing.T) {
	r, _ := newAuthRouter(t, NewInvalidAuthRateLimiter(2, time.Minute))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authRequest("sx_live_bad", "erp_main", "10.7.7.7"))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)

	// other addresses keep their own budget
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authRequest("sx_live_bad", "erp_main", "10.8.8.8"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidAuthRateLimiter_Sweep(t *testing.T) {
	l := NewInvalidAuthRateLimiter(1, time.Minute)
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))

	l.sweep(time.Now().Add(2 * time.Minute))
	assert.True(t, l.Allow("1.1.1.1"))
}

func TestJWTMiddleware(t *testing.T) {
	utils.InitJWT("test-secret", time.Hour)
	token, _, err := utils.GenerateJWT(7, "ops@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", NewJWTMiddleware().Handle(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("email"))
	})

	for name, tc := range map[string]struct {
		header string
		status int
	}{
		"valid":     {"Bearer " + token, http.StatusOK},
		"missing":   {"", http.StatusUnauthorized},
		"malformed": {"Token " + token, http.StatusUnauthorized},
		"garbage":   {"Bearer not-a-jwt", http.StatusUnauthorized},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"admin.parts.example"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://admin.parts.example:443")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "https://admin.parts.example:443", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin not echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
