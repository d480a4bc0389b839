package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/utils"
)

const secret = "jwt-secret"

func whoami(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", mw, func(c *gin.Context) {
		c.String(http.StatusOK, strconv.FormatInt(UserID(c), 10))
	})
	return r
}

func get(r *gin.Engine, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOptionalAuth(t *testing.T) {
	r := whoami(OptionalAuth(secret))
	valid, err := utils.GenerateAccessToken(42, "grace@example.com", string(models.RoleCustomer), secret, time.Hour)
	require.NoError(t, err)
	forged, err := utils.GenerateAccessToken(42, "grace@example.com", string(models.RoleCustomer), "other", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		bearer string
		want   string
	}{
		{"guest", "", "0"},
		{"valid", valid, "42"},
		{"forged", forged, "0"},
		{"garbage", "not-a-token", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.bearer)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestAuthMiddlewareRoles(t *testing.T) {
	customer, err := utils.GenerateAccessToken(7, "grace@example.com", string(models.RoleCustomer), secret, time.Hour)
	require.NoError(t, err)

	w := get(whoami(AuthMiddleware(secret)), customer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", w.Body.String())

	w = get(whoami(AuthMiddleware(secret, models.RoleAdmin)), customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(whoami(AuthMiddleware(secret)), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
