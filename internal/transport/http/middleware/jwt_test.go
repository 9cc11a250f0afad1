package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brieflycloud/internal/pkg/jwtutil"
)

const testSecret = "unit-test-secret"

func newProtectedRouter(t *testing.T) (*gin.Engine, *uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen uuid.UUID
	router := gin.New()
	router.GET("/protected", AuthJWT(testSecret), func(c *gin.Context) {
		userIDAny, _ := c.Get(ContextUserIDKey)
		if userID, ok := userIDAny.(uuid.UUID); ok {
			seen = userID
		}
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func TestAuthJWT(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		router, _ := newProtectedRouter(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)

		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		router, _ := newProtectedRouter(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		router, _ := newProtectedRouter(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")

		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		token, err := jwtutil.GenerateToken("other-secret", 60, uuid.New(), "a@b.com")
		require.NoError(t, err)

		router, _ := newProtectedRouter(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token reaches the handler with the user id", func(t *testing.T) {
		userID := uuid.New()
		token, err := jwtutil.GenerateToken(testSecret, 60, userID, "a@b.com")
		require.NoError(t, err)

		router, seen := newProtectedRouter(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, *seen)
	})
}
