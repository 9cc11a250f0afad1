package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	OK(c, gin.H{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeOK, body.Code)
	assert.Equal(t, "ok", body.Message)
	assert.NotNil(t, body.Data)
}

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Error(c, http.StatusTooManyRequests, CodeUsageLimit, "chat_message limit reached (100/100)")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeUsageLimit, body.Code)
	assert.Equal(t, "chat_message limit reached (100/100)", body.Message)
	assert.Nil(t, body.Data)
}
