package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"brieflycloud/internal/app"
	"brieflycloud/internal/transport/http/response"
)

type ConnectionHandler struct {
	connectionService *app.ConnectionService
	frontendURL       string
}

func NewConnectionHandler(connectionService *app.ConnectionService, frontendURL string) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
		frontendURL:       frontendURL,
	}
}

// Authorize hands the frontend a provider consent URL with a one-shot
// state nonce bound to the current user.
func (h *ConnectionHandler) Authorize(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	authURL, err := h.connectionService.Authorize(c.Request.Context(), userID, c.Param("provider"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownProvider):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "authorize failed")
		}
		return
	}

	response.OK(c, gin.H{"url": authURL})
}

// Callback is the browser redirect target after provider consent, so
// it answers with a redirect into the app instead of a JSON envelope.
func (h *ConnectionHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")

	if c.Query("error") != "" {
		h.redirectToApp(c, providerName, "declined")
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		h.redirectToApp(c, providerName, "invalid_callback")
		return
	}

	_, err := h.connectionService.Callback(c.Request.Context(), providerName, state, code)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownProvider):
			h.redirectToApp(c, providerName, "unknown_provider")
		case errors.Is(err, app.ErrOAuthState):
			h.redirectToApp(c, providerName, "state_expired")
		default:
			h.redirectToApp(c, providerName, "exchange_failed")
		}
		return
	}

	h.redirectToApp(c, providerName, "")
}

func (h *ConnectionHandler) Status(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	statuses, err := h.connectionService.Status(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "connection status failed")
		return
	}

	response.OK(c, statuses)
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	providerName := c.Param("provider")
	if err := h.connectionService.Disconnect(userID, providerName); err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownProvider):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNotConnected):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "disconnect failed")
		}
		return
	}

	response.OK(c, gin.H{"disconnected": providerName})
}

// ListRemoteFiles previews what a sync would pick up, filtered to
// ingestable types.
func (h *ConnectionHandler) ListRemoteFiles(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	files, err := h.connectionService.ListRemoteFiles(c.Request.Context(), userID, c.Param("provider"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownProvider):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNotConnected):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		case errors.Is(err, app.ErrReauthRequired):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
		default:
			response.Error(c, http.StatusBadGateway, response.CodeUpstream, "list provider files failed")
		}
		return
	}

	response.OK(c, files)
}

func (h *ConnectionHandler) redirectToApp(c *gin.Context, providerName, errCode string) {
	query := url.Values{"provider": {providerName}}
	if errCode != "" {
		query.Set("error", errCode)
	} else {
		query.Set("connected", "1")
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/app/storage?"+query.Encode())
}
