package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"brieflycloud/internal/ai"
	"brieflycloud/internal/app"
	"brieflycloud/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateConversationRequest struct {
	Title string `json:"title" binding:"max=128"`
}

type SendMessageRequest struct {
	ConversationID uuid.UUID   `json:"conversation_id" binding:"required"`
	Content        string      `json:"content" binding:"required"`
	FileIDs        []uuid.UUID `json:"file_ids"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	conv, err := h.chatService.CreateConversation(app.CreateConversationInput{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create conversation failed")
		}
		return
	}

	response.OK(c, conv)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	conversations, err := h.chatService.ListConversations(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list conversations failed")
		return
	}

	response.OK(c, conversations)
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation id")
		return
	}

	if err := h.chatService.DeleteConversation(userID, conversationID); err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete conversation failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_conversation_id": conversationID})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation id")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	messages, err := h.chatService.GetMessages(userID, conversationID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get messages failed")
		}
		return
	}

	response.OK(c, messages)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		FileIDs:        req.FileIDs,
	})
	if err != nil {
		h.sendMessageError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) sendMessageError(c *gin.Context, err error) {
	var limitErr *app.UsageLimitError
	var apiErr *ai.APIError
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrByokUnauthorized):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrConversationNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.As(err, &limitErr):
		response.Error(c, http.StatusTooManyRequests, response.CodeUsageLimit, limitErr.Error())
	case errors.Is(err, app.ErrMessageEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, err.Error())
	case errors.As(err, &apiErr):
		response.Error(c, http.StatusBadGateway, response.CodeUpstream, "model request failed")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed")
	}
}

func (h *ChatHandler) StreamMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	result, err := h.chatService.StreamMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		FileIDs:        req.FileIDs,
	}, func(chunk string) error {
		return writeSSE(c, flusher, "", gin.H{"delta": chunk})
	})
	if err != nil {
		_ = writeSSE(c, flusher, "error", gin.H{"message": streamErrorMessage(err)})
		return
	}

	_ = writeSSE(c, flusher, "done", gin.H{
		"model":   result.Model,
		"sources": result.Sources,
	})
}

// streamErrorMessage keeps internal error detail out of the SSE body.
func streamErrorMessage(err error) string {
	var limitErr *app.UsageLimitError
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrMessageEmpty),
		errors.Is(err, app.ErrConversationNotFound),
		errors.Is(err, app.ErrByokUnauthorized),
		errors.Is(err, app.ErrMessageEnqueue):
		return err.Error()
	case errors.As(err, &limitErr):
		return limitErr.Error()
	default:
		return "send message failed"
	}
}

func writeSSE(c *gin.Context, flusher http.Flusher, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame := "data: " + string(data) + "\n\n"
	if event != "" {
		frame = "event: " + event + "\n" + frame
	}
	if _, err := c.Writer.Write([]byte(frame)); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
