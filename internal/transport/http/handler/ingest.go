package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"brieflycloud/internal/ai"
	"brieflycloud/internal/app"
	"brieflycloud/internal/transport/http/response"
)

type IngestHandler struct {
	ingestService *app.IngestService
}

type SyncRequest struct {
	Provider string `json:"provider" binding:"required"`
}

func NewIngestHandler(ingestService *app.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// Upload accepts a multipart form with "file", extracts text and
// indexes it synchronously.
func (h *IngestHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read upload failed")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read upload failed")
		return
	}

	file, err := h.ingestService.Upload(c.Request.Context(), app.UploadInput{
		UserID:   userID,
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		h.ingestError(c, err, "upload failed")
		return
	}

	response.OK(c, file)
}

func (h *IngestHandler) ListFiles(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	files, err := h.ingestService.ListFiles(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list files failed")
		return
	}

	response.OK(c, files)
}

func (h *IngestHandler) DeleteFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file id")
		return
	}

	if err := h.ingestService.DeleteFile(userID, fileID); err != nil {
		switch {
		case errors.Is(err, app.ErrFileNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete file failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_file_id": fileID})
}

// StartSync enqueues a full sync of the connected provider and
// returns the pending job for polling.
func (h *IngestHandler) StartSync(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	job, err := h.ingestService.StartSync(c.Request.Context(), userID, req.Provider)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownProvider), errors.Is(err, app.ErrNotConnected):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrJobEnqueue):
			response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start sync failed")
		}
		return
	}

	response.OK(c, job)
}

func (h *IngestHandler) ListJobs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	jobs, err := h.ingestService.ListJobs(userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list jobs failed")
		return
	}

	response.OK(c, jobs)
}

func (h *IngestHandler) GetJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid job id")
		return
	}

	job, err := h.ingestService.GetJob(userID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrJobNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get job failed")
		}
		return
	}

	response.OK(c, job)
}

func (h *IngestHandler) ingestError(c *gin.Context, err error, fallback string) {
	var limitErr *app.UsageLimitError
	var apiErr *ai.APIError
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrFileTooLarge),
		errors.Is(err, app.ErrUnsupportedFile),
		errors.Is(err, app.ErrEmptyDocument):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.As(err, &limitErr):
		response.Error(c, http.StatusTooManyRequests, response.CodeUsageLimit, limitErr.Error())
	case errors.As(err, &apiErr):
		response.Error(c, http.StatusBadGateway, response.CodeUpstream, "embedding request failed")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
