package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"brieflycloud/internal/app"
	"brieflycloud/internal/transport/http/response"
)

type AdminHandler struct {
	adminService *app.AdminService
}

type BackupRequest struct {
	Provider      string `json:"provider"`
	Schedule      string `json:"schedule"`
	RetentionDays int    `json:"retention_days"`
	Enabled       *bool  `json:"enabled"`
}

func NewAdminHandler(adminService *app.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load stats failed")
		return
	}

	response.OK(c, stats)
}

func (h *AdminHandler) ListBackups(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	backups, err := h.adminService.ListBackups(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list backups failed")
		return
	}

	response.OK(c, backups)
}

func (h *AdminHandler) CreateBackup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req BackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	backup, err := h.adminService.CreateBackup(userID, app.BackupInput{
		Provider:      req.Provider,
		Schedule:      req.Schedule,
		RetentionDays: req.RetentionDays,
		Enabled:       req.Enabled,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create backup failed")
		}
		return
	}

	response.OK(c, backup)
}

func (h *AdminHandler) UpdateBackup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	backupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid backup id")
		return
	}

	var req BackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	backup, err := h.adminService.UpdateBackup(userID, backupID, app.BackupInput{
		Provider:      req.Provider,
		Schedule:      req.Schedule,
		RetentionDays: req.RetentionDays,
		Enabled:       req.Enabled,
	})
	if err != nil {
		h.backupError(c, err, "update backup failed")
		return
	}

	response.OK(c, backup)
}

func (h *AdminHandler) RunBackup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	backupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid backup id")
		return
	}

	backup, err := h.adminService.RunBackup(userID, backupID)
	if err != nil {
		h.backupError(c, err, "run backup failed")
		return
	}

	response.OK(c, backup)
}

func (h *AdminHandler) DeleteBackup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	backupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid backup id")
		return
	}

	if err := h.adminService.DeleteBackup(userID, backupID); err != nil {
		h.backupError(c, err, "delete backup failed")
		return
	}

	response.OK(c, gin.H{"deleted_backup_id": backupID})
}

func (h *AdminHandler) backupError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrBackupNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
