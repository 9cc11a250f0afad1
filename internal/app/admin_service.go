package app

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"brieflycloud/internal/model"
	"brieflycloud/internal/repository"
)

var ErrBackupNotFound = errors.New("backup config not found")

type AdminService struct {
	userRepo    *repository.UserRepository
	fileRepo    *repository.FileRepository
	chunkRepo   *repository.ChunkRepository
	messageRepo *repository.MessageRepository
	jobRepo     *repository.IngestJobRepository
	usageRepo   *repository.UsageLogRepository
	backupRepo  *repository.BackupRepository
}

type AdminStats struct {
	UsersByTier        map[string]int64 `json:"users_by_tier"`
	JobsByStatus       map[string]int64 `json:"jobs_by_status"`
	TotalFiles         int64            `json:"total_files"`
	TotalChunks        int64            `json:"total_chunks"`
	TotalMessages      int64            `json:"total_messages"`
	ChatMessages24h    int64            `json:"chat_messages_24h"`
	DocumentUploads24h int64            `json:"document_uploads_24h"`
}

type BackupInput struct {
	Provider      string
	Schedule      string
	RetentionDays int
	Enabled       *bool
}

func NewAdminService(
	userRepo *repository.UserRepository,
	fileRepo *repository.FileRepository,
	chunkRepo *repository.ChunkRepository,
	messageRepo *repository.MessageRepository,
	jobRepo *repository.IngestJobRepository,
	usageRepo *repository.UsageLogRepository,
	backupRepo *repository.BackupRepository,
) *AdminService {
	return &AdminService{
		userRepo:    userRepo,
		fileRepo:    fileRepo,
		chunkRepo:   chunkRepo,
		messageRepo: messageRepo,
		jobRepo:     jobRepo,
		usageRepo:   usageRepo,
		backupRepo:  backupRepo,
	}
}

func (s *AdminService) Stats() (*AdminStats, error) {
	usersByTier, err := s.userRepo.CountByTier()
	if err != nil {
		return nil, err
	}
	jobsByStatus, err := s.jobRepo.CountByStatus()
	if err != nil {
		return nil, err
	}
	totalFiles, err := s.fileRepo.Count()
	if err != nil {
		return nil, err
	}
	totalChunks, err := s.chunkRepo.Count()
	if err != nil {
		return nil, err
	}
	totalMessages, err := s.messageRepo.Count()
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-24 * time.Hour)
	chat24h, err := s.usageRepo.SumByActionSince(model.UsageActionChatMessage, since)
	if err != nil {
		return nil, err
	}
	uploads24h, err := s.usageRepo.SumByActionSince(model.UsageActionDocumentUpload, since)
	if err != nil {
		return nil, err
	}

	return &AdminStats{
		UsersByTier:        usersByTier,
		JobsByStatus:       jobsByStatus,
		TotalFiles:         totalFiles,
		TotalChunks:        totalChunks,
		TotalMessages:      totalMessages,
		ChatMessages24h:    chat24h,
		DocumentUploads24h: uploads24h,
	}, nil
}

func (s *AdminService) ListBackups(userID uuid.UUID) ([]model.BackupConfig, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.backupRepo.ListByUserID(userID)
}

func (s *AdminService) CreateBackup(userID uuid.UUID, input BackupInput) (*model.BackupConfig, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	if input.Provider != model.BackupProviderPITR && input.Provider != model.BackupProviderExport {
		return nil, ErrInvalidInput
	}
	if input.Schedule == "" {
		return nil, ErrInvalidInput
	}
	retention := input.RetentionDays
	if retention <= 0 {
		retention = 30
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	cfg := &model.BackupConfig{
		UserID:        userID,
		Provider:      input.Provider,
		Schedule:      input.Schedule,
		RetentionDays: retention,
		Enabled:       enabled,
		LastStatus:    model.BackupStatusNever,
	}
	if err := s.backupRepo.Create(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *AdminService) UpdateBackup(userID, id uuid.UUID, input BackupInput) (*model.BackupConfig, error) {
	cfg, err := s.getBackup(userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Provider != "" {
		if input.Provider != model.BackupProviderPITR && input.Provider != model.BackupProviderExport {
			return nil, ErrInvalidInput
		}
		fields["provider"] = input.Provider
	}
	if input.Schedule != "" {
		fields["schedule"] = input.Schedule
	}
	if input.RetentionDays > 0 {
		fields["retention_days"] = input.RetentionDays
	}
	if input.Enabled != nil {
		fields["enabled"] = *input.Enabled
	}
	if err := s.backupRepo.UpdateFields(cfg.ID, fields); err != nil {
		return nil, err
	}
	return s.getBackup(userID, id)
}

// RunBackup records a run. The real work happens inside the managed
// database's point-in-time recovery; this endpoint tracks that it was
// requested and when.
func (s *AdminService) RunBackup(userID, id uuid.UUID) (*model.BackupConfig, error) {
	cfg, err := s.getBackup(userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.backupRepo.MarkRun(cfg.ID, model.BackupStatusOK, time.Now()); err != nil {
		return nil, err
	}
	return s.getBackup(userID, id)
}

func (s *AdminService) DeleteBackup(userID, id uuid.UUID) error {
	if _, err := s.getBackup(userID, id); err != nil {
		return err
	}
	return s.backupRepo.DeleteByIDAndUserID(id, userID)
}

func (s *AdminService) getBackup(userID, id uuid.UUID) (*model.BackupConfig, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, ErrInvalidInput
	}
	cfg, err := s.backupRepo.GetByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrBackupNotFound
	}
	return cfg, nil
}
