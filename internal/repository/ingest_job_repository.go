package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

type IngestJobRepository struct {
	db *gorm.DB
}

func NewIngestJobRepository(db *gorm.DB) *IngestJobRepository {
	return &IngestJobRepository{db: db}
}

func (r *IngestJobRepository) Create(job *model.IngestJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("create ingest job failed: %w", err)
	}
	return nil
}

func (r *IngestJobRepository) GetByID(id uuid.UUID) (*model.IngestJob, error) {
	var job model.IngestJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query ingest job failed: %w", err)
	}
	return &job, nil
}

func (r *IngestJobRepository) GetByIDAndUserID(id, userID uuid.UUID) (*model.IngestJob, error) {
	var job model.IngestJob
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query ingest job failed: %w", err)
	}
	return &job, nil
}

func (r *IngestJobRepository) ListByUserID(userID uuid.UUID, limit int) ([]model.IngestJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var jobs []model.IngestJob
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list ingest jobs failed: %w", err)
	}
	return jobs, nil
}

func (r *IngestJobRepository) MarkProcessing(id uuid.UUID, totalFiles int, startedAt time.Time) error {
	err := r.db.Model(&model.IngestJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":      model.JobStatusProcessing,
		"total_files": totalFiles,
		"started_at":  startedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("mark job processing failed: %w", err)
	}
	return nil
}

// AddProgress bumps the per-file counters in place so concurrent
// workers never lose an update. Postgres evaluates every SET against
// the old row, so the percentage repeats the increment instead of
// reading the new counter values.
func (r *IngestJobRepository) AddProgress(id uuid.UUID, processed, failed, chunks int) error {
	err := r.db.Model(&model.IngestJob{}).Where("id = ?", id).Updates(map[string]any{
		"files_processed": gorm.Expr("files_processed + ?", processed),
		"failed_files":    gorm.Expr("failed_files + ?", failed),
		"chunks_created":  gorm.Expr("chunks_created + ?", chunks),
		"progress":        gorm.Expr("LEAST(100, (files_processed + failed_files + ?) * 100 / GREATEST(total_files, 1))", processed+failed),
	}).Error
	if err != nil {
		return fmt.Errorf("update job progress failed: %w", err)
	}
	return nil
}

func (r *IngestJobRepository) MarkFinished(id uuid.UUID, status, errMsg string, finishedAt time.Time) error {
	err := r.db.Model(&model.IngestJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":      status,
		"error":       errMsg,
		"progress":    100,
		"finished_at": finishedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("mark job finished failed: %w", err)
	}
	return nil
}

func (r *IngestJobRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.Model(&model.IngestJob{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count ingest jobs by status failed: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
