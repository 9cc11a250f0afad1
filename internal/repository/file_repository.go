package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *model.File) error {
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) Save(file *model.File) error {
	if err := r.db.Save(file).Error; err != nil {
		return fmt.Errorf("save file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(id uuid.UUID) (*model.File, error) {
	var file model.File
	if err := r.db.Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query file by id failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) GetByIDAndUserID(id, userID uuid.UUID) (*model.File, error) {
	var file model.File
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query file failed: %w", err)
	}
	return &file, nil
}

// GetByProviderFileID finds the row a re-sync should update in place.
func (r *FileRepository) GetByProviderFileID(userID uuid.UUID, provider, providerFileID string) (*model.File, error) {
	var file model.File
	err := r.db.Where("user_id = ? AND provider = ? AND provider_file_id = ?",
		userID, provider, providerFileID).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query file by provider id failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) ListByUserID(userID uuid.UUID) ([]model.File, error) {
	var files []model.File
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) UpdateFields(id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.Model(&model.File{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) DeleteByID(id uuid.UUID) error {
	if err := r.db.Where("id = ?", id).Delete(&model.File{}).Error; err != nil {
		return fmt.Errorf("delete file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.File{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count files failed: %w", err)
	}
	return n, nil
}

func (r *FileRepository) SumSizeBytes() (int64, error) {
	var total int64
	err := r.db.Model(&model.File{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum file sizes failed: %w", err)
	}
	return total, nil
}
