package app

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"brieflycloud/internal/model"
)

func TestCreateBackupValidation(t *testing.T) {
	svc := NewAdminService(nil, nil, nil, nil, nil, nil, nil)
	userID := uuid.New()

	t.Run("missing user", func(t *testing.T) {
		_, err := svc.CreateBackup(uuid.Nil, BackupInput{Provider: model.BackupProviderPITR, Schedule: "daily"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := svc.CreateBackup(userID, BackupInput{Provider: "s3", Schedule: "daily"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("missing schedule", func(t *testing.T) {
		_, err := svc.CreateBackup(userID, BackupInput{Provider: model.BackupProviderExport})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
