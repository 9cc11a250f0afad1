package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"brieflycloud/internal/ai"
	"brieflycloud/internal/config"
)

func newBareIngestService(cfg config.IngestConfig) *IngestService {
	return NewIngestService(nil, nil, nil, nil, nil, nil, ai.EmbeddingConfig{}, nil, cfg)
}

func TestUploadValidation(t *testing.T) {
	svc := newBareIngestService(config.IngestConfig{MaxUploadMB: 1})
	ctx := context.Background()
	userID := uuid.New()

	t.Run("missing user", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadInput{Filename: "a.txt", Data: []byte("x")})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("missing filename or data", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadInput{UserID: userID, Filename: "  ", Data: []byte("x")})
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = svc.Upload(ctx, UploadInput{UserID: userID, Filename: "a.txt"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("oversized payload", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadInput{UserID: userID, Filename: "a.txt", Data: make([]byte, 2<<20)})
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadInput{UserID: userID, Filename: "video.mp4", Data: []byte("x")})
		assert.ErrorIs(t, err, ErrUnsupportedFile)
	})

	t.Run("whitespace-only document", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadInput{UserID: userID, Filename: "blank.txt", Data: []byte("  \n\t  ")})
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})
}

func TestStartSyncValidation(t *testing.T) {
	svc := newBareIngestService(config.IngestConfig{})

	_, err := svc.StartSync(context.Background(), uuid.Nil, "google_drive")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChecksumOf(t *testing.T) {
	a := checksumOf([]byte("same bytes"))
	b := checksumOf([]byte("same bytes"))
	c := checksumOf([]byte("other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
