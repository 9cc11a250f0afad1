package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"brieflycloud/internal/ai"
	"brieflycloud/internal/config"
	"brieflycloud/internal/extract"
	"brieflycloud/internal/model"
	"brieflycloud/internal/provider"
	"brieflycloud/internal/rag"
	"brieflycloud/internal/repository"
)

const embedBatchSize = 10 // embedding APIs commonly cap batch size

var (
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("no extractable text in document")
	ErrFileNotFound    = errors.New("file not found")
	ErrJobNotFound     = errors.New("ingest job not found")
	ErrJobEnqueue      = errors.New("ingest job enqueue failed")
)

// AsyncPublisher hands a payload to the queue for a background worker.
type AsyncPublisher interface {
	Publish(ctx context.Context, payload any) error
}

// IngestJobMessage is the queue payload that hands a sync job to the
// worker.
type IngestJobMessage struct {
	JobID  uuid.UUID `json:"job_id"`
	UserID uuid.UUID `json:"user_id"`
	Source string    `json:"source"`
}

type IngestService struct {
	fileRepo       *repository.FileRepository
	chunkRepo      *repository.ChunkRepository
	jobRepo        *repository.IngestJobRepository
	usage          *UsageService
	conns          *ConnectionService
	llm            *ai.OpenAICompatibleClient
	embCfg         ai.EmbeddingConfig
	publisher      AsyncPublisher
	chunkOpts      rag.ChunkOptions
	maxUploadBytes int64
}

type UploadInput struct {
	UserID   uuid.UUID
	Filename string
	MimeType string
	Data     []byte
}

func NewIngestService(
	fileRepo *repository.FileRepository,
	chunkRepo *repository.ChunkRepository,
	jobRepo *repository.IngestJobRepository,
	usage *UsageService,
	conns *ConnectionService,
	llm *ai.OpenAICompatibleClient,
	embCfg ai.EmbeddingConfig,
	publisher AsyncPublisher,
	cfg config.IngestConfig,
) *IngestService {
	maxUploadMB := cfg.MaxUploadMB
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &IngestService{
		fileRepo:  fileRepo,
		chunkRepo: chunkRepo,
		jobRepo:   jobRepo,
		usage:     usage,
		conns:     conns,
		llm:       llm,
		embCfg:    embCfg,
		publisher: publisher,
		chunkOpts: rag.ChunkOptions{
			Strategy: cfg.Strategy,
			Size:     cfg.ChunkSize,
			Overlap:  cfg.ChunkOverlap,
		},
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// Upload ingests one file synchronously. Uploads are always new
// documents; replace-in-place applies only to provider syncs, which
// carry a stable remote file id.
func (s *IngestService) Upload(ctx context.Context, input UploadInput) (*model.File, error) {
	if input.UserID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Filename)
	if name == "" || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}
	if int64(len(input.Data)) > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if !extract.Supported(name) {
		return nil, ErrUnsupportedFile
	}

	text, err := extract.Text(name, input.Data)
	if err != nil {
		return nil, fmt.Errorf("extract text failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	size := int64(len(input.Data))
	if err := s.reserveUsage(input.UserID, true, size); err != nil {
		return nil, err
	}

	file := &model.File{
		ID:        uuid.New(),
		UserID:    input.UserID,
		Provider:  model.ProviderUpload,
		Name:      name,
		MimeType:  input.MimeType,
		SizeBytes: size,
		Checksum:  checksumOf(input.Data),
		Status:    model.FileStatusProcessing,
	}
	file.ProviderFileID = file.ID.String()
	if err := s.fileRepo.Create(file); err != nil {
		s.releaseUsage(input.UserID, true, size)
		return nil, err
	}

	if err := s.indexFile(ctx, file, text); err != nil {
		_ = s.chunkRepo.DeleteByFileID(file.ID)
		_ = s.fileRepo.DeleteByID(file.ID)
		s.releaseUsage(input.UserID, true, size)
		return nil, err
	}
	return file, nil
}

// StartSync records a pending job and hands it to the worker queue.
func (s *IngestService) StartSync(ctx context.Context, userID uuid.UUID, source string) (*model.IngestJob, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	conn, err := s.conns.Connection(userID, source)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNotConnected
	}

	job := &model.IngestJob{
		UserID: userID,
		Source: source,
		Status: model.JobStatusPending,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	if s.publisher == nil {
		return nil, ErrJobEnqueue
	}
	msg := IngestJobMessage{JobID: job.ID, UserID: userID, Source: source}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		_ = s.jobRepo.MarkFinished(job.ID, model.JobStatusFailed, "enqueue failed", time.Now())
		return nil, ErrJobEnqueue
	}
	return job, nil
}

func (s *IngestService) GetJob(userID, jobID uuid.UUID) (*model.IngestJob, error) {
	if userID == uuid.Nil || jobID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	job, err := s.jobRepo.GetByIDAndUserID(jobID, userID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *IngestService) ListJobs(userID uuid.UUID, limit int) ([]model.IngestJob, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.jobRepo.ListByUserID(userID, limit)
}

func (s *IngestService) ListFiles(userID uuid.UUID) ([]model.File, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.fileRepo.ListByUserID(userID)
}

// DeleteFile removes the file and its chunks and gives the quota back.
func (s *IngestService) DeleteFile(userID, fileID uuid.UUID) error {
	if userID == uuid.Nil || fileID == uuid.Nil {
		return ErrInvalidInput
	}
	file, err := s.fileRepo.GetByIDAndUserID(fileID, userID)
	if err != nil {
		return err
	}
	if file == nil {
		return ErrFileNotFound
	}
	if err := s.chunkRepo.DeleteByFileID(file.ID); err != nil {
		return err
	}
	if err := s.fileRepo.DeleteByID(file.ID); err != nil {
		return err
	}
	s.releaseUsage(userID, true, file.SizeBytes)
	return nil
}

// ListRemoteFiles is the browse view of a connected provider, already
// narrowed to ingestable types.
func (s *IngestService) ListRemoteFiles(ctx context.Context, userID uuid.UUID, source string) ([]provider.RemoteFile, error) {
	return s.conns.ListRemoteFiles(ctx, userID, source)
}

// IngestRemoteFile downloads, extracts, and indexes one provider file.
// A file whose checksum matches the stored row is skipped. Returns the
// number of chunks written.
func (s *IngestService) IngestRemoteFile(ctx context.Context, userID uuid.UUID, source string, rf provider.RemoteFile) (int, error) {
	cli, ok := s.conns.Provider(source)
	if !ok {
		return 0, ErrUnknownProvider
	}
	token, err := s.conns.AccessToken(ctx, userID, source)
	if err != nil {
		return 0, err
	}
	data, err := cli.Download(ctx, token, rf)
	if err != nil {
		return 0, fmt.Errorf("download %s failed: %w", rf.Name, err)
	}

	// Google-native documents arrive as exported plain text, whatever
	// their display name says.
	var text string
	if provider.IsGoogleNative(rf.MimeType) {
		text, err = extract.Plain(data)
	} else {
		text, err = extract.Text(rf.Name, data)
	}
	if err != nil {
		return 0, fmt.Errorf("extract %s failed: %w", rf.Name, err)
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyDocument
	}

	existing, err := s.fileRepo.GetByProviderFileID(userID, source, rf.ID)
	if err != nil {
		return 0, err
	}
	checksum := checksumOf(data)
	if existing != nil && existing.Status == model.FileStatusCompleted && existing.Checksum == checksum {
		now := time.Now()
		if err := s.fileRepo.UpdateFields(existing.ID, map[string]any{"last_synced_at": now}); err != nil {
			return 0, err
		}
		return 0, nil
	}

	size := int64(len(data))
	isNew := existing == nil
	var oldSize int64
	if existing != nil {
		oldSize = existing.SizeBytes
	}
	storageDelta := size - oldSize
	if err := s.reserveUsage(userID, isNew, storageDelta); err != nil {
		return 0, err
	}

	var file *model.File
	if existing != nil {
		file = existing
		file.Name = rf.Name
		file.MimeType = rf.MimeType
		file.SizeBytes = size
		file.Checksum = checksum
		file.Status = model.FileStatusProcessing
		file.Error = ""
		err = s.fileRepo.Save(file)
	} else {
		file = &model.File{
			UserID:         userID,
			Provider:       source,
			ProviderFileID: rf.ID,
			Name:           rf.Name,
			MimeType:       rf.MimeType,
			SizeBytes:      size,
			Checksum:       checksum,
			Status:         model.FileStatusProcessing,
		}
		err = s.fileRepo.Create(file)
	}
	if err != nil {
		s.releaseUsage(userID, isNew, storageDelta)
		return 0, err
	}

	if err := s.indexFile(ctx, file, text); err != nil {
		_ = s.fileRepo.UpdateFields(file.ID, map[string]any{
			"status": model.FileStatusFailed,
			"error":  err.Error(),
		})
		s.releaseUsage(userID, isNew, storageDelta)
		return 0, err
	}
	return file.ChunkCount, nil
}

// indexFile chunks and embeds the text, swaps the chunk set, and marks
// the file completed. Failure handling is the caller's job.
func (s *IngestService) indexFile(ctx context.Context, file *model.File, text string) error {
	chunks := rag.ChunkText(text, s.chunkOpts)
	if len(chunks) == 0 {
		return ErrEmptyDocument
	}
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	rows := make([]model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = model.DocumentChunk{
			FileID:     file.ID,
			UserID:     file.UserID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			TokenCount: c.TokenCount,
			Embedding:  vectors[i],
		}
	}
	if err := s.chunkRepo.ReplaceForFile(file.ID, rows); err != nil {
		return err
	}

	now := time.Now()
	if err := s.fileRepo.UpdateFields(file.ID, map[string]any{
		"status":         model.FileStatusCompleted,
		"chunk_count":    len(rows),
		"error":          "",
		"last_synced_at": now,
	}); err != nil {
		return err
	}
	file.Status = model.FileStatusCompleted
	file.ChunkCount = len(rows)
	file.Error = ""
	file.LastSyncedAt = &now
	return nil
}

// embedChunks calls the embedding API in batches to stay under
// provider limits.
func (s *IngestService) embedChunks(ctx context.Context, chunks []rag.Chunk) ([]pgvector.Vector, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors := make([]pgvector.Vector, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.llm.EmbedBatch(ctx, s.embCfg, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks failed: %w", err)
		}
		for _, emb := range batch {
			vectors = append(vectors, pgvector.NewVector(emb))
		}
	}
	if len(vectors) != len(chunks) {
		return nil, errors.New("embedding count mismatch")
	}
	return vectors, nil
}

// reserveUsage takes document and storage quota for one ingest. When
// the document already exists only the storage growth is charged.
func (s *IngestService) reserveUsage(userID uuid.UUID, isNew bool, storageDelta int64) error {
	if isNew {
		if _, err := s.usage.CheckAndIncrement(userID, model.UsageActionDocumentUpload, 1); err != nil {
			return err
		}
	}
	if storageDelta > 0 {
		if _, err := s.usage.CheckAndIncrement(userID, model.UsageActionStorage, storageDelta); err != nil {
			if isNew {
				_ = s.usage.Release(userID, model.UsageActionDocumentUpload, 1)
			}
			return err
		}
	} else if storageDelta < 0 {
		_ = s.usage.Release(userID, model.UsageActionStorage, -storageDelta)
	}
	return nil
}

// releaseUsage undoes reserveUsage after a failure, or settles the
// books when a document is deleted.
func (s *IngestService) releaseUsage(userID uuid.UUID, wasNew bool, storageDelta int64) {
	if wasNew {
		_ = s.usage.Release(userID, model.UsageActionDocumentUpload, 1)
	}
	if storageDelta > 0 {
		_ = s.usage.Release(userID, model.UsageActionStorage, storageDelta)
	}
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
