package repository

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

const chunkInsertBatchSize = 100

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ScoredChunk is one vector search hit. Score is cosine similarity,
// already flipped from pgvector's distance.
type ScoredChunk struct {
	model.DocumentChunk `gorm:"embedded"`
	FileName            string  `json:"file_name"`
	Score               float64 `json:"score"`
}

// ReplaceForFile swaps a file's chunks atomically so a re-sync never
// leaves a mix of old and new content behind.
func (r *ChunkRepository) ReplaceForFile(fileID uuid.UUID, chunks []model.DocumentChunk) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(&chunks, chunkInsertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("replace chunks for file failed: %w", err)
	}
	return nil
}

// SearchSimilar runs the cosine nearest-neighbour query over the
// user's chunks and returns up to limit rows, best first. A non-empty
// fileIDs narrows the search to those files. The embedding column
// itself is not selected; only its distance is.
func (r *ChunkRepository) SearchSimilar(userID uuid.UUID, fileIDs []uuid.UUID, embedding pgvector.Vector, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT c.id, c.file_id, c.user_id, c.chunk_index, c.content, c.token_count,
		        c.metadata, c.created_at, f.name AS file_name,
		        1 - (c.embedding <=> ?) AS score
		 FROM document_chunks c
		 JOIN files f ON f.id = c.file_id
		 WHERE c.user_id = ?`
	args := []any{embedding, userID}
	if len(fileIDs) > 0 {
		query += " AND c.file_id IN ?"
		args = append(args, fileIDs)
	}
	query += " ORDER BY c.embedding <=> ? LIMIT ?"
	args = append(args, embedding, limit)

	var hits []ScoredChunk
	if err := r.db.Raw(query, args...).Scan(&hits).Error; err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return hits, nil
}

func (r *ChunkRepository) DeleteByFileID(fileID uuid.UUID) error {
	if err := r.db.Where("file_id = ?", fileID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by file failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) CountByUserID(userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.Model(&model.DocumentChunk{}).Where("user_id = ?", userID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count user chunks failed: %w", err)
	}
	return n, nil
}

func (r *ChunkRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.DocumentChunk{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}
