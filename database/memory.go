package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/nvollmer/fabula/helper"
	"github.com/nvollmer/fabula/model"
	loadSql "github.com/nvollmer/fabula/sql"
)

// MemoryDBHandlerFunctions defines the interface for memory database operations.
type MemoryDBHandlerFunctions interface {
	InsertChunk(namespace string, chunk *model.Chunk) error
	UpsertChapter(namespace string, chapterID int, chunks []model.Chunk) (int, error)
	DeleteChapter(namespace string, chapterID int) (int, error)
	SelectChunksBySimilarity(namespace string, embedding []float32, limit int, excludeChapterID *int) ([]*model.MemoryHit, error)
	CountChunks(namespace string) (int64, error)
}

// MemoryDBHandler handles the namespaced chapter memory stored in pgvector.
// Books are isolated by namespace, so cross-book operations never coordinate.
type MemoryDBHandler struct {
	db *helper.Database
}

// NewMemoryDBHandler creates a new memory database handler.
// It loads the memory SQL functions and creates the chunk table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMemoryDBHandler(db *helper.Database, embeddingDim int, force bool) (*MemoryDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	memoryDbHandler := &MemoryDBHandler{
		db: db,
	}

	err := loadSql.LoadMemorySql(memoryDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load memory sql", err)
	}

	err = memoryDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MemoryDBHandler")

	return memoryDbHandler, nil
}

// CreateTable creates the 'memory_chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *MemoryDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_memory($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("initialize memory table", err)
	}

	h.db.Logger.Info("Checked/created table memory_chunks")

	return nil
}

// InsertChunk upserts one chunk under its deterministic identity
func (h *MemoryDBHandler) InsertChunk(namespace string, chunk *model.Chunk) error {
	if chunk.Metadata == nil {
		chunk.Metadata = model.Metadata{}
	}

	var id int
	err := h.db.Instance.QueryRow(
		`SELECT insert_memory_chunk($1, $2, $3, $4, $5, $6)`,
		namespace,
		chunk.ChapterID,
		chunk.ChunkIndex,
		chunk.Text,
		pgvector.NewVector(chunk.Embedding),
		chunk.Metadata,
	).Scan(&id)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpsertChapter replaces a chapter's indexed chunks wholesale: every chunk of
// the chapter is removed, then the given chunks inserted. The index never
// holds chunks of two versions of the same chapter.
func (h *MemoryDBHandler) UpsertChapter(namespace string, chapterID int, chunks []model.Chunk) (int, error) {
	deleted, err := h.DeleteChapter(namespace, chapterID)
	if err != nil {
		return 0, helper.NewError("remove stale chapter chunks", err)
	}

	for i := range chunks {
		if err := h.InsertChunk(namespace, &chunks[i]); err != nil {
			return i, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
	}

	h.db.Logger.Debug("Reindexed chapter",
		slog.String("namespace", namespace),
		slog.Int("chapter_id", chapterID),
		slog.Int("chunks", len(chunks)),
		slog.Int("replaced", deleted))

	return len(chunks), nil
}

// DeleteChapter removes every chunk of a chapter within a namespace and
// returns the number of chunks removed. Deleting a chapter with nothing
// indexed is a no-op.
func (h *MemoryDBHandler) DeleteChapter(namespace string, chapterID int) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRow(
		`SELECT delete_memory_chunks_by_chapter($1, $2)`,
		namespace,
		chapterID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	if deleted > 0 {
		h.db.Logger.Debug("Deleted chapter memory",
			slog.String("namespace", namespace),
			slog.Int("chapter_id", chapterID),
			slog.Int("chunks", deleted))
	}

	return deleted, nil
}

// SelectChunksBySimilarity performs vector similarity search within a
// namespace, excluding one chapter when excludeChapterID is non-nil
func (h *MemoryDBHandler) SelectChunksBySimilarity(namespace string, embedding []float32, limit int, excludeChapterID *int) ([]*model.MemoryHit, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_memory_chunks_by_similarity($1, $2, $3, $4)`,
		namespace,
		pgvector.NewVector(embedding),
		limit,
		excludeChapterID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []*model.MemoryHit
	for rows.Next() {
		hit := &model.MemoryHit{}
		err := rows.Scan(
			&hit.ChapterID,
			&hit.ChunkIndex,
			&hit.Text,
			&hit.Distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		hits = append(hits, hit)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

// CountChunks returns the number of chunks indexed for a namespace
func (h *MemoryDBHandler) CountChunks(namespace string) (int64, error) {
	var count int64
	err := h.db.Instance.QueryRow(
		`SELECT count_memory_chunks($1)`,
		namespace,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}
