package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvollmer/fabula/model"
)

func testChunk(chapterID, chunkIndex int, text string, embedding []float32) *model.Chunk {
	return &model.Chunk{
		ChapterID:  chapterID,
		ChunkIndex: chunkIndex,
		Text:       text,
		Embedding:  embedding,
		Metadata:   model.Metadata{},
	}
}

func TestNewMemoryDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewMemoryDBHandler", func(t *testing.T) {
		memoryDbHandler, err := NewMemoryDBHandler(database, 3, true)
		assert.NoError(t, err, "Expected NewMemoryDBHandler to not return an error")
		require.NotNil(t, memoryDbHandler, "Expected NewMemoryDBHandler to return a non-nil instance")
		require.NotNil(t, memoryDbHandler.db, "Expected NewMemoryDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewMemoryDBHandler with nil database", func(t *testing.T) {
		_, err := NewMemoryDBHandler(nil, 3, false)
		assert.Error(t, err, "Expected error when creating MemoryDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestMemoryInsertAndCount(t *testing.T) {
	database := initDB(t)

	handler, err := NewMemoryDBHandler(database, 3, true)
	require.NoError(t, err)

	namespace := "book_insertcount"

	t.Run("Insert chunk", func(t *testing.T) {
		err := handler.InsertChunk(namespace, testChunk(1, 0, "The hermit left the valley.", []float32{1, 0, 0}))
		assert.NoError(t, err, "Expected InsertChunk to not return an error")

		count, err := handler.CountChunks(namespace)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Re-inserting the same identity does not duplicate", func(t *testing.T) {
		err := handler.InsertChunk(namespace, testChunk(1, 0, "The hermit left the valley at dawn.", []float32{0.9, 0.1, 0}))
		assert.NoError(t, err)

		count, err := handler.CountChunks(namespace)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "Expected upsert by (chapter, index) identity, not a second row")
	})

	t.Run("Empty namespace counts zero", func(t *testing.T) {
		count, err := handler.CountChunks("book_never_used")
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestMemoryUpsertChapter(t *testing.T) {
	database := initDB(t)

	handler, err := NewMemoryDBHandler(database, 3, true)
	require.NoError(t, err)

	namespace := "book_upsertchapter"

	t.Run("Upsert indexes all chunks", func(t *testing.T) {
		count, err := handler.UpsertChapter(namespace, 1, []model.Chunk{
			*testChunk(1, 0, "first window", []float32{1, 0, 0}),
			*testChunk(1, 1, "second window", []float32{0, 1, 0}),
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Re-upsert replaces the chapter wholesale", func(t *testing.T) {
		count, err := handler.UpsertChapter(namespace, 1, []model.Chunk{
			*testChunk(1, 0, "rewritten, now a single window", []float32{0.5, 0.5, 0}),
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, count)

		total, err := handler.CountChunks(namespace)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total, "Expected old chunks to be gone")
	})

	t.Run("Upsert with no chunks clears the chapter", func(t *testing.T) {
		count, err := handler.UpsertChapter(namespace, 1, nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, count)

		total, err := handler.CountChunks(namespace)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestMemoryDeleteChapter(t *testing.T) {
	database := initDB(t)

	handler, err := NewMemoryDBHandler(database, 3, true)
	require.NoError(t, err)

	namespace := "book_delete"

	require.NoError(t, handler.InsertChunk(namespace, testChunk(1, 0, "chapter one, first window", []float32{1, 0, 0})))
	require.NoError(t, handler.InsertChunk(namespace, testChunk(1, 1, "chapter one, second window", []float32{0, 1, 0})))
	require.NoError(t, handler.InsertChunk(namespace, testChunk(2, 0, "chapter two", []float32{0, 0, 1})))

	t.Run("Delete removes only the chapter's chunks", func(t *testing.T) {
		deleted, err := handler.DeleteChapter(namespace, 1)
		assert.NoError(t, err)
		assert.Equal(t, 2, deleted)

		count, err := handler.CountChunks(namespace)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "Expected chapter 2 chunk to survive")
	})

	t.Run("Deleting a chapter with no chunks is a no-op", func(t *testing.T) {
		deleted, err := handler.DeleteChapter(namespace, 99)
		assert.NoError(t, err, "Expected no error for unindexed chapter")
		assert.Equal(t, 0, deleted)
	})
}

func TestMemorySimilaritySearch(t *testing.T) {
	database := initDB(t)

	handler, err := NewMemoryDBHandler(database, 3, true)
	require.NoError(t, err)

	namespace := "book_search"

	require.NoError(t, handler.InsertChunk(namespace, testChunk(1, 0, "sword forged in the north", []float32{1, 0, 0})))
	require.NoError(t, handler.InsertChunk(namespace, testChunk(2, 0, "the northern forge reopened", []float32{0.9, 0.1, 0})))
	require.NoError(t, handler.InsertChunk(namespace, testChunk(3, 0, "a feast in the capital", []float32{0, 0, 1})))

	t.Run("Nearest chunks come back in distance order", func(t *testing.T) {
		hits, err := handler.SelectChunksBySimilarity(namespace, []float32{1, 0, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)

		assert.Equal(t, 1, hits[0].ChapterID)
		assert.Equal(t, 2, hits[1].ChapterID)
		assert.Equal(t, 3, hits[2].ChapterID)
		assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
		assert.LessOrEqual(t, hits[1].Distance, hits[2].Distance)
	})

	t.Run("Exclusion filters the excluded chapter", func(t *testing.T) {
		exclude := 1
		hits, err := handler.SelectChunksBySimilarity(namespace, []float32{1, 0, 0}, 10, &exclude)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		for _, hit := range hits {
			assert.NotEqual(t, 1, hit.ChapterID, "Expected no hit from the excluded chapter")
		}
	})

	t.Run("Limit caps the result set", func(t *testing.T) {
		hits, err := handler.SelectChunksBySimilarity(namespace, []float32{1, 0, 0}, 1, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("Namespaces are isolated", func(t *testing.T) {
		hits, err := handler.SelectChunksBySimilarity("book_other", []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, hits, "Expected no hits from a foreign namespace")
	})
}

func TestMemoryChangeIndexType(t *testing.T) {
	database := initDB(t)

	handler, err := NewMemoryDBHandler(database, 3, true)
	require.NoError(t, err)

	t.Run("Switch to HNSW", func(t *testing.T) {
		err := handler.ChangeIndexType(t.Context(), "hnsw", map[string]interface{}{"m": 8})
		assert.NoError(t, err)
	})

	t.Run("Unsupported index type", func(t *testing.T) {
		err := handler.ChangeIndexType(t.Context(), "btree", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported index type")
	})
}
