package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvollmer/fabula/model"
)

type fakeSearcher struct {
	hits []*model.MemoryHit
	err  error

	lastLimit   int
	lastExclude *int
}

func (f *fakeSearcher) SelectChunksBySimilarity(namespace string, embedding []float32, limit int, excludeChapterID *int) ([]*model.MemoryHit, error) {
	f.lastLimit = limit
	f.lastExclude = excludeChapterID
	if f.err != nil {
		return nil, f.err
	}

	var out []*model.MemoryHit
	for _, hit := range f.hits {
		if excludeChapterID != nil && hit.ChapterID == *excludeChapterID {
			continue
		}
		copied := *hit
		out = append(out, &copied)
	}
	return out, nil
}

type fakeConfig struct {
	config *model.Config
}

func (f *fakeConfig) Snapshot() *model.Config {
	return f.config
}

func fakeEmbedder(text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestEngine(searcher ChunkSearcher) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine("book_test", searcher, fakeEmbedder, &fakeConfig{config: model.DefaultConfig()}, logger)
}

func TestEngineQuery(t *testing.T) {
	t.Run("Valid flag follows the distance threshold", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "near", ChapterID: 1, Distance: 0.4},
			{Text: "far", ChapterID: 2, Distance: 1.9},
		}}
		engine := newTestEngine(searcher)

		hits := engine.Query(context.Background(), "query", nil)

		require.Len(t, hits, 2)
		assert.True(t, hits[0].Valid, "Expected distance 0.4 to be below the 1.6 threshold")
		assert.False(t, hits[1].Valid, "Expected distance 1.9 to be above the 1.6 threshold")
	})

	t.Run("Requests the configured candidate set size", func(t *testing.T) {
		searcher := &fakeSearcher{}
		engine := newTestEngine(searcher)

		engine.Query(context.Background(), "query", nil)

		assert.Equal(t, 8, searcher.lastLimit, "Expected the oversized default candidate set")
	})

	t.Run("Exclusion is passed to the searcher", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "kept", ChapterID: 1, Distance: 0.2},
			{Text: "excluded", ChapterID: 3, Distance: 0.1},
		}}
		engine := newTestEngine(searcher)

		exclude := 3
		hits := engine.Query(context.Background(), "query", &exclude)

		require.NotNil(t, searcher.lastExclude)
		assert.Equal(t, 3, *searcher.lastExclude)
		for _, hit := range hits {
			assert.NotEqual(t, 3, hit.ChapterID, "Expected no hit from the excluded chapter")
		}
	})

	t.Run("Storage failure degrades to empty result", func(t *testing.T) {
		searcher := &fakeSearcher{err: fmt.Errorf("connection refused")}
		engine := newTestEngine(searcher)

		hits := engine.Query(context.Background(), "query", nil)

		assert.Empty(t, hits, "Expected a broken index to degrade, not to block")
	})

	t.Run("Embedding failure degrades to empty result", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		engine := NewEngine("book_test", &fakeSearcher{}, func(string) ([]float32, error) {
			return nil, fmt.Errorf("model not loaded")
		}, &fakeConfig{config: model.DefaultConfig()}, logger)

		hits := engine.Query(context.Background(), "query", nil)

		assert.Empty(t, hits)
	})
}

func TestEngineAssembleMemory(t *testing.T) {
	t.Run("Recency window tags skip-recent", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "fresh plot", ChapterID: 8, Distance: 0.3},
			{Text: "old foreshadowing", ChapterID: 4, Distance: 0.5},
		}}
		engine := newTestEngine(searcher)

		memory, err := engine.AssembleMemory(context.Background(), "outline", 10)

		require.NoError(t, err)
		require.Len(t, memory.Hits, 2)
		assert.Equal(t, model.TagSkipRecent, memory.Hits[0].Tag, "Expected chapter 8 to fall in the recency window for chapter 10")
		assert.Equal(t, model.TagReference, memory.Hits[1].Tag, "Expected chapter 4 to be tagged as reference")
	})

	t.Run("Current chapter itself is never skip-recent", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "future chapter text", ChapterID: 12, Distance: 0.3},
		}}
		engine := newTestEngine(searcher)

		memory, err := engine.AssembleMemory(context.Background(), "outline", 10)

		require.NoError(t, err)
		require.Len(t, memory.Hits, 1)
		assert.Equal(t, model.TagReference, memory.Hits[0].Tag, "Expected a later chapter to be tagged reference")
	})

	t.Run("No hits emits the sentinel", func(t *testing.T) {
		engine := newTestEngine(&fakeSearcher{})

		memory, err := engine.AssembleMemory(context.Background(), "outline", 10)

		require.NoError(t, err)
		assert.True(t, memory.Empty)
		assert.Equal(t, model.NoRelevantMemory, memory.Condensed, "Expected an explicit sentinel, not an empty string")
	})

	t.Run("Only invalid hits also emits the sentinel", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "noise", ChapterID: 2, Distance: 3.0},
		}}
		engine := newTestEngine(searcher)

		memory, err := engine.AssembleMemory(context.Background(), "outline", 10)

		require.NoError(t, err)
		assert.True(t, memory.Empty)
		assert.Equal(t, model.NoRelevantMemory, memory.Condensed)
	})

	t.Run("Condenser receives tagged snippets", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "recent event", ChapterID: 9, Distance: 0.3},
			{Text: "distant event", ChapterID: 1, Distance: 0.4},
		}}
		engine := newTestEngine(searcher)

		var gotInstruction string
		var gotSnippets []string
		engine.SetCondenser(func(ctx context.Context, instruction string, snippets []string) (string, error) {
			gotInstruction = instruction
			gotSnippets = snippets
			return "condensed passage", nil
		})

		memory, err := engine.AssembleMemory(context.Background(), "outline", 10)

		require.NoError(t, err)
		assert.Equal(t, "condensed passage", memory.Condensed)
		assert.Equal(t, CondenseInstruction, gotInstruction)
		require.Len(t, gotSnippets, 2)
		assert.Contains(t, gotSnippets[0], "[SKIP-RECENT] (chapter 9)")
		assert.Contains(t, gotSnippets[1], "[REF] (chapter 1)")
	})

	t.Run("Condenser failure is surfaced", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "event", ChapterID: 1, Distance: 0.4},
		}}
		engine := newTestEngine(searcher)
		engine.SetCondenser(func(ctx context.Context, instruction string, snippets []string) (string, error) {
			return "", fmt.Errorf("upstream timeout")
		})

		_, err := engine.AssembleMemory(context.Background(), "outline", 10)

		assert.Error(t, err)
	})

	t.Run("Without condenser the tagged block is returned", func(t *testing.T) {
		searcher := &fakeSearcher{hits: []*model.MemoryHit{
			{Text: "event", ChapterID: 1, Distance: 0.4},
		}}
		engine := newTestEngine(searcher)

		memory, err := engine.AssembleMemory(context.Background(), "outline", 10)

		require.NoError(t, err)
		assert.Contains(t, memory.Condensed, "[REF] (chapter 1): event")
	})
}
