package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nvollmer/fabula/core/pipeline"
	"github.com/nvollmer/fabula/model"
)

// ChunkSearcher is the storage-side similarity search the engine runs on,
// implemented by database.MemoryDBHandler
type ChunkSearcher interface {
	SelectChunksBySimilarity(namespace string, embedding []float32, limit int, excludeChapterID *int) ([]*model.MemoryHit, error)
}

// ConfigSource serves immutable configuration snapshots
type ConfigSource interface {
	Snapshot() *model.Config
}

// CondenseInstruction is handed to the condensation step together with the
// tagged snippets
const CondenseInstruction = "Select the background facts that matter for the upcoming chapter. " +
	"Ignore snippets tagged [SKIP-RECENT], merge duplicated facts, and write one concise prose passage."

// Engine assembles grounding memory for chapter generation: similarity query,
// recency tagging, and handoff to an external condensation step
type Engine struct {
	namespace string
	searcher  ChunkSearcher
	embedder  pipeline.EmbedFunc
	condenser pipeline.CondenseFunc
	config    ConfigSource
	log       *slog.Logger
}

// NewEngine creates a retrieval engine for one book namespace
func NewEngine(namespace string, searcher ChunkSearcher, embedder pipeline.EmbedFunc, config ConfigSource, logger *slog.Logger) *Engine {
	return &Engine{
		namespace: namespace,
		searcher:  searcher,
		embedder:  embedder,
		config:    config,
		log:       logger,
	}
}

// SetCondenser sets the external condensation step. Without one, AssembleMemory
// returns the tagged snippet block verbatim.
func (e *Engine) SetCondenser(condenser pipeline.CondenseFunc) {
	e.condenser = condenser
}

// Query returns up to TopK nearest chunks for the query text, each annotated
// with a valid flag (distance below the configured threshold). The current
// chapter is excluded when excludeChapterID is non-nil. A broken or empty
// index degrades to an empty result instead of an error, so generation is
// never blocked by retrieval.
func (e *Engine) Query(ctx context.Context, text string, excludeChapterID *int) []model.MemoryHit {
	config := e.config.Snapshot()

	if e.embedder == nil {
		e.log.Warn("Memory query degraded: no embedder set")
		return nil
	}

	embedding, err := e.embedder(text)
	if err != nil {
		e.log.Warn("Memory query degraded: embedding failed", slog.String("error", err.Error()))
		return nil
	}

	rawHits, err := e.searcher.SelectChunksBySimilarity(e.namespace, embedding, config.TopK, excludeChapterID)
	if err != nil {
		e.log.Warn("Memory query degraded: similarity search failed", slog.String("error", err.Error()))
		return nil
	}

	hits := make([]model.MemoryHit, 0, len(rawHits))
	for _, hit := range rawHits {
		hit.Valid = hit.Distance < config.DistanceThreshold
		hits = append(hits, *hit)
	}

	return hits
}

// AssembleMemory runs one retrieval pipeline invocation for the chapter
// currently being written: query with the current chapter excluded, tag each
// hit by recency, and hand the tagged snippets to the condensation step.
// When nothing valid is found it emits the no-relevant-memory sentinel so
// downstream prompt assembly gets an explicit signal.
func (e *Engine) AssembleMemory(ctx context.Context, query string, currentChapterID int) (*model.MemoryContext, error) {
	config := e.config.Snapshot()

	exclude := currentChapterID
	hits := e.Query(ctx, query, &exclude)

	validCount := 0
	for i := range hits {
		distanceInChapters := currentChapterID - hits[i].ChapterID
		if distanceInChapters >= 1 && distanceInChapters <= config.RecencyWindow {
			hits[i].Tag = model.TagSkipRecent
		} else {
			hits[i].Tag = model.TagReference
		}
		if hits[i].Valid {
			validCount++
		}
	}

	if validCount == 0 {
		return &model.MemoryContext{
			Hits:      hits,
			Condensed: model.NoRelevantMemory,
			Empty:     true,
		}, nil
	}

	snippets := make([]string, 0, len(hits))
	for _, hit := range hits {
		prefix := "[REF]"
		if hit.Tag == model.TagSkipRecent {
			prefix = "[SKIP-RECENT]"
		}
		snippets = append(snippets, fmt.Sprintf("%s (chapter %d): %s", prefix, hit.ChapterID, hit.Text))
	}

	condensed := strings.Join(snippets, "\n\n")
	if e.condenser != nil {
		result, err := e.condenser(ctx, CondenseInstruction, snippets)
		if err != nil {
			return nil, err
		}
		condensed = result
	}

	e.log.Debug("Assembled memory",
		slog.Int("current_chapter", currentChapterID),
		slog.Int("hits", len(hits)),
		slog.Int("valid", validCount))

	return &model.MemoryContext{
		Hits:      hits,
		Condensed: condensed,
	}, nil
}
