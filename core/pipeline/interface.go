package pipeline

import (
	"context"

	"github.com/nvollmer/fabula/model"
)

// ChunkFunc is a function that splits chapter text into indexable chunks.
// Chunk indices are assigned in emission order and must be deterministic for
// identical input, since (chapter_id, chunk_index) is the chunk identity.
type ChunkFunc func(text string, chapterID int) ([]model.Chunk, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// CondenseFunc condenses tagged memory snippets into a single prose passage.
// It wraps an external summarization call; the instruction tells it to ignore
// skip-recent snippets and merge duplicated facts.
type CondenseFunc func(ctx context.Context, instruction string, snippets []string) (string, error)

// Pipeline combines chunking and embedding functions
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder EmbedFunc
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Process splits chapter text into chunks and embeds each of them
func (p *Pipeline) Process(text string, chapterID int) ([]model.Chunk, error) {
	chunks, err := p.Chunker(text, chapterID)
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		embedding, err := p.Embedder(chunks[i].Text)
		if err != nil {
			return nil, err
		}
		chunks[i].Embedding = embedding
	}

	return chunks, nil
}
