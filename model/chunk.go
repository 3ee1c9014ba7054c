package model

import "fmt"

// MemoryTag classifies a retrieved snippet for the condensation step
type MemoryTag string

const (
	// TagReference marks a snippet worth grounding the next chapter on
	TagReference MemoryTag = "reference"
	// TagSkipRecent marks a snippet from the recency window, likely redundant
	// with the outline and summary already in the prompt
	TagSkipRecent MemoryTag = "skip-recent"
)

// Chunk is a bounded window of chapter text prepared for vector indexing.
// Identity is (ChapterID, ChunkIndex); no separate ID allocator exists.
type Chunk struct {
	ChapterID  int       `json:"chapter_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Metadata   Metadata  `json:"metadata,omitempty"`
}

// ID returns the deterministic chunk ID used as the vector store key
func (c *Chunk) ID() string {
	return fmt.Sprintf("%d_%d", c.ChapterID, c.ChunkIndex)
}

// MemoryHit is one retrieved chunk with its ranking annotations
type MemoryHit struct {
	Text       string    `json:"text"`
	ChapterID  int       `json:"chapter_id"`
	ChunkIndex int       `json:"chunk_index"`
	Distance   float64   `json:"distance"`
	Valid      bool      `json:"valid"`
	Tag        MemoryTag `json:"tag,omitempty"`
}

// MemoryContext is the result of one retrieval pipeline invocation
type MemoryContext struct {
	Hits      []MemoryHit `json:"hits"`
	Condensed string      `json:"condensed"`
	Empty     bool        `json:"empty"`
}

// NoRelevantMemory is the sentinel text emitted when retrieval finds nothing,
// so downstream prompt assembly gets an explicit signal instead of ""
const NoRelevantMemory = "(no relevant memory)"
