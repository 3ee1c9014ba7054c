package pipeline

import (
	"fmt"

	"github.com/nvollmer/fabula/model"
)

// WindowChunker creates a chunker that slides a fixed-size window over the
// text, stepping by chunkSize-overlap characters. A trailing window shorter
// than minLength is dropped so near-empty fragments never pollute similarity
// rankings. Sizes are counted in runes, not bytes, so multi-byte scripts
// chunk by character.
func WindowChunker(chunkSize int, overlap int, minLength int) ChunkFunc {
	return func(text string, chapterID int) ([]model.Chunk, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if overlap < 0 || overlap >= chunkSize {
			return nil, fmt.Errorf("overlap must be in [0, chunk size)")
		}

		runes := []rune(text)
		step := chunkSize - overlap

		chunks := []model.Chunk{}
		chunkIdx := 0
		for start := 0; start < len(runes); start += step {
			end := start + chunkSize
			if end > len(runes) {
				end = len(runes)
			}

			window := runes[start:end]
			if len(window) <= minLength {
				continue
			}

			chunks = append(chunks, model.Chunk{
				ChapterID:  chapterID,
				ChunkIndex: chunkIdx,
				Text:       string(window),
				Metadata: model.Metadata{
					"chapter_id":  chapterID,
					"chunk_index": chunkIdx,
				},
			})
			chunkIdx++
		}

		return chunks, nil
	}
}
