package model

// Config holds the runtime parameters for chunking, retrieval and graph
// rendering. A Config value is treated as an immutable snapshot: reloading
// swaps the whole object, never mutates fields in place.
type Config struct {
	// Chunking parameters
	ChunkSize      int `json:"chunk_size"`
	Overlap        int `json:"overlap"`
	MinChunkLength int `json:"min_chunk_length"`

	// Retrieval parameters
	TopK              int     `json:"top_k"`
	DistanceThreshold float64 `json:"distance_threshold"`
	RecencyWindow     int     `json:"recency_window"`

	// Graph rendering parameters
	DescriptionLimit int `json:"description_limit"`

	// Embedding parameters
	EmbeddingDim int `json:"embedding_dim"`
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:         500,
		Overlap:           100,
		MinChunkLength:    50,
		TopK:              8,
		DistanceThreshold: 1.6,
		RecencyWindow:     3,
		DescriptionLimit:  50,
		EmbeddingDim:      384,
	}
}

// Normalize fills zero values with defaults and clamps invalid combinations,
// so a partially specified config file still yields a usable snapshot
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.Overlap < 0 {
		c.Overlap = def.Overlap
	}
	if c.Overlap >= c.ChunkSize {
		c.Overlap = c.ChunkSize / 2
	}
	if c.MinChunkLength <= 0 {
		c.MinChunkLength = def.MinChunkLength
	}
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.DistanceThreshold <= 0 {
		c.DistanceThreshold = def.DistanceThreshold
	}
	if c.RecencyWindow <= 0 {
		c.RecencyWindow = def.RecencyWindow
	}
	if c.DescriptionLimit <= 0 {
		c.DescriptionLimit = def.DescriptionLimit
	}
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = def.EmbeddingDim
	}
}
