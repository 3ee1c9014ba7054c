package fabula

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nvollmer/fabula/config"
	"github.com/nvollmer/fabula/core/graph"
	"github.com/nvollmer/fabula/core/pipeline"
	"github.com/nvollmer/fabula/core/reconcile"
	"github.com/nvollmer/fabula/core/retrieval"
	"github.com/nvollmer/fabula/database"
	"github.com/nvollmer/fabula/helper"
	"github.com/nvollmer/fabula/model"
	loadSql "github.com/nvollmer/fabula/sql"
	"github.com/nvollmer/fabula/store"
)

// Fabula is the narrative memory subsystem for one book: chapter texts and
// entity records on disk, chunk embeddings in Postgres under the book's
// namespace, and retrieval, world graph and reconciliation on top.
type Fabula struct {
	DB         *helper.Database
	Memory     *database.MemoryDBHandler
	Store      *store.Store
	Config     *config.Provider
	Pipeline   *pipeline.Pipeline // Optional chunking pipeline
	Engine     *retrieval.Engine  // Retrieval engine scoped to this book
	Reconciler *reconcile.Reconciler

	bookName  string
	namespace string
	// Logging
	log *slog.Logger
}

// NewFabula opens the book directory and the shared vector index for one
// book. The book name determines the namespace, so the same name always
// reaches the same chunks.
func NewFabula(bookName string, baseDir string, dbConfig *helper.DatabaseConfiguration) (*Fabula, error) {
	if bookName == "" {
		return nil, helper.NewError("open book", fmt.Errorf("book name is empty"))
	}

	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	provider := config.NewProvider(logger)

	// Initialize database
	db := helper.NewDatabase("fabula", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	memory, err := database.NewMemoryDBHandler(db, provider.Snapshot().EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create memory handler", err)
	}

	bookStore, err := store.NewStore(baseDir, logger)
	if err != nil {
		return nil, helper.NewError("open book store", err)
	}

	namespace := helper.Namespace(bookName)
	engine := retrieval.NewEngine(namespace, memory, nil, provider, logger)

	f := &Fabula{
		DB:         db,
		Memory:     memory,
		Store:      bookStore,
		Config:     provider,
		Engine:     engine,
		Reconciler: reconcile.NewReconciler(bookStore, logger),
		bookName:   bookName,
		namespace:  namespace,
		log:        logger,
	}

	logger.Info("Opened book", slog.String("book", bookName), slog.String("namespace", namespace))

	return f, nil
}

// Close closes the database connection
func (f *Fabula) Close() error {
	if f.DB != nil && f.DB.Instance != nil {
		return f.DB.Instance.Close()
	}
	return nil
}

// Namespace returns the book's vector index namespace
func (f *Fabula) Namespace() string {
	return f.namespace
}

// SetPipeline sets the chunking pipeline for chapter indexing. The pipeline's
// embedder is also used for query embedding.
func (f *Fabula) SetPipeline(p *pipeline.Pipeline) {
	f.Pipeline = p
	f.Engine = retrieval.NewEngine(f.namespace, f.Memory, p.Embedder, f.Config, f.log)
}

// UseDefaultPipeline sets up the default fixed-window chunking and embedding
// pipeline. Window parameters come from the current configuration snapshot;
// embedding uses the all-MiniLM-L6-v2 model (384 dimensions).
func (f *Fabula) UseDefaultPipeline() error {
	cfg := f.Config.Snapshot()
	chunker := pipeline.WindowChunker(cfg.ChunkSize, cfg.Overlap, cfg.MinChunkLength)
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	f.SetPipeline(pipeline.NewPipeline(chunker, embedder))
	return nil
}

// SetCondenser installs the condensation step applied to retrieved memory
func (f *Fabula) SetCondenser(condenser pipeline.CondenseFunc) {
	f.Engine.SetCondenser(condenser)
}

// SaveChapter persists a chapter's text and reindexes it: the chapter's old
// chunks are removed from the namespace and the new ones inserted, so the
// index never holds chunks of two versions of the same chapter.
// Returns the number of chunks indexed.
func (f *Fabula) SaveChapter(chapterID int, content string) (int, error) {
	if f.Pipeline == nil {
		return 0, helper.NewError("save chapter", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	if err := f.Store.SaveChapterContent(chapterID, content); err != nil {
		return 0, helper.NewError("save chapter content", err)
	}

	chunks, err := f.Pipeline.Process(content, chapterID)
	if err != nil {
		return 0, helper.NewError("process chapter", err)
	}

	count, err := f.Memory.UpsertChapter(f.namespace, chapterID, chunks)
	if err != nil {
		return count, helper.NewError("index chapter", err)
	}

	f.log.Info("Indexed chapter",
		slog.Int("chapter_id", chapterID),
		slog.Int("chunks", count))

	return count, nil
}

// RemoveChapter deletes a chapter completely: its manifest entry, its text
// and all of its chunks in the index
func (f *Fabula) RemoveChapter(chapterID int) error {
	chapters, err := f.Store.LoadStructure()
	if err != nil {
		return helper.NewError("load chapter manifest", err)
	}

	kept := make([]*model.Chapter, 0, len(chapters))
	for _, chapter := range chapters {
		if chapter.ID != chapterID {
			kept = append(kept, chapter)
		}
	}
	if len(kept) < len(chapters) {
		if err := f.Store.SaveStructure(kept); err != nil {
			return helper.NewError("save chapter manifest", err)
		}
	}

	if err := f.Store.DeleteChapterContent(chapterID); err != nil {
		return helper.NewError("delete chapter content", err)
	}

	if _, err := f.Memory.DeleteChapter(f.namespace, chapterID); err != nil {
		return helper.NewError("delete chapter chunks", err)
	}

	return nil
}

// AssembleMemory retrieves, tags and condenses memory relevant to the given
// query for generating the given chapter
func (f *Fabula) AssembleMemory(ctx context.Context, query string, currentChapterID int) (*model.MemoryContext, error) {
	return f.Engine.AssembleMemory(ctx, query, currentChapterID)
}

// worldGraph rebuilds the world graph from the persisted collections. The
// graph is stateless; every call sees the current collections.
func (f *Fabula) worldGraph() (*graph.WorldGraph, error) {
	characters, err := f.Store.LoadCharacters()
	if err != nil {
		return nil, helper.NewError("load characters", err)
	}
	items, err := f.Store.LoadItems()
	if err != nil {
		return nil, helper.NewError("load items", err)
	}
	locations, err := f.Store.LoadLocations()
	if err != nil {
		return nil, helper.NewError("load locations", err)
	}

	return graph.Build(characters, items, locations, f.Config.Snapshot().DescriptionLimit), nil
}

// WorldNeighborhood renders the relations within the given hop distance of an
// entity, one edge per line. Unknown entities yield an empty string.
func (f *Fabula) WorldNeighborhood(entityName string, hops int) (string, error) {
	g, err := f.worldGraph()
	if err != nil {
		return "", err
	}
	return g.Neighborhood(entityName, hops), nil
}

// WorldShortestPath renders the shortest directed path between two entities
func (f *Fabula) WorldShortestPath(from string, to string) (string, error) {
	g, err := f.worldGraph()
	if err != nil {
		return "", err
	}
	return g.ShortestPathString(from, to), nil
}

// ApplyChangeset parses an externally produced changeset and reconciles it
// into the entity collections
func (f *Fabula) ApplyChangeset(data []byte) (*reconcile.Result, error) {
	changeset, err := model.ParseChangeset(data)
	if err != nil {
		return nil, helper.NewError("parse changeset", err)
	}
	return f.Reconciler.Apply(changeset)
}

// ActiveEntityContext renders compact fact lines for every known entity whose
// name appears in the given text, for prompt assembly. Entities the text does
// not mention are left out.
func (f *Fabula) ActiveEntityContext(text string) (string, error) {
	characters, err := f.Store.LoadCharacters()
	if err != nil {
		return "", helper.NewError("load characters", err)
	}
	items, err := f.Store.LoadItems()
	if err != nil {
		return "", helper.NewError("load items", err)
	}
	locations, err := f.Store.LoadLocations()
	if err != nil {
		return "", helper.NewError("load locations", err)
	}

	var lines []string
	for _, character := range characters {
		if character.Name == "" || !strings.Contains(text, character.Name) {
			continue
		}
		line := fmt.Sprintf("%s (%s, %s)", character.Name, character.Role, character.Status)
		if len(character.Relations) > 0 {
			var relations []string
			for _, relation := range character.Relations {
				relations = append(relations, fmt.Sprintf("%s: %s", relation.Type, relation.Target))
			}
			line += " | " + strings.Join(relations, ", ")
		}
		lines = append(lines, line)
	}

	for _, item := range items {
		if item.Name == "" || !strings.Contains(text, item.Name) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s, owner: %s)", item.Name, item.Type, item.Owner))
	}

	for _, location := range locations {
		if location.Name == "" || !strings.Contains(text, location.Name) {
			continue
		}
		line := fmt.Sprintf("%s (%s)", location.Name, location.Faction)
		if len(location.Neighbors) > 0 {
			line += " | connects: " + strings.Join(location.Neighbors, ", ")
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n"), nil
}

// TotalWordCount sums the lengths of all chapter texts in the manifest
func (f *Fabula) TotalWordCount() (int, error) {
	return f.Store.TotalWordCount()
}

// CountChunks returns the number of indexed chunks in this book's namespace
func (f *Fabula) CountChunks() (int64, error) {
	return f.Memory.CountChunks(f.namespace)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (f *Fabula) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return f.Memory.ChangeIndexType(ctx, indexType, params)
}
