package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nvollmer/fabula"
	"github.com/nvollmer/fabula/helper"
	"github.com/nvollmer/fabula/model"
)

// This example connects to an existing PostgreSQL instance configured through
// environment variables (DB_HOST, DB_PORT, DB_DATABASE, DB_USERNAME,
// DB_PASSWORD, optionally DB_SCHEMA), shows a custom condenser, runtime
// configuration changes and vector index tuning.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment as is")
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		log.Fatalf("Failed to read database configuration: %v", err)
	}

	f, err := fabula.NewFabula("The Long Thaw", "./books/the-long-thaw", dbConfig)
	if err != nil {
		log.Fatalf("Failed to open book: %v", err)
	}
	defer f.Close()

	if err := f.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	// A condenser merges the tagged snippets into one passage. In production
	// this wraps an LLM call; here we keep only the reference snippets.
	f.SetCondenser(func(ctx context.Context, instruction string, snippets []string) (string, error) {
		var kept []string
		for _, snippet := range snippets {
			if !strings.HasPrefix(snippet, "[SKIP-RECENT]") {
				kept = append(kept, snippet)
			}
		}
		if len(kept) == 0 {
			return model.NoRelevantMemory, nil
		}
		return strings.Join(kept, "\n"), nil
	})

	// Tighten retrieval at runtime: fewer hits, stricter distance cutoff.
	// Readers holding an older snapshot are unaffected.
	f.Config.Update(&model.Config{
		TopK:              4,
		DistanceThreshold: 1.2,
	})
	fmt.Printf("Retrieval config: top_k=%d threshold=%.1f\n",
		f.Config.Snapshot().TopK, f.Config.Snapshot().DistanceThreshold)

	ctx := context.Background()

	for id, content := range sampleChapters() {
		if _, err := f.SaveChapter(id, content); err != nil {
			log.Fatalf("Failed to save chapter %d: %v", id, err)
		}
	}

	// With chapters 1-5 indexed and chapter 6 being written, chapters 3-5
	// fall inside the recency window and arrive tagged skip-recent.
	memory, err := f.AssembleMemory(ctx, "the frozen harbor and the grain stores", 6)
	if err != nil {
		log.Fatalf("Failed to assemble memory: %v", err)
	}
	fmt.Println("\nCondensed memory for chapter 6:")
	fmt.Println(memory.Condensed)
	fmt.Printf("(%d hits retrieved)\n", len(memory.Hits))

	// Entity context for a draft paragraph
	entityContext, err := f.ActiveEntityContext("Captain Odde walked the harbor wall at dusk.")
	if err != nil {
		log.Fatalf("Failed to build entity context: %v", err)
	}
	if entityContext != "" {
		fmt.Println("\nActive entities:")
		fmt.Println(entityContext)
	}

	// Switch the vector index to HNSW once the namespace has grown
	count, err := f.CountChunks()
	if err != nil {
		log.Fatalf("Failed to count chunks: %v", err)
	}
	if count > 1000 {
		err = f.ChangeIndexType(ctx, "hnsw", map[string]interface{}{"m": 16, "ef_construction": 64})
		if err != nil {
			log.Fatalf("Failed to change index type: %v", err)
		}
		fmt.Println("\nSwitched vector index to HNSW")
	}

	total, err := f.TotalWordCount()
	if err != nil {
		log.Fatalf("Failed to count words: %v", err)
	}
	fmt.Printf("\nBook length: %d characters across all chapters\n", total)
}

func sampleChapters() map[int]string {
	base := map[int]string{
		1: "The harbor froze in a single night, and with it the last grain ships of the season. ",
		2: "Captain Odde ordered the stores sealed and the count taken twice. ",
		3: "Rumors of hoarding spread through the lower quarter before the week was out. ",
		4: "The council met behind closed doors while the harbor wall gathered ice. ",
		5: "By the fifth week the ration lines reached past the old customs house. ",
	}

	chapters := map[int]string{}
	for id, sentence := range base {
		chapters[id] = strings.Repeat(sentence, 12)
	}
	return chapters
}
