package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/nvollmer/fabula"
	"github.com/nvollmer/fabula/helper"
	"github.com/nvollmer/fabula/model"
)

// Ingests a whole plain-text book into the memory index. Chapters are split
// on "Chapter N" headings; each chapter is indexed and added to the manifest.
//
// Usage:
//
//	go run ./example/ingest -file book.txt -name "My Book" -dir ./books/my-book
var chapterHeading = regexp.MustCompile(`(?m)^\s*Chapter\s+(\d+)\b.*$`)

func main() {
	filePath := flag.String("file", "", "path to the plain-text book")
	bookName := flag.String("name", "Ingested Book", "book name (determines the namespace)")
	bookDir := flag.String("dir", "./books/ingested", "book directory for texts and entities")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("missing -file")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	chapters := splitChapters(string(raw))
	if len(chapters) == 0 {
		log.Fatal("No chapter headings found")
	}
	fmt.Printf("Found %d chapters\n", len(chapters))

	// A disposable container keeps the example self contained; point
	// DatabaseConfiguration at a real instance for actual use.
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "test_database",
		Username: "test_user",
		Password: "test_password",
		Schema:   "public",
	}

	f, err := fabula.NewFabula(*bookName, *bookDir, dbConfig)
	if err != nil {
		log.Fatalf("Failed to open book: %v", err)
	}
	defer f.Close()

	if err := f.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	start := time.Now()
	manifest := make([]*model.Chapter, 0, len(chapters))
	totalChunks := 0

	for _, chapter := range chapters {
		count, err := f.SaveChapter(chapter.id, chapter.text)
		if err != nil {
			log.Fatalf("Failed to index chapter %d: %v", chapter.id, err)
		}
		totalChunks += count

		manifest = append(manifest, &model.Chapter{
			ID:       chapter.id,
			Title:    chapter.title,
			TimeInfo: model.UnknownTimeInfo(),
		})
	}

	if err := f.Store.SaveStructure(manifest); err != nil {
		log.Fatalf("Failed to save manifest: %v", err)
	}

	words, err := f.TotalWordCount()
	if err != nil {
		log.Fatalf("Failed to count words: %v", err)
	}

	fmt.Printf("Indexed %d chunks from %d characters in %s\n",
		totalChunks, words, time.Since(start).Round(time.Millisecond))

	// Sanity query against the freshly built index
	memory, err := f.AssembleMemory(context.Background(), "the opening of the story", len(chapters)+1)
	if err != nil {
		log.Fatalf("Failed to assemble memory: %v", err)
	}
	fmt.Println("\nSample retrieval:")
	fmt.Println(memory.Condensed)
}

type rawChapter struct {
	id    int
	title string
	text  string
}

func splitChapters(text string) []rawChapter {
	headings := chapterHeading.FindAllStringSubmatchIndex(text, -1)
	chapters := make([]rawChapter, 0, len(headings))

	for i, match := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}

		title := strings.TrimSpace(text[match[0]:match[1]])
		body := strings.TrimSpace(text[match[1]:end])
		if body == "" {
			continue
		}

		chapters = append(chapters, rawChapter{
			id:    i + 1,
			title: title,
			text:  body,
		})
	}

	return chapters
}
