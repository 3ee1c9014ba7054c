package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nvollmer/fabula"
	"github.com/nvollmer/fabula/helper"
)

const chapterOne = `Lin left River Town before sunrise. The ferryman refused his coin and
pointed upstream, where the ice had not yet broken. By midday he reached the foot of
Cold Pass and found the shrine his mother had described, half buried under old snow.
Inside lay the Frost Blade, wrapped in oilcloth, untouched for twenty years.`

const chapterTwo = `Master Su was waiting at the cottage above the pass. She looked at the
sword across Lin's back and said nothing for a long while. That night she told him about
the winter the blade was hidden, and why the smiths of River Town never speak of it.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "test_database",
		Username: "test_user",
		Password: "test_password",
		Schema:   "public",
	}

	f, err := fabula.NewFabula("Frost and Iron", "./books/frost-and-iron", dbConfig)
	if err != nil {
		log.Fatalf("Failed to open book: %v", err)
	}
	defer f.Close()

	// Set up the default pipeline (fixed-window chunking + embeddings)
	if err := f.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	// Index two chapters
	for id, content := range map[int]string{1: chapterOne, 2: chapterTwo} {
		count, err := f.SaveChapter(id, content)
		if err != nil {
			log.Fatalf("Failed to save chapter %d: %v", id, err)
		}
		fmt.Printf("Indexed chapter %d into %d chunks\n", id, count)
	}

	// Record the entities the chapters introduced
	result, err := f.ApplyChangeset([]byte(`{
		"new_chars": [
			{"name": "Lin", "role": "protagonist", "status": "alive"},
			{"name": "Master Su", "role": "mentor", "status": "alive"}
		],
		"new_items": [{"name": "Frost Blade", "type": "weapon", "owner": "Lin"}],
		"new_locs": [{"name": "River Town"}, {"name": "Cold Pass"}],
		"relation_updates": [{"source": "Lin", "target": "Master Su", "type": "student"}],
		"loc_connections": [{"source": "River Town", "target": "Cold Pass"}]
	}`))
	if err != nil {
		log.Fatalf("Failed to apply changeset: %v", err)
	}
	fmt.Println("\nChangelog:")
	for _, line := range result.Changelog {
		fmt.Println("  " + line)
	}

	// Retrieve memory for writing chapter 10
	memory, err := f.AssembleMemory(context.Background(), "Lin and the Frost Blade", 10)
	if err != nil {
		log.Fatalf("Failed to assemble memory: %v", err)
	}
	fmt.Println("\nMemory for chapter 10:")
	fmt.Println(memory.Condensed)

	// Inspect the world around Lin
	neighborhood, err := f.WorldNeighborhood("Lin", 2)
	if err != nil {
		log.Fatalf("Failed to query neighborhood: %v", err)
	}
	fmt.Println("\nWorld around Lin:")
	fmt.Println(neighborhood)

	path, err := f.WorldShortestPath("River Town", "Cold Pass")
	if err != nil {
		log.Fatalf("Failed to query path: %v", err)
	}
	fmt.Println("\nRoute: " + path)

	fmt.Println("\n" + strings.Repeat("-", 40))
	fmt.Println("Done.")
}
