package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed memory.sql
var memorySQL string

// MemoryFunctions lists the functions memory.sql must define, used for verification
var MemoryFunctions = []string{
	"init_memory",
	"insert_memory_chunk",
	"delete_memory_chunks_by_chapter",
	"select_memory_chunks_by_similarity",
	"count_memory_chunks",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadMemorySql loads memory-related SQL functions
func LoadMemorySql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, MemoryFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing memory functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(memorySQL)
	if err != nil {
		return fmt.Errorf("error executing memory SQL: %w", err)
	}

	exist, err := checkFunctions(db, MemoryFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
