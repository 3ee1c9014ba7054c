package helper

import (
	"crypto/sha256"
	"encoding/hex"
)

// Namespace derives the vector store namespace for a book from its display
// name. The hash keeps the namespace stable across restarts and safe for
// arbitrary display name characters; renaming a book yields a fresh namespace
// without any lookup table.
func Namespace(bookName string) string {
	sum := sha256.Sum256([]byte(bookName))
	return "book_" + hex.EncodeToString(sum[:8])
}
