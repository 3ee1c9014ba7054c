package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespace(t *testing.T) {
	t.Run("Stable across calls", func(t *testing.T) {
		first := Namespace("My Endless Serial")
		second := Namespace("My Endless Serial")
		assert.Equal(t, first, second, "Expected namespace to be stable for identical names")
	})

	t.Run("Different names yield different namespaces", func(t *testing.T) {
		a := Namespace("Book One")
		b := Namespace("Book Two")
		assert.NotEqual(t, a, b, "Expected distinct books to get distinct namespaces")
	})

	t.Run("Arbitrary characters are safe", func(t *testing.T) {
		ns := Namespace("星辰之海：第二部 (draft / v2)")
		assert.Regexp(t, `^book_[0-9a-f]{16}$`, ns, "Expected namespace to be a fixed-shape identifier")
	})

	t.Run("Empty name still produces a namespace", func(t *testing.T) {
		ns := Namespace("")
		assert.Regexp(t, `^book_[0-9a-f]{16}$`, ns)
	})
}
