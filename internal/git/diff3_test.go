package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGit_mergeLines(t *testing.T) {
	base := "a\nb\nc\nd\ne\n"

	t.Run("success - edits on separate lines are combined", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines([]byte(base), []byte("A\nb\nc\nd\ne\n"), []byte("a\nb\nc\nd\nE\n"), "remote")

		// assert
		assert.False(t, conflicted)
		assert.Equal(t, "A\nb\nc\nd\nE\n", string(merged))
	})

	t.Run("success - insertions and deletions on both sides are combined", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines(
			[]byte(base),
			[]byte("start\na\nb\nc\nd\ne\n"),
			[]byte("a\nb\nd\ne\nend\n"),
			"remote",
		)

		// assert
		assert.False(t, conflicted)
		assert.Equal(t, "start\na\nb\nd\ne\nend\n", string(merged))
	})

	t.Run("success - one sided change is taken", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines([]byte(base), []byte(base), []byte("a\nB\nc\nd\ne\n"), "remote")

		// assert
		assert.False(t, conflicted)
		assert.Equal(t, "a\nB\nc\nd\ne\n", string(merged))
	})

	t.Run("success - identical edits are not a conflict", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines([]byte(base), []byte("a\nx\nc\nd\ne\n"), []byte("a\nx\nc\nd\ne\n"), "remote")

		// assert
		assert.False(t, conflicted)
		assert.Equal(t, "a\nx\nc\nd\ne\n", string(merged))
	})

	t.Run("success - missing final newline is preserved", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines([]byte("a\nb\nc"), []byte("A\nb\nc"), []byte("a\nb\nC"), "remote")

		// assert
		assert.False(t, conflicted)
		assert.Equal(t, "A\nb\nC", string(merged))
	})

	t.Run("failure - same line changed differently", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines([]byte(base), []byte("a\nb\nX\nd\ne\n"), []byte("a\nb\nY\nd\ne\n"), "remote")

		// assert
		assert.True(t, conflicted)
		assert.Equal(t, "a\nb\n<<<<<<< HEAD\nX\n=======\nY\n>>>>>>> remote\nd\ne\n", string(merged))
	})

	t.Run("failure - adjacent lines changed on both sides", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines([]byte(base), []byte("a\nB\nc\nd\ne\n"), []byte("a\nb\nC\nd\ne\n"), "remote")

		// assert
		assert.True(t, conflicted)
		assert.Equal(t, "a\n<<<<<<< HEAD\nB\nc\n=======\nb\nC\n>>>>>>> remote\nd\ne\n", string(merged))
	})

	t.Run("failure - both sides add different files", func(t *testing.T) {
		// act
		merged, conflicted := mergeLines(nil, []byte("ours\n"), []byte("theirs"), "remote")

		// assert
		assert.True(t, conflicted)
		assert.Equal(t, "<<<<<<< HEAD\nours\n=======\ntheirs\n>>>>>>> remote\n", string(merged))
	})
}

func TestGit_isBinary(t *testing.T) {
	t.Run("success - nul byte marks binary content", func(t *testing.T) {
		assert.True(t, isBinary([]byte("abc\x00def")))
		assert.False(t, isBinary([]byte("plain text\n")))
		assert.False(t, isBinary(nil))
	})
}
