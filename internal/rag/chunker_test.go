package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextParagraph(t *testing.T) {
	t.Run("merges small paragraphs under size", func(t *testing.T) {
		got := ChunkText("alpha beta.\n\ngamma delta.", ChunkOptions{Strategy: StrategyParagraph, Size: 30})
		require.Len(t, got, 1)
		assert.Equal(t, "alpha beta.\n\ngamma delta.", got[0].Content)
		assert.Equal(t, 0, got[0].Index)
	})

	t.Run("splits when merge would overflow", func(t *testing.T) {
		got := ChunkText("alpha beta.\n\ngamma delta.", ChunkOptions{Strategy: StrategyParagraph, Size: 20})
		require.Len(t, got, 2)
		assert.Equal(t, "alpha beta.", got[0].Content)
		assert.Equal(t, "gamma delta.", got[1].Content)
	})

	t.Run("oversized paragraph falls back to sentences", func(t *testing.T) {
		text := "one two three. four five six. seven eight."
		got := ChunkText(text, ChunkOptions{Strategy: StrategyParagraph, Size: 20})
		require.Len(t, got, 3)
		assert.Equal(t, "one two three.", got[0].Content)
		assert.Equal(t, "four five six.", got[1].Content)
		assert.Equal(t, "seven eight.", got[2].Content)
	})

	t.Run("indexes are sequential", func(t *testing.T) {
		got := ChunkText("a.\n\nb.\n\nc.", ChunkOptions{Strategy: StrategyParagraph, Size: 2})
		require.Len(t, got, 3)
		for i, c := range got {
			assert.Equal(t, i, c.Index)
		}
	})
}

func TestChunkTextSentence(t *testing.T) {
	got := ChunkText("First sentence here. Second one. Third.", ChunkOptions{Strategy: StrategySentence, Size: 25})
	require.Len(t, got, 2)
	assert.Equal(t, "First sentence here.", got[0].Content)
	assert.Equal(t, "Second one. Third.", got[1].Content)
}

func TestChunkTextHardSplit(t *testing.T) {
	// No sentence boundaries at all, so rune windows take over.
	text := strings.Repeat("a", 25)
	got := ChunkText(text, ChunkOptions{Strategy: StrategySentence, Size: 10, Overlap: 3})
	require.Len(t, got, 4)
	assert.Equal(t, strings.Repeat("a", 10), got[0].Content)
	assert.Equal(t, strings.Repeat("a", 4), got[3].Content)
	for _, c := range got {
		assert.LessOrEqual(t, len(c.Content), 10)
	}
}

func TestChunkTextWindow(t *testing.T) {
	text := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10"
	got := ChunkText(text, ChunkOptions{Strategy: StrategyWindow, Size: 4, Overlap: 1})
	require.Len(t, got, 3)
	assert.Equal(t, "w1 w2 w3 w4", got[0].Content)
	assert.Equal(t, "w4 w5 w6 w7", got[1].Content)
	assert.Equal(t, "w7 w8 w9 w10", got[2].Content)
}

func TestChunkTextEdgeCases(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, ChunkText("   \n\n  ", ChunkOptions{}))
	})

	t.Run("defaults applied", func(t *testing.T) {
		got := ChunkText("hello", ChunkOptions{})
		require.Len(t, got, 1)
		assert.Equal(t, "hello", got[0].Content)
		assert.Equal(t, 1, got[0].TokenCount)
	})

	t.Run("overlap clamped below size", func(t *testing.T) {
		got := ChunkText(strings.Repeat("b", 30), ChunkOptions{Strategy: StrategySentence, Size: 10, Overlap: 50})
		require.NotEmpty(t, got)
		for _, c := range got {
			assert.LessOrEqual(t, len(c.Content), 10)
		}
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 100, EstimateTokens(strings.Repeat("x", 400)))
}
