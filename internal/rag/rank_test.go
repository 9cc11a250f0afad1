package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerank(t *testing.T) {
	t.Run("drops passages under min score", func(t *testing.T) {
		passages := []Passage{
			{ID: "keep", Content: "relevant text", Score: 0.8},
			{ID: "drop", Content: "noise", Score: 0.1},
		}
		got := Rerank("anything", passages, 0.30, 5)
		require.Len(t, got, 1)
		assert.Equal(t, "keep", got[0].ID)
	})

	t.Run("keyword hit breaks a tie", func(t *testing.T) {
		passages := []Passage{
			{ID: "plain", Content: "totally unrelated words", Score: 0.50},
			{ID: "match", Content: "how to run a kubernetes upgrade", Score: 0.50},
		}
		got := Rerank("kubernetes upgrade steps", passages, 0.30, 5)
		require.Len(t, got, 2)
		assert.Equal(t, "match", got[0].ID)
	})

	t.Run("truncates to topK", func(t *testing.T) {
		var passages []Passage
		for i := 0; i < 8; i++ {
			passages = append(passages, Passage{ID: string(rune('a' + i)), Content: "x", Score: 0.9})
		}
		got := Rerank("q", passages, 0.30, 5)
		assert.Len(t, got, 5)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Rerank("q", nil, 0.30, 5))
	})
}

func TestFitBudget(t *testing.T) {
	passage := func(id string, chars int) Passage {
		return Passage{ID: id, Content: strings.Repeat("x", chars)}
	}

	t.Run("stops when budget is spent", func(t *testing.T) {
		passages := []Passage{passage("a", 200), passage("b", 200), passage("c", 200)}
		got := FitBudget(passages, 100) // 50 tokens each
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
	})

	t.Run("first passage always survives", func(t *testing.T) {
		got := FitBudget([]Passage{passage("big", 4000)}, 100)
		require.Len(t, got, 1)
		assert.Equal(t, "big", got[0].ID)
	})

	t.Run("zero budget means unlimited", func(t *testing.T) {
		passages := []Passage{passage("a", 400), passage("b", 400)}
		assert.Len(t, FitBudget(passages, 0), 2)
	})
}

func TestBuildContext(t *testing.T) {
	got := BuildContext([]Passage{{Content: "one"}, {Content: "two"}})
	assert.Equal(t, "\n---\none\n---\ntwo\n---", got)
	assert.Equal(t, "", BuildContext(nil))
}

func TestUserPrompt(t *testing.T) {
	got := UserPrompt("why?", "\n---\nctx\n---")
	assert.Contains(t, got, "Question: why?")
	assert.Contains(t, got, "ctx")
	assert.True(t, strings.HasSuffix(got, "Answer:"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestOverfetchLimit(t *testing.T) {
	assert.Equal(t, 20, OverfetchLimit(5))
	assert.Equal(t, 10, OverfetchLimit(1))
	assert.Equal(t, 20, OverfetchLimit(0))
	assert.Equal(t, 40, OverfetchLimit(10))
}
