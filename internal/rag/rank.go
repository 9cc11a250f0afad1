package rag

import (
	"math"
	"sort"
	"strings"
)

const (
	DefaultTopK     = 5
	DefaultMinScore = 0.30

	// keywordBoost keeps the lexical signal a tiebreaker, not a ranker.
	keywordBoost = 0.05
)

// Passage is one retrieval candidate. ID is opaque to this package;
// callers use it to map winners back to their chunks.
type Passage struct {
	ID      string
	Content string
	Score   float64
}

// OverfetchLimit is how many rows the vector query should return so
// that threshold filtering and re-ranking still leave topK survivors.
func OverfetchLimit(topK int) int {
	if topK <= 0 {
		topK = DefaultTopK
	}
	n := 4 * topK
	if n < 10 {
		n = 10
	}
	return n
}

// Rerank drops passages under minScore, nudges the rest for literal
// keyword hits from the question, and returns the best topK in
// descending score order.
func Rerank(question string, passages []Passage, minScore float64, topK int) []Passage {
	if topK <= 0 {
		topK = DefaultTopK
	}

	keywords := keywordSet(question)
	kept := make([]Passage, 0, len(passages))
	for _, p := range passages {
		if p.Score < minScore {
			continue
		}
		p.Score += keywordBoost * overlapRatio(keywords, p.Content)
		kept = append(kept, p)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}

// FitBudget keeps passages in order until the token budget is spent.
// The first passage always survives so one oversized chunk cannot
// leave the prompt without context.
func FitBudget(passages []Passage, budget int) []Passage {
	if budget <= 0 || len(passages) == 0 {
		return passages
	}
	var out []Passage
	used := 0
	for i, p := range passages {
		cost := EstimateTokens(p.Content)
		if i > 0 && used+cost > budget {
			break
		}
		out = append(out, p)
		used += cost
	}
	return out
}

// BuildContext joins passages into the delimited block the prompt
// template expects.
func BuildContext(passages []Passage) string {
	if len(passages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range passages {
		b.WriteString("\n---\n")
		b.WriteString(p.Content)
	}
	b.WriteString("\n---")
	return b.String()
}

const SystemPrompt = "You are a helpful assistant. Answer the user's question based only on the following context. If the context does not contain enough information, say so. Do not make up facts."

func UserPrompt(question, contextBlock string) string {
	return "Context:" + contextBlock + "\n\nQuestion: " + question + "\n\nAnswer:"
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func keywordSet(question string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) < 3 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func overlapRatio(keywords map[string]struct{}, content string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lc := strings.ToLower(content)
	hits := 0
	for w := range keywords {
		if strings.Contains(lc, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
