package rag

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100

	StrategyParagraph = "paragraph"
	StrategySentence  = "sentence"
	StrategyWindow    = "window"
)

type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

// ChunkOptions selects the split strategy. Size and Overlap are
// measured in runes for paragraph and sentence chunks, and in
// whitespace tokens for window chunks.
type ChunkOptions struct {
	Strategy string
	Size     int
	Overlap  int
}

// ChunkText splits text into retrieval units. Paragraph mode merges
// adjacent paragraphs up to Size; oversized paragraphs fall back to
// sentence packing, and a sentence that still exceeds Size is cut into
// overlapping rune windows.
func ChunkText(text string, opts ChunkOptions) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	size := opts.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := opts.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	var parts []string
	switch opts.Strategy {
	case StrategySentence:
		parts = packSentences(text, size, overlap)
	case StrategyWindow:
		parts = slideWindow(text, size, overlap)
	default:
		parts = mergeParagraphs(text, size, overlap)
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Content:    p,
			TokenCount: EstimateTokens(p),
		})
	}
	return chunks
}

// EstimateTokens approximates the model tokenizer at roughly four
// characters per token. Close enough for budget packing.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	t := n / 4
	if t < 1 {
		t = 1
	}
	return t
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

func mergeParagraphs(text string, size, overlap int) []string {
	var out []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		plen := utf8.RuneCountInString(p)
		if plen > size {
			flush()
			out = append(out, packSentences(p, size, overlap)...)
			continue
		}
		if curLen > 0 && curLen+2+plen > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(p)
		curLen += plen
	}
	flush()
	return out
}

func packSentences(text string, size, overlap int) []string {
	var out []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, s := range splitSentences(text) {
		slen := utf8.RuneCountInString(s)
		if slen > size {
			flush()
			out = append(out, hardSplit(s, size, overlap)...)
			continue
		}
		if curLen > 0 && curLen+1+slen > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(s)
		curLen += slen
	}
	flush()
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var cur []rune

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur = append(cur, r)
		boundary := false
		switch r {
		case '\n':
			boundary = true
		case '.', '!', '?':
			// Only at a word edge, so 3.14 stays together.
			boundary = i+1 >= len(runes) || unicode.IsSpace(runes[i+1])
		}
		if boundary {
			if s := strings.TrimSpace(string(cur)); s != "" {
				sentences = append(sentences, s)
			}
			cur = cur[:0]
		}
	}
	if s := strings.TrimSpace(string(cur)); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// hardSplit cuts text into overlapping rune windows. Last resort for
// text with no usable boundaries.
func hardSplit(text string, size, overlap int) []string {
	var out []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end >= len(runes) {
			out = append(out, string(runes[i:]))
			break
		}
		out = append(out, string(runes[i:end]))
		i = end - overlap
	}
	return out
}

func slideWindow(text string, size, overlap int) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(tokens); {
		end := i + size
		if end >= len(tokens) {
			out = append(out, strings.Join(tokens[i:], " "))
			break
		}
		out = append(out, strings.Join(tokens[i:end], " "))
		i = end - overlap
	}
	return out
}
