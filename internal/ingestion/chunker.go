// Package ingestion splits raw document content into indexable chunks.
package ingestion

import (
	"strings"
	"unicode"
)

// Config controls chunk sizing. Sizes are in words; CJK text counts runs of
// ideographs as words.
type Config struct {
	TargetWords int
	MaxWords    int
	Overlap     int
	Method      string // "sentence" or "fixed"
}

// Chunker splits document content into retrieval-sized chunks
type Chunker struct {
	config Config
}

// NewChunker creates a chunker, filling in defaults for unset fields
func NewChunker(config Config) *Chunker {
	if config.TargetWords <= 0 {
		config.TargetWords = 256
	}
	if config.MaxWords <= 0 {
		config.MaxWords = 512
	}
	if config.Overlap < 0 {
		config.Overlap = 30
	}
	if config.Method == "" {
		config.Method = "sentence"
	}
	return &Chunker{config: config}
}

// Chunk splits content into chunks using the configured method.
// Returns nil for empty content.
func (c *Chunker) Chunk(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	switch c.config.Method {
	case "fixed":
		return c.chunkFixed(content)
	default:
		return c.chunkSentence(content)
	}
}

// chunkFixed splits content into fixed-size word windows with overlap
func (c *Chunker) chunkFixed(content string) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	step := c.config.TargetWords - c.config.Overlap
	if step <= 0 {
		step = c.config.TargetWords/2 + 1
	}

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + c.config.TargetWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// chunkSentence groups sentences until the target size is reached, carrying
// trailing sentences into the next chunk as overlap
func (c *Chunker) chunkSentence(content string) []string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(strings.Join(current, " ")))
		current, currentWords = c.sentenceOverlap(current)
	}

	for _, sentence := range sentences {
		n := wordCount(sentence)

		// A single oversized sentence falls back to fixed windows
		if n > c.config.MaxWords {
			flush()
			current = nil
			currentWords = 0
			chunks = append(chunks, c.chunkFixed(sentence)...)
			continue
		}

		if currentWords+n > c.config.MaxWords && currentWords > 0 {
			flush()
		}

		current = append(current, sentence)
		currentWords += n

		if currentWords >= c.config.TargetWords {
			flush()
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.TrimSpace(strings.Join(current, " ")))
	}
	return chunks
}

// sentenceOverlap keeps trailing sentences up to the configured overlap
// word count.
func (c *Chunker) sentenceOverlap(sentences []string) ([]string, int) {
	if c.config.Overlap <= 0 || len(sentences) == 0 {
		return nil, 0
	}

	var kept []string
	words := 0
	for i := len(sentences) - 1; i >= 0 && words < c.config.Overlap; i-- {
		kept = append([]string{sentences[i]}, kept...)
		words += wordCount(sentences[i])
	}
	return kept, words
}

// wordCount counts whitespace-separated words, treating each CJK ideograph
// as its own word so Chinese text is sized comparably to English.
func wordCount(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}

// sentence terminators for both English and Chinese text
const terminators = ".!?。！？"

// splitSentences splits text on sentence terminators, keeping the
// terminator with its sentence. Common English abbreviations do not end a
// sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if !strings.ContainsRune(terminators, r) {
			continue
		}
		// CJK terminators end a sentence unconditionally; ASCII ones need
		// a following space or end of text
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
		}
		sentence := strings.TrimSpace(current.String())
		if sentence == "" || isAbbreviation(sentence) {
			continue
		}
		sentences = append(sentences, sentence)
		current.Reset()
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}
	return sentences
}

var abbreviations = []string{
	"mr.", "mrs.", "ms.", "dr.", "prof.",
	"inc.", "ltd.", "corp.",
	"etc.", "e.g.", "i.e.",
	"vs.", "v.",
	"no.", "vol.", "fig.",
}

func isAbbreviation(text string) bool {
	lower := strings.ToLower(text)
	for _, abbr := range abbreviations {
		if strings.HasSuffix(lower, abbr) {
			return true
		}
	}
	return false
}
