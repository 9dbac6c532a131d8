package ingestion

import (
	"strings"
	"testing"
)

func TestNewChunker_Defaults(t *testing.T) {
	chunker := NewChunker(Config{})

	if chunker.config.TargetWords != 256 {
		t.Errorf("TargetWords = %d, want 256", chunker.config.TargetWords)
	}
	if chunker.config.MaxWords != 512 {
		t.Errorf("MaxWords = %d, want 512", chunker.config.MaxWords)
	}
	if chunker.config.Method != "sentence" {
		t.Errorf("Method = %s, want sentence", chunker.config.Method)
	}
}

func TestChunker_EmptyContent(t *testing.T) {
	chunker := NewChunker(Config{})

	if chunks := chunker.Chunk(""); chunks != nil {
		t.Errorf("expected nil for empty content, got %v", chunks)
	}
	if chunks := chunker.Chunk("   "); chunks != nil {
		t.Errorf("expected nil for whitespace content, got %v", chunks)
	}
}

func TestChunker_FixedMethod(t *testing.T) {
	chunker := NewChunker(Config{
		Method:      "fixed",
		TargetWords: 10,
		MaxWords:    20,
		Overlap:     2,
	})

	words := make([]string, 25)
	for i := range words {
		words[i] = "word"
	}
	chunks := chunker.Chunk(strings.Join(words, " "))

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, chunk := range chunks {
		n := len(strings.Fields(chunk))
		if n == 0 || n > 10 {
			t.Errorf("chunk %d has %d words, want 1..10", i, n)
		}
	}
	// Overlap 2 on target 10 steps by 8: chunks start at 0, 8, 16
	if len(chunks) != 3 {
		t.Errorf("expected 3 overlapping chunks, got %d", len(chunks))
	}
}

func TestChunker_SentenceMethod(t *testing.T) {
	chunker := NewChunker(Config{
		Method:      "sentence",
		TargetWords: 6,
		MaxWords:    12,
		Overlap:     0,
	})

	content := "First sentence here. Second sentence follows now. Third one closes it."
	chunks := chunker.Chunk(content)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %v", len(chunks), chunks)
	}
	// Sentences stay intact inside chunks
	if !strings.HasPrefix(chunks[0], "First sentence here.") {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"One. Two. Three.", 3},
		{"中文句子。另一句！第三句？", 3},
		{"Dr. Smith wrote this. It works.", 2},
		{"No terminator at all", 1},
		{"", 0},
	}

	for _, tt := range tests {
		got := splitSentences(tt.text)
		if len(got) != tt.want {
			t.Errorf("splitSentences(%q) = %d sentences %v, want %d", tt.text, len(got), got, tt.want)
		}
	}
}

func TestWordCount_CJK(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"hello world", 2},
		{"知识库", 3},
		{"配置 kubernetes 集群", 5},
		{"", 0},
	}

	for _, tt := range tests {
		if got := wordCount(tt.text); got != tt.want {
			t.Errorf("wordCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
