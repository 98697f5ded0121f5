package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

// buildSentences 生成 n 个结构相同、编号递增的英文句子。
func buildSentences(n int) []string {
	sentences := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sentences = append(sentences, fmt.Sprintf("the quick brown fox jumps over the lazy sleeping dog number %02d.", i))
	}
	return sentences
}

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("", 1000, 100); got != nil {
		t.Errorf("ChunkText(\"\") = %v, want nil", got)
	}
}

func TestChunkTextNoSentenceBoundary(t *testing.T) {
	// 没有终结符时整体作为单个分块返回，即使超过 maxChunkSize
	text := strings.Repeat("词", 1500)
	got := ChunkText(text, 1000, 100)
	if len(got) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(got))
	}
	if got[0] != text {
		t.Errorf("single chunk does not equal input text")
	}
}

func TestChunkTextShortInput(t *testing.T) {
	text := "第一句。只有一个英文句号的短文本."
	got := ChunkText(text, 1000, 100)
	if len(got) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(got))
	}
	if got[0] != text {
		t.Errorf("chunk = %q, want %q", got[0], text)
	}
}

func TestChunkTextLongDocument(t *testing.T) {
	// 约 2500 字符的文档应切出 3 个分块
	sentences := buildSentences(39)
	text := strings.Join(sentences, " ")

	chunks := ChunkText(text, 1000, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}

	// 尺寸上界：正文不超过 maxChunkSize，重叠种子最多 overlapChars/10 个词
	for i, c := range chunks {
		if len(c) > 1000+100+1 {
			t.Errorf("chunk %d length = %d, exceeds bound", i, len(c))
		}
	}

	// 覆盖性：每个句子都出现在至少一个分块中
	for _, s := range sentences {
		found := false
		for _, c := range chunks {
			if strings.Contains(c, s) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("sentence %q missing from all chunks", s)
		}
	}

	// 连续性：每个后续分块以上一个分块的末尾词作为开头
	for i := 1; i < len(chunks); i++ {
		seed := trailingWords(chunks[i-1], 10)
		if seed == "" {
			t.Fatalf("empty overlap seed from chunk %d", i-1)
		}
		if !strings.HasPrefix(chunks[i], seed+" ") {
			t.Errorf("chunk %d does not start with overlap seed %q", i, seed)
		}
	}
}

func TestChunkTextDefaults(t *testing.T) {
	// 非法参数回落到默认值
	text := strings.Join(buildSentences(39), " ")
	withDefaults := ChunkText(text, 0, -1)
	explicit := ChunkText(text, DefaultMaxChunkSize, DefaultOverlapChars)
	if len(withDefaults) != len(explicit) {
		t.Errorf("chunk count with defaults = %d, explicit = %d", len(withDefaults), len(explicit))
	}
}

func TestSplitSentencesReconstruct(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"mixed terminators", "First. Second! Third? Fourth."},
		{"trailing fragment", "Done. And then some trailing text"},
		{"no terminator", "just one fragment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := splitSentences(tt.text)
			if got := strings.Join(parts, ""); got != tt.text {
				t.Errorf("joined sentences = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestTrailingWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"fewer words than n", "one two", 10, "one two"},
		{"exactly n", "a b c", 3, "a b c"},
		{"more words than n", "a b c d e", 2, "d e"},
		{"zero n", "a b c", 0, ""},
		{"empty text", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trailingWords(tt.text, tt.n); got != tt.want {
				t.Errorf("trailingWords(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}

// buildCJKSentences 生成 n 个带空格分词的中文句子，单个字符占多个字节。
func buildCJKSentences(n int) []string {
	sentences := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sentences = append(sentences, fmt.Sprintf("第%02d讲 介绍了 二叉搜索树 的 插入 删除 与 旋转 平衡 操作.", i))
	}
	return sentences
}

func TestChunkTextRuneCounting(t *testing.T) {
	// 2099 个字符、4739 个字节：分块按字符计量，不应因字节数提前闭合
	sentences := buildCJKSentences(60)
	text := strings.Join(sentences, " ")
	if utf8.RuneCountInString(text) != 2099 {
		t.Fatalf("fixture rune count = %d, want 2099", utf8.RuneCountInString(text))
	}

	chunks := ChunkText(text, 1000, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}

	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > 1000 {
			t.Errorf("chunk %d rune length = %d, exceeds 1000", i, n)
		}
	}

	for _, sentence := range sentences {
		found := false
		for _, chunk := range chunks {
			if strings.Contains(chunk, sentence) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("sentence %q missing from all chunks", sentence)
		}
	}

	for i := 1; i < len(chunks); i++ {
		seed := trailingWords(chunks[i-1], 10)
		if !strings.HasPrefix(chunks[i], seed+" ") {
			t.Errorf("chunk %d does not start with overlap seed of chunk %d", i, i-1)
		}
	}
}

func TestChunkTextNoSeedOnlyChunk(t *testing.T) {
	// 超长句子紧跟普通句子时，不应产出只含重叠种子的重复分块
	long := strings.Repeat("oversized segment ", 20) + "ends here."
	text := "short opening sentence number one. short follow up sentence two. " + long + " short closing sentence three."

	chunks := ChunkText(text, 100, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}
	// 每个后续分块都必须在种子之外携带新内容
	for i := 1; i < len(chunks); i++ {
		seed := trailingWords(chunks[i-1], 10)
		if strings.TrimSpace(chunks[i]) == seed {
			t.Errorf("chunk %d is a bare overlap seed: %q", i, chunks[i])
		}
	}
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "ends here.") || !strings.Contains(joined, "sentence three.") {
		t.Error("sentences lost around the oversized one")
	}
}
