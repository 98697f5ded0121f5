// Package pipeline 定义了课程资料导入的核心流程。
package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// 切分参数的默认值，可被配置覆盖。
const (
	DefaultMaxChunkSize = 1000
	DefaultOverlapChars = 100
)

// ChunkText 将长文本按句子边界切分为带重叠的分块。
//
// 句子在终结符（. ! ?）后断开；贪心地向当前分块累积句子，直到
// 再加一句会超过 maxChunkSize 为止。长度按字符（rune）计量，
// 多字节文本不会因编码提前闭合分块。新分块以上一个分块末尾约
// overlapChars/10 个词作为种子续写。这里的重叠是按词数近似的，
// 不是精确的字符切片，与历史行为保持一致。
//
// 即使输入很短或没有句子边界，也至少产出一个分块。
func ChunkText(text string, maxChunkSize, overlapChars int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlapChars < 0 {
		overlapChars = DefaultOverlapChars
	}
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		// 没有句子边界：整体作为单个分块返回
		return []string{text}
	}

	overlapWords := overlapChars / 10
	var chunks []string
	var current strings.Builder
	currentRunes := 0

	for _, sentence := range sentences {
		sentenceRunes := utf8.RuneCountInString(sentence)
		if currentRunes > 0 && currentRunes+sentenceRunes > maxChunkSize {
			closed := current.String()
			chunks = append(chunks, closed)
			current.Reset()
			currentRunes = 0
			if seed := trailingWords(closed, overlapWords); seed != "" {
				current.WriteString(seed)
				current.WriteString(" ")
				currentRunes = utf8.RuneCountInString(seed) + 1
			}
		}
		current.WriteString(sentence)
		currentRunes += sentenceRunes
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences 在终结符之后切开文本，保留所有原始字符，
// 因此按序拼接所有句子可以还原原文。
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			// 终结符归属当前句
			sentences = append(sentences, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// trailingWords 返回文本末尾最多 n 个词，用作下一个分块的重叠种子。
func trailingWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.FieldsFunc(text, unicode.IsSpace)
	if len(words) == 0 {
		return ""
	}
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
