package embedding

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer produces padded token IDs and attention masks for BERT-style models.
// All rows of a batch share the same length.
type Tokenizer interface {
	EncodeBatch(texts []string, maxTokens int) (inputIDs, attentionMask [][]int64, err error)
}

// HFTokenizer loads a Hugging Face tokenizer.json.
type HFTokenizer struct {
	tk *tokenizer.Tokenizer
}

// LoadHFTokenizer reads the tokenizer definition at path.
func LoadHFTokenizer(path string) (*HFTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &HFTokenizer{tk: tk}, nil
}

// EncodeBatch tokenizes texts with special tokens, truncates to maxTokens and pads to the longest row.
func (t *HFTokenizer) EncodeBatch(texts []string, maxTokens int) ([][]int64, [][]int64, error) {
	inputs := make([]tokenizer.EncodeInput, len(texts))
	for i, text := range texts {
		inputs[i] = tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(text))
	}
	encodings, err := t.tk.EncodeBatch(inputs, true)
	if err != nil {
		return nil, nil, fmt.Errorf("tokenization failed: %w", err)
	}
	ids := make([][]int, len(encodings))
	masks := make([][]int, len(encodings))
	for i, enc := range encodings {
		ids[i] = enc.GetIds()
		masks[i] = enc.GetAttentionMask()
	}
	inputIDs, attention := pad(ids, masks, maxTokens)
	return inputIDs, attention, nil
}

// pad truncates rows to maxTokens and right-pads them to a common length.
func pad(ids, masks [][]int, maxTokens int) ([][]int64, [][]int64) {
	maxLen := 0
	for _, row := range ids {
		if len(row) > maxLen {
			maxLen = len(row)
		}
	}
	if maxTokens > 0 && maxLen > maxTokens {
		maxLen = maxTokens
	}
	outIDs := make([][]int64, len(ids))
	outMask := make([][]int64, len(ids))
	for i, row := range ids {
		outIDs[i] = make([]int64, maxLen)
		outMask[i] = make([]int64, maxLen)
		for j := 0; j < maxLen && j < len(row); j++ {
			outIDs[i][j] = int64(row[j])
			if j < len(masks[i]) {
				outMask[i][j] = int64(masks[i][j])
			} else {
				outMask[i][j] = 1
			}
		}
	}
	return outIDs, outMask
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs, used when no tokenizer.json is configured.
type SimpleTokenizer struct{}

// EncodeBatch splits each text into words and produces [CLS] ids... [SEP] rows up to maxTokens.
func (t *SimpleTokenizer) EncodeBatch(texts []string, maxTokens int) ([][]int64, [][]int64, error) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	ids := make([][]int, len(texts))
	masks := make([][]int, len(texts))
	for i, text := range texts {
		row := []int{101} // [CLS]
		for _, word := range SplitWords(text) {
			if len(row) >= maxTokens-1 {
				break
			}
			row = append(row, HashString(word)%30000)
		}
		row = append(row, 102) // [SEP]
		ids[i] = row
		masks[i] = make([]int, len(row))
		for j := range masks[i] {
			masks[i][j] = 1
		}
	}
	inputIDs, attention := pad(ids, masks, maxTokens)
	return inputIDs, attention, nil
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	return words
}

// normalizeWord lowercases text and replaces punctuation with spaces.
func normalizeWord(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
}

// HashString returns a deterministic hash for use as a simple token ID.
func HashString(s string) int {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return int(h & 0x7fffffff)
}
