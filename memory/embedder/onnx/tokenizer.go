//go:build onnx

package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// BERT special token IDs used by the MiniLM family.
const (
	unkTokenID = 100 // [UNK]
	clsTokenID = 101 // [CLS]
	sepTokenID = 102 // [SEP]
)

// wordPieceTokenizer is a minimal BERT WordPiece tokenizer driven by a
// HuggingFace tokenizer.json vocabulary.
type wordPieceTokenizer struct {
	vocab map[string]int
}

func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if len(parsed.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer.json has no vocabulary")
	}

	return &wordPieceTokenizer{vocab: parsed.Model.Vocab}, nil
}

// Encode tokenizes text into fixed-length input_ids and attention_mask
// slices, wrapping the tokens in [CLS] ... [SEP] and truncating to fit
// maxLen.
func (t *wordPieceTokenizer) Encode(text string, maxLen int) (inputIDs, attentionMask []int64) {
	tokens := t.tokenize(text)

	inputIDs = make([]int64, maxLen)
	attentionMask = make([]int64, maxLen)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1

	n := len(tokens)
	if n > maxLen-2 {
		n = maxLen - 2
	}
	for i := 0; i < n; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}

	inputIDs[n+1] = sepTokenID
	attentionMask[n+1] = 1
	return inputIDs, attentionMask
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}

		if id, ok := t.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		for _, piece := range t.wordPieces(word) {
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, int64(id))
			} else {
				ids = append(ids, unkTokenID)
			}
		}
	}
	return ids
}

// wordPieces splits an out-of-vocabulary word into greedy
// longest-prefix subwords, using the ## continuation convention.
func (t *wordPieceTokenizer) wordPieces(word string) []string {
	var pieces []string
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if _, ok := t.vocab[piece]; ok {
				pieces = append(pieces, piece)
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			pieces = append(pieces, "[UNK]")
			start++
		}
	}
	return pieces
}
