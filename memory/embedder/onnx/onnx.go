//go:build onnx

// Package onnx embeds task text locally through ONNX Runtime, intended
// for all-MiniLM-L6-v2. No network, real semantic similarity. Built
// behind the onnx tag because it needs the onnxruntime shared library
// at run time.
package onnx

import (
	"context"
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

// maxSequence is the token window for MiniLM-class models.
const maxSequence = 128

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file. Required.
	ModelPath string

	// TokenizerPath is the path to the HuggingFace tokenizer.json.
	// Required.
	TokenizerPath string

	// LibraryPath points at libonnxruntime.so; empty keeps the
	// runtime's default lookup.
	LibraryPath string

	// Dimensions is the embedding size (default: 384 for
	// all-MiniLM-L6-v2).
	Dimensions int
}

// Embedder generates embeddings with a local ONNX session.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
}

// New creates an ONNX-backed embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tokenizer, err := loadWordPieceTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text to an embedding vector: tokenize, run the
// model, mean-pool over attended tokens, normalize to a unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputIDs, attentionMask := e.tokenizer.Encode(text, maxSequence)
	tokenTypeIDs := make([]int64, maxSequence)

	shape := ort.NewShape(1, int64(maxSequence))
	inputTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("no output tensors returned")
	}
	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	vec, err := e.pool(hidden.GetData(), hidden.GetShape(), attentionMask)
	if err != nil {
		return nil, err
	}
	return normalize(vec), nil
}

// pool reduces the model output to a single vector. Some exports ship
// pre-pooled [1, dims]; raw exports need mean pooling over the
// [1, seq, dims] hidden states, restricted to attended tokens.
func (e *Embedder) pool(data []float32, shape []int64, attentionMask []int64) ([]float32, error) {
	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("output dimension mismatch: got %d, want %d", len(data), e.dimensions)
		}
		vec := make([]float32, e.dimensions)
		copy(vec, data[:e.dimensions])
		return vec, nil

	case 3:
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		if shape[2] != int64(e.dimensions) {
			return nil, fmt.Errorf("hidden size mismatch: got %d, want %d", shape[2], e.dimensions)
		}

		seqLen := int(shape[1])
		vec := make([]float32, e.dimensions)
		attended := float32(0)
		for i := 0; i < seqLen; i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * e.dimensions
			for j := 0; j < e.dimensions; j++ {
				vec[j] += data[offset+j]
			}
		}
		if attended == 0 {
			return vec, nil
		}
		for j := range vec {
			vec[j] /= attended
		}
		return vec, nil

	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
