// Package openai embeds task text through the OpenAI embeddings API
// (or any compatible endpoint via BaseURL).
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Config configures the OpenAI embedder.
type Config struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// BaseURL overrides the API endpoint, for proxies and compatible
	// servers. Empty means the OpenAI default.
	BaseURL string

	// Model is the embedding model (default: text-embedding-3-small).
	Model openai.EmbeddingModel

	// Dimensions is the vector size the model produces
	// (default: 1536 for text-embedding-3-small).
	Dimensions int
}

// Embedder generates embeddings via the OpenAI API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// New creates an OpenAI-backed embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.SmallEmbedding3
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(config),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts a single text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
