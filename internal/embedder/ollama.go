package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// DefaultOllamaBaseURL is the default Ollama API base URL.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// DefaultOllamaDimension is the default embedding dimension for nomic-embed-text.
	DefaultOllamaDimension = 768

	// DefaultEmbedBatchSize caps how many inputs are sent in one embed request.
	DefaultEmbedBatchSize = 32
)

// OllamaConfig holds configuration for the Ollama embedder.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Dimension  int
	BatchSize  int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OllamaEmbedder implements the Embedder interface against Ollama's
// /api/embed endpoint. Batches are sent server-side in chunks of BatchSize
// inputs per request rather than as one request per text.
type OllamaEmbedder struct {
	baseURL   string
	model     string
	dimension int
	batchSize int
	client    *http.Client
	logger    *slog.Logger
}

// embedRequest targets /api/embed, which accepts a single string or an
// array of strings as input.
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates a new Ollama embedder with the given configuration.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultOllamaDimension
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OllamaEmbedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
		client:    client,
		logger:    logger,
	}
}

// Embed generates an embedding vector for a single text input.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for multiple text inputs. Inputs
// are chunked into requests of at most the configured batch size, each
// embedded server-side in a single call.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch at offset %d: %w", start, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embedding batch at offset %d: expected %d embeddings, got %d",
				start, end-start, len(vectors))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, input any) ([][]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.baseURL + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding returned from Ollama")
	}
	return embedResp.Embeddings, nil
}

// Ping embeds a probe text to verify the backend is reachable. When the
// model's actual output dimension differs from the configured one, the
// configured dimension is corrected before any collection is created with it.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	vec, err := e.Embed(ctx, "ping")
	if err != nil {
		return fmt.Errorf("embedding backend unavailable: %w", err)
	}
	if len(vec) != e.dimension {
		e.logger.Warn("embedding dimension differs from configuration",
			"model", e.model,
			"configured", e.dimension,
			"actual", len(vec),
		)
		e.dimension = len(vec)
	}
	return nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

var _ Embedder = (*OllamaEmbedder)(nil)
