package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const defaultOllamaModel = "nomic-embed-text"

// OllamaEmbedder uses a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an embedder backed by Ollama's API.
// Options: model (default nomic-embed-text), base_url, dimension.
func NewOllamaEmbedder(opts map[string]string) *OllamaEmbedder {
	baseURL := opts["base_url"]
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := opts["model"]
	if model == "" {
		model = defaultOllamaModel
	}
	dims := 768 // nomic-embed-text
	if model == "all-minilm" {
		dims = 384
	}
	if d, err := strconv.Atoi(opts["dimension"]); err == nil && d > 0 {
		dims = d
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, _ := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(b))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	return embedSequential(ctx, e, texts)
}

func (e *OllamaEmbedder) ModelName() string { return e.model }
func (e *OllamaEmbedder) Dimension() int    { return e.dims }

// OllamaSummarizer generates summaries through Ollama's generate API.
type OllamaSummarizer struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// NewOllamaSummarizer creates a summarizer backed by Ollama's API.
// Options: model (default llama3.2), base_url.
func NewOllamaSummarizer(opts map[string]string) *OllamaSummarizer {
	baseURL := opts["base_url"]
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := opts["model"]
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaSummarizer{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OllamaSummarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	body, _ := json.Marshal(ollamaGenerateRequest{
		Model:  s.model,
		Prompt: summaryPrompt(req),
		Stream: false,
	})
	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(b))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return clampSummary(result.Response, req.MaxLength), nil
}

func (s *OllamaSummarizer) ModelName() string { return s.model }
