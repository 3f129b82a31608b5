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

// OpenAIEmbedder uses any OpenAI-compatible embedding API.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
// Options: model (default text-embedding-3-small), base_url, api_key,
// dimension. The key falls back to OPENAI_API_KEY.
func NewOpenAIEmbedder(opts map[string]string) *OpenAIEmbedder {
	baseURL := opts["base_url"]
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	apiKey := opts["api_key"]
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	model := opts["model"]
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := 1536
	if d, err := strconv.Atoi(opts["dimension"]); err == nil && d > 0 {
		dims = d
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, _ := json.Marshal(openaiEmbedRequest{Input: texts, Model: e.model})
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai error %d: %s", resp.StatusCode, string(b))
	}

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}
	out := make([]Vector, len(result.Data))
	for i, d := range result.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (e *OpenAIEmbedder) ModelName() string { return e.model }
func (e *OpenAIEmbedder) Dimension() int    { return e.dims }

// OpenAISummarizer generates summaries through an OpenAI-compatible
// chat completions API.
type OpenAISummarizer struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type openaiChatRequest struct {
	Model    string              `json:"model"`
	Messages []openaiChatMessage `json:"messages"`
}

type openaiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message openaiChatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAISummarizer creates a summarizer using an OpenAI-compatible
// API. Options: model (default gpt-4o-mini), base_url, api_key.
func NewOpenAISummarizer(opts map[string]string) *OpenAISummarizer {
	baseURL := opts["base_url"]
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	apiKey := opts["api_key"]
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	model := opts["model"]
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAISummarizer{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	body, _ := json.Marshal(openaiChatRequest{
		Model: s.model,
		Messages: []openaiChatMessage{
			{Role: "user", Content: summaryPrompt(req)},
		},
	})
	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai error %d: %s", resp.StatusCode, string(b))
	}

	var result openaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return clampSummary(result.Choices[0].Message.Content, req.MaxLength), nil
}

func (s *OpenAISummarizer) ModelName() string { return s.model }
