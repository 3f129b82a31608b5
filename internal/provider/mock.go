package provider

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDimensions = 384

// MockEmbedder generates deterministic embeddings from a text hash.
// Used in tests and as a no-dependency fallback.
type MockEmbedder struct {
	dims int
}

// NewMockEmbedder creates a deterministic embedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dims: mockDimensions}
}

// Embed hashes the text and expands the hash through an LCG into a
// normalized vector, so equal texts always embed identically.
func (m *MockEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make(Vector, m.dims)
	for i := 0; i < m.dims; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	return embedSequential(ctx, m, texts)
}

func (m *MockEmbedder) ModelName() string { return "mock" }
func (m *MockEmbedder) Dimension() int    { return m.dims }

// MockSummarizer truncates content instead of calling a model.
type MockSummarizer struct{}

// NewMockSummarizer creates a summarizer that truncates its input.
func NewMockSummarizer() *MockSummarizer { return &MockSummarizer{} }

func (m *MockSummarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	return clampSummary(req.Content, req.MaxLength), nil
}

func (m *MockSummarizer) ModelName() string { return "mock" }
