// Package provider implements the embedding and summarization backends.
// Providers are selected by name through the config file; each backend
// satisfies the same small interfaces so the core never knows which one
// is wired in.
package provider

import (
	"context"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
	ModelName() string
	Dimension() int
}

// SummarizeRequest carries the content to summarize plus optional
// neighborhood context the model may use for grounding.
type SummarizeRequest struct {
	Content   string
	MaxLength int
	Context   string
}

// Summarizer produces a short summary of a document.
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (string, error)
	ModelName() string
}

// Releaser is implemented by providers that hold heavyweight resources
// (model weights, GPU sessions). Release must be safe to call more than
// once.
type Releaser interface {
	Release() error
}

// Release frees v's resources when it implements Releaser.
func Release(v any) error {
	if r, ok := v.(Releaser); ok {
		return r.Release()
	}
	return nil
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched or zero-length inputs score 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// embedSequential implements EmbedBatch for providers whose API only
// accepts one input at a time.
func embedSequential(ctx context.Context, e Embedder, texts []string) ([]Vector, error) {
	out := make([]Vector, 0, len(texts))
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func normalize(vec Vector) Vector {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make(Vector, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
