package provider

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/keepstore/keep/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f (±%f)", tt.a, tt.b, got, tt.expected, tt.delta)
			}
		})
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	a1, err := m.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	a2, _ := m.Embed(ctx, "hello world")
	b, _ := m.Embed(ctx, "something else")

	if len(a1) != m.Dimension() {
		t.Errorf("dimension mismatch: %d vs %d", len(a1), m.Dimension())
	}
	if sim := CosineSimilarity(a1, a2); sim < 0.999 {
		t.Errorf("equal texts should embed identically, similarity %f", sim)
	}
	if sim := CosineSimilarity(a1, b); sim > 0.99 {
		t.Errorf("distinct texts should not embed identically, similarity %f", sim)
	}

	// Unit vectors.
	var norm float64
	for _, v := range a1 {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 0.001 {
		t.Errorf("embedding not normalized, norm %f", math.Sqrt(norm))
	}
}

func TestClampSummary(t *testing.T) {
	if got := clampSummary("short", 100); got != "short" {
		t.Errorf("short input should pass through, got %q", got)
	}
	got := clampSummary(strings.Repeat("a", 50), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("expected 10-rune truncation with marker, got %q", got)
	}
	// Multi-byte runes must not be split.
	got = clampSummary(strings.Repeat("é", 50), 10)
	if len([]rune(got)) != 10 {
		t.Errorf("rune-unsafe truncation: %q", got)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(config.ProviderConfig{Name: "bogus"})
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Errorf("expected error naming the provider, got %v", err)
	}
	if !strings.Contains(err.Error(), "ollama") {
		t.Errorf("error should list known providers, got %v", err)
	}

	_, err = NewSummarizer(config.ProviderConfig{Name: "bogus"})
	if err == nil {
		t.Error("expected error for unknown summarizer")
	}
}

func TestRegistryMock(t *testing.T) {
	e, err := NewEmbedder(config.ProviderConfig{Name: "mock"})
	if err != nil || e.ModelName() != "mock" {
		t.Fatalf("mock embedder: %v", err)
	}
	s, err := NewSummarizer(config.ProviderConfig{Name: "mock"})
	if err != nil || s.ModelName() != "mock" {
		t.Fatalf("mock summarizer: %v", err)
	}
}

func TestIsLocal(t *testing.T) {
	if !IsLocal("onnx") {
		t.Error("onnx is in-process and needs the lifecycle lock")
	}
	for _, name := range []string{"ollama", "openai", "anthropic", "mock"} {
		if IsLocal(name) {
			t.Errorf("%s should not take the lifecycle lock", name)
		}
	}
}
