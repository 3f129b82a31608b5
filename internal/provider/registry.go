package provider

import (
	"fmt"
	"strings"

	"github.com/keepstore/keep/internal/config"
)

var embedderNames = []string{"ollama", "openai", "onnx", "mock"}
var summarizerNames = []string{"ollama", "openai", "anthropic", "mock"}

// NewEmbedder builds the embedding backend named by cfg.
func NewEmbedder(cfg config.ProviderConfig) (Embedder, error) {
	switch cfg.Name {
	case "ollama":
		return NewOllamaEmbedder(cfg.Options), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.Options), nil
	case "onnx":
		return newONNXEmbedder(cfg.Options)
	case "mock":
		return NewMockEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (known: %s)",
			cfg.Name, strings.Join(embedderNames, ", "))
	}
}

// NewSummarizer builds the summarization backend named by cfg.
func NewSummarizer(cfg config.ProviderConfig) (Summarizer, error) {
	switch cfg.Name {
	case "ollama":
		return NewOllamaSummarizer(cfg.Options), nil
	case "openai":
		return NewOpenAISummarizer(cfg.Options), nil
	case "anthropic":
		return NewAnthropicSummarizer(cfg.Options), nil
	case "mock":
		return NewMockSummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarization provider %q (known: %s)",
			cfg.Name, strings.Join(summarizerNames, ", "))
	}
}

// IsLocal reports whether the named provider loads model weights into
// this process. Local providers are serialized behind the model
// lifecycle lock so only one process holds the weights at a time.
// Remote APIs and the Ollama server manage their own memory.
func IsLocal(name string) bool {
	return name == "onnx"
}
