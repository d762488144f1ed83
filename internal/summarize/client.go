// Package summarize is a thin client for an external LLM service that
// interprets notices and writes role briefings.
package summarize

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Completer is the interface for completion providers (Ollama, OpenAI-compatible)
type Completer interface {
	// Complete sends prompt to model and returns the generated text. With
	// asJSON the provider is asked for a JSON object.
	Complete(ctx context.Context, model, prompt string, asJSON bool) (string, error)

	// Health checks the service is reachable and model is available
	Health(ctx context.Context, model string) error
}

// NewCompleter creates a completion client for provider.
// Supported providers: "ollama", "openai" (also LM Studio and other
// OpenAI-compatible servers).
func NewCompleter(provider, baseURL, apiKey string, timeout time.Duration) (Completer, error) {
	if baseURL == "" {
		baseURL = DefaultURL(provider)
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	httpClient := &http.Client{Timeout: timeout}

	switch provider {
	case "ollama":
		return &OllamaClient{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}, nil
	case "openai", "lmstudio":
		return &OpenAIClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: httpClient}, nil
	default:
		return nil, fmt.Errorf("unsupported summarizer provider: %s (supported: ollama, openai)", provider)
	}
}

// DefaultURL returns the default base URL for a given provider
func DefaultURL(provider string) string {
	switch provider {
	case "ollama":
		return "http://localhost:11434"
	case "lmstudio":
		return "http://localhost:1234"
	case "openai":
		return "https://api.openai.com"
	default:
		return ""
	}
}

// DefaultModel returns the default model name for a given provider
func DefaultModel(provider string) string {
	switch provider {
	case "ollama":
		return "llama3.1"
	case "openai":
		return "gpt-4o-mini"
	default:
		return ""
	}
}

// stripModelTag removes the tag suffix from a model name (e.g., "model:latest" -> "model")
func stripModelTag(modelName string) string {
	if i := strings.IndexByte(modelName, ':'); i >= 0 {
		return modelName[:i]
	}
	return modelName
}
