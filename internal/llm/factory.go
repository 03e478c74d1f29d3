package llm

import (
	"fmt"
	"time"
)

// Settings selects and configures one provider.
type Settings struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	AzureEndpoint   string
	AzureAPIVersion string
	Timeout         time.Duration
}

// New returns a chat/completion client for s.Provider.
func New(s Settings) (Client, error) {
	if s.Model == "" {
		return nil, fmt.Errorf("%s: model is required", s.Provider)
	}
	switch s.Provider {
	case "anthropic":
		c := NewClaudeClient(s.APIKey, s.Model, s.Timeout)
		if s.BaseURL != "" {
			c.WithEndpoint(s.BaseURL)
		}
		return c, nil
	case "openai", "gemini", "groq", "azure_openai":
		return NewOpenAIClient(s.openAIOptions())
	}
	return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
}

// NewEmbedder returns an embedding client. Anthropic and Groq have no
// embeddings endpoint.
func NewEmbedder(s Settings) (Embedder, error) {
	if s.Model == "" {
		return nil, fmt.Errorf("%s: embedding model is required", s.Provider)
	}
	switch s.Provider {
	case "openai", "gemini", "azure_openai":
		return NewOpenAIClient(s.openAIOptions())
	}
	return nil, fmt.Errorf("provider %q does not offer embeddings", s.Provider)
}

func (s Settings) openAIOptions() OpenAIOptions {
	return OpenAIOptions{
		Provider:        s.Provider,
		Model:           s.Model,
		APIKey:          s.APIKey,
		BaseURL:         s.BaseURL,
		AzureEndpoint:   s.AzureEndpoint,
		AzureAPIVersion: s.AzureAPIVersion,
		Timeout:         s.Timeout,
	}
}
