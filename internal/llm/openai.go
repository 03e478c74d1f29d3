package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI-compatible endpoints for providers that are not OpenAI itself.
const (
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	GroqBaseURL   = "https://api.groq.com/openai/v1/"
)

// OpenAIClient talks to any provider that speaks the OpenAI chat completions
// and embeddings API: OpenAI, Gemini, Groq and Azure OpenAI.
type OpenAIClient struct {
	client   openai.Client
	provider string
	model    string
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider default.
	BaseURL string
	// AzureEndpoint and AzureAPIVersion are used for the azure_openai
	// provider, where Model is the deployment name.
	AzureEndpoint   string
	AzureAPIVersion string
	Timeout         time.Duration
}

func NewOpenAIClient(o OpenAIOptions) (*OpenAIClient, error) {
	// Retries are the caller's decision: the split path must make exactly
	// one attempt.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}

	switch o.Provider {
	case "azure_openai":
		if o.AzureEndpoint == "" {
			return nil, fmt.Errorf("azure_openai: endpoint is required")
		}
		opts = append(opts,
			azure.WithEndpoint(o.AzureEndpoint, o.AzureAPIVersion),
			azure.WithAPIKey(o.APIKey),
		)
	case "openai", "gemini", "groq":
		opts = append(opts, option.WithAPIKey(o.APIKey))
		base := o.BaseURL
		if base == "" {
			switch o.Provider {
			case "gemini":
				base = GeminiBaseURL
			case "groq":
				base = GroqBaseURL
			}
		}
		if base != "" {
			opts = append(opts, option.WithBaseURL(base))
		}
	default:
		return nil, fmt.Errorf("unsupported openai-compatible provider %q", o.Provider)
	}

	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		provider: o.Provider,
		model:    o.Model,
	}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages))
	if err != nil {
		return "", c.wrap("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", c.provider)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) ChatStream(ctx context.Context, messages []Message, emit func(string) error) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := emit(delta); err != nil {
			return full.String(), err
		}
	}
	if err := stream.Err(); err != nil {
		return full.String(), c.wrap("chat stream", err)
	}
	return full.String(), nil
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, c.wrap("embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s embeddings: got %d vectors for %d inputs", c.provider, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%s embeddings: index %d out of range", c.provider, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func (c *OpenAIClient) Close() {}

func (c *OpenAIClient) params(messages []Message) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
}

func (c *OpenAIClient) wrap(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && retryableStatus(apiErr.StatusCode) {
		return &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("%s %s: %w", c.provider, op, err)
}
