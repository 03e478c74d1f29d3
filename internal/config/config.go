package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hntbot/biddocs/internal/llm"
)

// Provider names accepted for SPLIT_PROVIDER, CHAT_PROVIDER and
// EMBEDDING_PROVIDER.
const (
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
	ProviderGroq        = "groq"
	ProviderAzureOpenAI = "azure_openai"
	ProviderAnthropic   = "anthropic"
)

type Config struct {
	Port     string `yaml:"port"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	// Auth. Empty disables bearer auth.
	ServiceAPIKey string `yaml:"-"`

	// TOC interpretation for the splitter
	SplitProvider    string `yaml:"split_provider"`
	SplitModel       string `yaml:"split_model"`
	SplitMaxTOCPages int    `yaml:"split_max_toc_pages"`

	// Question answering
	ChatProvider string `yaml:"chat_provider"`
	ChatModel    string `yaml:"chat_model"`
	RetrievalK   int    `yaml:"retrieval_k"`

	// Embeddings
	EmbeddingProvider  string `yaml:"embedding_provider"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`

	// Provider credentials are only read from the environment.
	OpenAIAPIKey          string `yaml:"-"`
	GeminiAPIKey          string `yaml:"-"`
	GroqAPIKey            string `yaml:"-"`
	AnthropicAPIKey       string `yaml:"-"`
	AzureOpenAIAPIKey     string `yaml:"-"`
	AzureOpenAIEndpoint   string `yaml:"azure_openai_endpoint"`
	AzureOpenAIAPIVersion string `yaml:"azure_openai_api_version"`

	LLMTimeout time.Duration `yaml:"llm_timeout"`

	// Worker pool
	WorkerCount        int `yaml:"worker_count"`
	MaxQueueSize       int `yaml:"max_queue_size"`
	MaxConcurrentEmbed int `yaml:"max_concurrent_embed"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Chunking defaults, in characters
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`
}

// Defaults returns the configuration used when neither a config file nor
// the environment sets a value.
func Defaults() Config {
	return Config{
		Port:     "8000",
		DataDir:  "data",
		LogLevel: "info",

		SplitProvider:    ProviderGemini,
		SplitModel:       "gemini-2.5-flash",
		SplitMaxTOCPages: 20,

		ChatProvider: ProviderGemini,
		ChatModel:    "gemini-2.0-flash",
		RetrievalK:   10,

		EmbeddingProvider:  ProviderGemini,
		EmbeddingModel:     "text-embedding-004",
		EmbeddingBatchSize: 64,

		AzureOpenAIAPIVersion: "2024-10-21",

		LLMTimeout: 120 * time.Second,

		WorkerCount:        4,
		MaxQueueSize:       100,
		MaxConcurrentEmbed: 4,

		MaxUploadBytes: 52428800, // 50MB

		ChunkSize:    4000,
		ChunkOverlap: 200,

		JobTTL: 1 * time.Hour,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. Later sources win.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.DataDir = envOr("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.ServiceAPIKey = os.Getenv("SERVICE_API_KEY")

	cfg.SplitProvider = envOr("SPLIT_PROVIDER", cfg.SplitProvider)
	cfg.SplitModel = envOr("SPLIT_MODEL", cfg.SplitModel)
	cfg.SplitMaxTOCPages = envInt("SPLIT_MAX_TOC_PAGES", cfg.SplitMaxTOCPages)

	cfg.ChatProvider = envOr("CHAT_PROVIDER", cfg.ChatProvider)
	cfg.ChatModel = envOr("CHAT_MODEL", cfg.ChatModel)
	cfg.RetrievalK = envInt("RETRIEVAL_K", cfg.RetrievalK)

	cfg.EmbeddingProvider = envOr("EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingModel = envOr("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingBatchSize = envInt("EMBEDDING_BATCH_SIZE", cfg.EmbeddingBatchSize)

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GeminiAPIKey = envOr("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.AzureOpenAIAPIKey = os.Getenv("AZURE_OPENAI_API_KEY")
	cfg.AzureOpenAIEndpoint = envOr("AZURE_OPENAI_ENDPOINT", cfg.AzureOpenAIEndpoint)
	cfg.AzureOpenAIAPIVersion = envOr("AZURE_OPENAI_API_VERSION", cfg.AzureOpenAIAPIVersion)

	cfg.LLMTimeout = envDuration("LLM_TIMEOUT", cfg.LLMTimeout)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxConcurrentEmbed = envInt("MAX_CONCURRENT_EMBED", cfg.MaxConcurrentEmbed)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.ChunkSize = envInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", cfg.ChunkOverlap)

	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.clamp()
	return cfg, nil
}

func (c *Config) clamp() {
	d := Defaults()
	if c.SplitMaxTOCPages <= 0 {
		c.SplitMaxTOCPages = d.SplitMaxTOCPages
	}
	if c.RetrievalK <= 0 {
		c.RetrievalK = d.RetrievalK
	}
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = d.EmbeddingBatchSize
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = d.LLMTimeout
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxConcurrentEmbed <= 0 {
		c.MaxConcurrentEmbed = d.MaxConcurrentEmbed
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = d.ChunkOverlap
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	c.SplitProvider = strings.ToLower(c.SplitProvider)
	c.ChatProvider = strings.ToLower(c.ChatProvider)
	c.EmbeddingProvider = strings.ToLower(c.EmbeddingProvider)
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if err := c.checkProvider("SPLIT_PROVIDER", c.SplitProvider); err != nil {
		return err
	}
	if err := c.checkProvider("CHAT_PROVIDER", c.ChatProvider); err != nil {
		return err
	}
	if c.EmbeddingProvider == ProviderAnthropic || c.EmbeddingProvider == ProviderGroq {
		return fmt.Errorf("EMBEDDING_PROVIDER %q does not offer embeddings", c.EmbeddingProvider)
	}
	return c.checkProvider("EMBEDDING_PROVIDER", c.EmbeddingProvider)
}

func (c Config) checkProvider(key, provider string) error {
	switch provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%s=%s requires OPENAI_API_KEY", key, provider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%s=%s requires GEMINI_API_KEY", key, provider)
		}
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("%s=%s requires GROQ_API_KEY", key, provider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%s=%s requires ANTHROPIC_API_KEY", key, provider)
		}
	case ProviderAzureOpenAI:
		if c.AzureOpenAIAPIKey == "" || c.AzureOpenAIEndpoint == "" {
			return fmt.Errorf("%s=%s requires AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT", key, provider)
		}
	default:
		return fmt.Errorf("%s: unknown provider %q", key, provider)
	}
	return nil
}

// APIKey returns the credential configured for provider.
func (c Config) APIKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderAzureOpenAI:
		return c.AzureOpenAIAPIKey
	}
	return ""
}

// LLM returns client settings for provider and model with the configured
// credentials and timeout.
func (c Config) LLM(provider, model string) llm.Settings {
	return llm.Settings{
		Provider:        provider,
		Model:           model,
		APIKey:          c.APIKey(provider),
		AzureEndpoint:   c.AzureOpenAIEndpoint,
		AzureAPIVersion: c.AzureOpenAIAPIVersion,
		Timeout:         c.LLMTimeout,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
