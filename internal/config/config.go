// Package config loads oqgen settings from defaults, a YAML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/usecases"
)

// Provider names accepted for llm.provider and embedding.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// ErrMissingAPIKey is returned when the selected provider needs a key and none is set.
var ErrMissingAPIKey = errors.New("missing API key")

type LLMConfig struct {
	Provider string        `yaml:"provider" validate:"oneof=openai gemini ollama"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey   string        `yaml:"-"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"` // Per request
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider" validate:"oneof=openai gemini ollama"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	APIKey   string `yaml:"-"`
	Cache    bool   `yaml:"cache"`
}

type CategorizationConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	MaxDocumentChars    int     `yaml:"max_document_chars" validate:"gte=1000"`
}

type GenerationConfig struct {
	BatchSize int                                           `yaml:"batch_size" validate:"gte=1,lte=50"`
	Ranges    map[entities.GAMPCategory]entities.CountRange `yaml:"ranges" validate:"dive,keys,gampcategory,endkeys"`
}

type RetrievalConfig struct {
	TopK         int `yaml:"top_k" validate:"gte=1"`
	ChunkSize    int `yaml:"chunk_size" validate:"gte=100"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

type PipelineConfig struct {
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type PathsConfig struct {
	DataDir   string `yaml:"data_dir" validate:"required"`
	OutputDir string `yaml:"output_dir" validate:"required"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type WatchConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// Config is the full oqgen configuration.
type Config struct {
	LLM            LLMConfig            `yaml:"llm"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Categorization CategorizationConfig `yaml:"categorization"`
	Generation     GenerationConfig     `yaml:"generation"`
	Retrieval      RetrievalConfig      `yaml:"retrieval"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	Paths          PathsConfig          `yaml:"paths"`
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Watch          WatchConfig          `yaml:"watch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Timeout:  2 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Cache:    true,
		},
		Categorization: CategorizationConfig{
			ConfidenceThreshold: usecases.DefaultConfidenceThreshold,
			MaxDocumentChars:    usecases.DefaultMaxDocumentChars,
		},
		Generation: GenerationConfig{
			BatchSize: usecases.DefaultBatchSize,
			Ranges:    entities.DefaultCountRanges(),
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			ChunkSize:    1000,
			ChunkOverlap: 100,
		},
		Pipeline: PipelineConfig{Timeout: 30 * time.Minute},
		Paths: PathsConfig{
			DataDir:   "./data",
			OutputDir: "./output",
		},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
		Watch: WatchConfig{
			Dir:      "./inbox",
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load builds the configuration. path may be empty; a named file that does not exist is an error.
// The result is not validated, so callers can still apply flag overrides before Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("OQGEN_LLM_PROVIDER", &cfg.LLM.Provider)
	setString("OQGEN_LLM_MODEL", &cfg.LLM.Model)
	setString("OQGEN_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("OQGEN_EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	setString("OQGEN_EMBEDDING_MODEL", &cfg.Embedding.Model)
	setString("OQGEN_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	setString("OQGEN_DATA_DIR", &cfg.Paths.DataDir)
	setString("OQGEN_OUTPUT_DIR", &cfg.Paths.OutputDir)
	setString("OQGEN_LOG_LEVEL", &cfg.Logging.Level)
	setString("OQGEN_SERVER_ADDR", &cfg.Server.Addr)
	setString("OQGEN_METRICS_TEXTFILE", &cfg.Metrics.Textfile)

	if v := os.Getenv("OQGEN_CONFIDENCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OQGEN_CONFIDENCE_THRESHOLD: %w", err)
		}
		cfg.Categorization.ConfidenceThreshold = f
	}
	if v := os.Getenv("OQGEN_PIPELINE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OQGEN_PIPELINE_TIMEOUT: %w", err)
		}
		cfg.Pipeline.Timeout = d
	}

	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		if cfg.LLM.Provider == ProviderOllama && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = v
		}
		if cfg.Embedding.Provider == ProviderOllama && cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = v
		}
	}

	cfg.LLM.APIKey = apiKey(cfg.LLM.Provider)
	cfg.Embedding.APIKey = apiKey(cfg.Embedding.Provider)
	return nil
}

func apiKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// Validate checks field constraints and that every selected cloud provider has a key.
func (c *Config) Validate() error {
	if err := entities.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.LLM.Provider != ProviderOllama && c.LLM.APIKey == "" {
		return fmt.Errorf("%w for llm provider %s", ErrMissingAPIKey, c.LLM.Provider)
	}
	if c.Embedding.Provider != ProviderOllama && c.Embedding.APIKey == "" {
		return fmt.Errorf("%w for embedding provider %s", ErrMissingAPIKey, c.Embedding.Provider)
	}
	return nil
}
