package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"tax-rag/internal/models"
)

// store types
const (
	StoreWeaviate = "weaviate"
	StoreChromem  = "chromem"
	StorePgVector = "pgvector"
)

// llm providers
const (
	ProviderLangchain = "langchain"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// chunkers
const (
	ChunkerCharacter = "character"
	ChunkerRecursive = "recursive"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	RAG         RAGConfig         `yaml:"rag"`
	Populate    PopulateConfig    `yaml:"populate"`
	Redis       RedisConfig       `yaml:"redis"`
	S3          S3Config          `yaml:"s3"`
	Sentry      SentryConfig      `yaml:"sentry"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"-"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	URL        string        `yaml:"url"`
	Collection string        `yaml:"collection"`
	Vectorizer string        `yaml:"vectorizer"`
	Modules    []string      `yaml:"modules"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	Chromem    ChromemConfig `yaml:"chromem"`
}

type ChromemConfig struct {
	// Path enables the persistent DB. Empty keeps everything in memory.
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	URL        string `yaml:"-"`
	Driver     string `yaml:"driver"`
	Dimensions int    `yaml:"dimensions"`
	Debug      bool   `yaml:"debug"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Chunker      string `yaml:"chunker"`
	MinResults   int    `yaml:"min_results"`
	MaxResults   int    `yaml:"max_results"`
}

type PopulateConfig struct {
	Files   []string      `yaml:"files"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type RedisConfig struct {
	URL string `yaml:"-"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type SentryConfig struct {
	DSN              string  `yaml:"-"`
	Environment      string  `yaml:"environment"`
	TracesSampleRate float64 `yaml:"traces_sample_rate"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides holds the environment variables. Names stay flat to match
// existing deployments.
type envOverrides struct {
	APIKey            string `envconfig:"CHAT_GPT_API_KEY"`
	LocalURL          string `envconfig:"LOCAL_URL"`
	SchemaName        string `envconfig:"WEAVIATE_SCHEMA_NAME"`
	VectorStore       string `envconfig:"VECTOR_STORE"`
	LLMProvider       string `envconfig:"LLM_PROVIDER"`
	LLMModel          string `envconfig:"LLM_MODEL"`
	Port              string `envconfig:"PORT"`
	DatabaseURL       string `envconfig:"DATABASE_URL"`
	RedisURL          string `envconfig:"REDIS_URL"`
	SentryDSN         string `envconfig:"SENTRY_DSN"`
	SentryEnvironment string `envconfig:"SENTRY_ENVIRONMENT"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3Region          string `envconfig:"S3_REGION"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	LogLevel          string `envconfig:"LOG_LEVEL"`
	LogFormat         string `envconfig:"LOG_FORMAT"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "5000",
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
		},
		LLM: LLMConfig{
			Provider: ProviderLangchain,
			Model:    "gpt-3.5-turbo",
			Timeout:  60 * time.Second,
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
			Timeout:  60 * time.Second,
		},
		VectorStore: VectorStoreConfig{
			Type:       StoreWeaviate,
			Vectorizer: models.DefaultVectorizer,
			Modules:    append([]string(nil), models.DefaultVectorizerModules...),
			BatchSize:  models.DefaultBatchSize,
			Timeout:    30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:     "pgdriver",
			Dimensions: 1536,
		},
		RAG: RAGConfig{
			ChunkSize:    models.DefaultChunkSize,
			ChunkOverlap: models.DefaultChunkOverlap,
			Chunker:      ChunkerCharacter,
			MinResults:   models.DefaultMinResults,
			MaxResults:   models.DefaultMaxResults,
		},
		Populate: PopulateConfig{
			Files: []string{
				"./undang undang no 58 tahun 2023 dengan skema tarif.pdf",
				"./UU Nomor 36 Tahun 2008.pdf",
			},
			LockTTL: 30 * time.Minute,
		},
		S3: S3Config{
			Region:       "us-east-1",
			UsePathStyle: true,
		},
		Sentry: SentryConfig{
			Environment:      "development",
			TracesSampleRate: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads the optional yaml file at path, then the environment
// (including a .env file), and validates the result
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, models.NewConfigError("invalid config file "+path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		default:
			return nil, models.NewConfigError("cannot read config file "+path, err)
		}
	}

	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, models.NewConfigError("cannot read environment", err)
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.LLM.Key, env.APIKey)
	set(&c.VectorStore.URL, env.LocalURL)
	set(&c.VectorStore.Collection, env.SchemaName)
	set(&c.VectorStore.Type, env.VectorStore)
	set(&c.LLM.Provider, env.LLMProvider)
	set(&c.LLM.Model, env.LLMModel)
	set(&c.Server.Port, env.Port)
	set(&c.Database.URL, env.DatabaseURL)
	set(&c.Redis.URL, env.RedisURL)
	set(&c.Sentry.DSN, env.SentryDSN)
	set(&c.Sentry.Environment, env.SentryEnvironment)
	set(&c.S3.Endpoint, env.S3Endpoint)
	set(&c.S3.Region, env.S3Region)
	set(&c.S3.AccessKeyID, env.S3AccessKeyID)
	set(&c.S3.SecretAccessKey, env.S3SecretAccessKey)
	set(&c.Log.Level, env.LogLevel)
	set(&c.Log.Format, env.LogFormat)

	// the embedder shares the chat key unless it talks to ollama
	if c.EmbedLLM.Key == "" && c.EmbedLLM.Provider != ProviderOllama {
		c.EmbedLLM.Key = c.LLM.Key
	}
}

// Validate reports every missing or invalid value at once
func (c *Config) Validate() error {
	var problems []string
	missing := func(name string) {
		problems = append(problems, "missing "+name)
	}

	if c.LLM.Key == "" {
		missing("CHAT_GPT_API_KEY")
	}
	if c.VectorStore.Collection == "" {
		missing("WEAVIATE_SCHEMA_NAME")
	}

	switch c.VectorStore.Type {
	case StoreWeaviate:
		if c.VectorStore.URL == "" {
			missing("LOCAL_URL")
		}
	case StorePgVector:
		if c.Database.URL == "" {
			missing("DATABASE_URL")
		}
		if c.Database.Dimensions <= 0 {
			problems = append(problems, "database.dimensions must be positive")
		}
	case StoreChromem:
	default:
		problems = append(problems, fmt.Sprintf("unknown vector store %q", c.VectorStore.Type))
	}

	switch c.LLM.Provider {
	case ProviderLangchain, ProviderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}

	switch c.RAG.Chunker {
	case ChunkerCharacter, ChunkerRecursive:
	default:
		problems = append(problems, fmt.Sprintf("unknown chunker %q", c.RAG.Chunker))
	}

	if c.RAG.ChunkSize <= 0 {
		problems = append(problems, "rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		problems = append(problems, "rag.chunk_overlap must be in [0, chunk_size)")
	}
	if c.RAG.MinResults < 1 || c.RAG.MaxResults < c.RAG.MinResults {
		problems = append(problems, "rag.min_results and rag.max_results must form a positive range")
	}
	if c.VectorStore.BatchSize <= 0 {
		problems = append(problems, "vector_store.batch_size must be positive")
	}

	if len(problems) > 0 {
		return models.NewConfigError(strings.Join(problems, "; "), nil)
	}
	return nil
}

// HasS3 reports whether s3:// document sources can be resolved
func (c *Config) HasS3() bool {
	return c.S3.AccessKeyID != "" && c.S3.SecretAccessKey != ""
}
