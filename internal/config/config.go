package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" validate:"required"`
	MaxConns int32  `yaml:"max_conns" validate:"gte=0"`
}

// RedisConfig is optional; an empty URL disables caching and locks.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	OpenAIKey          string        `yaml:"openai_key"`
	OpenAIBaseURL      string        `yaml:"openai_base_url"`
	GeminiKey          string        `yaml:"gemini_key"`
	DefaultModel       string        `yaml:"default_model"`
	DefaultTemperature float64       `yaml:"default_temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens    int           `yaml:"max_output_tokens" validate:"gte=0"`
	MaxPromptTokens    int           `yaml:"max_prompt_tokens" validate:"gte=0"` // 0 disables the budget check
	ConcurrentLimit    int           `yaml:"concurrent_limit" validate:"gte=0"`  // max concurrent generation calls
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

type WorkerConfig struct {
	Enabled          bool          `yaml:"enabled"` // run the periodic scheduler in cmd/app
	BatchSize        int           `yaml:"batch_size" validate:"gte=1"`
	MaxBatchSize     int           `yaml:"max_batch_size" validate:"gte=1,gtefield=BatchSize"`
	Concurrency      int           `yaml:"concurrency" validate:"gte=1,lte=64"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	ContentChunkSize int           `yaml:"content_chunk_size" validate:"gte=1,lte=1000"`
	EditionLockTTL   time.Duration `yaml:"edition_lock_ttl"`
}

type APIConfig struct {
	Port      int           `yaml:"port" validate:"gte=0,lte=65535"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Worker   WorkerConfig   `yaml:"worker"`
	API      APIConfig      `yaml:"api"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes YAML, applies environment overrides and defaults and validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.GeminiKey = v
	}
	if v := os.Getenv("API_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.DefaultTemperature == 0 {
		cfg.AI.DefaultTemperature = 0.7
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 4096
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 2 * time.Minute
	}

	if cfg.Worker.BatchSize <= 0 {
		cfg.Worker.BatchSize = 10
	}
	if cfg.Worker.MaxBatchSize <= 0 {
		cfg.Worker.MaxBatchSize = 50
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 1
	}
	if cfg.Worker.JobTimeout <= 0 {
		cfg.Worker.JobTimeout = 5 * time.Minute
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = time.Minute
	}
	if cfg.Worker.ContentChunkSize <= 0 {
		cfg.Worker.ContentChunkSize = 50
	}
	if cfg.Worker.EditionLockTTL <= 0 {
		cfg.Worker.EditionLockTTL = 2 * time.Minute
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.TokenTTL <= 0 {
		cfg.API.TokenTTL = 24 * time.Hour
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
