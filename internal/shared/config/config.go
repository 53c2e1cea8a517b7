package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"farmdata-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string `envconfig:"PORT" default:"8080"`
	Env             string `envconfig:"ENV" default:"dev"`
	CORSAllowOrigin List   `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:5173"`

	ObjectStoreType   string `envconfig:"OBJECT_STORE" default:"local"`
	LocalStoreDir     string `envconfig:"LOCAL_STORE_DIR" default:"./data"`
	AWSRegion         string `envconfig:"AWS_REGION"`
	S3Bucket          string `envconfig:"S3_BUCKET"`
	S3Prefix          string `envconfig:"S3_PREFIX"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	SSEKMSKeyID       string `envconfig:"SSE_KMS_KEY_ID"`

	OpenAIAPIKey           string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL          string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAITimeoutSeconds   int           `envconfig:"OPENAI_TIMEOUT_SECONDS" default:"120"`
	OpenAITimeout          time.Duration `ignored:"true"`
	LLMModel               string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	ReasoningModelPrefixes List          `envconfig:"LLM_REASONING_MODEL_PREFIXES"`
	AnalysesPerMinute      float64       `envconfig:"RATE_LIMIT_ANALYSES_PER_MINUTE" default:"10"`
	DatabaseURL            string        `envconfig:"DATABASE_URL"`
	JWTSecret              string        `envconfig:"JWT_SECRET"`
	GoogleClientID         string        `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret     string        `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL      string        `envconfig:"GOOGLE_REDIRECT_URL"`
	UIRedirectURL          string        `envconfig:"UI_REDIRECT_URL"`
}

// DefaultModel is used when neither the request nor LLM_MODEL names one.
const DefaultModel = "gpt-4o-mini"

// List is a comma separated env value. Blank entries are dropped.
type List []string

// Decode implements envconfig.Decoder.
func (l *List) Decode(value string) error {
	var out List
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*l = out
	return nil
}

// Load reads configuration from the environment, after best-effort .env files.
func Load() (Config, error) {
	loadEnvFiles(".env", "cmd/.env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{
			"env":  cfg.Env,
			"hint": "production startup requires DATABASE_URL",
		})
	}
	return cfg, nil
}

// normalize canonicalizes enum-like values and fills blanks left by empty env vars.
func (c *Config) normalize() error {
	c.Env = normalizeEnv(c.Env)
	c.ObjectStoreType = normalizeStoreType(c.ObjectStoreType)
	if strings.TrimSpace(c.LLMModel) == "" {
		c.LLMModel = DefaultModel
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.OpenAITimeoutSeconds <= 0 {
		return fmt.Errorf("config: OPENAI_TIMEOUT_SECONDS must be positive, got %d", c.OpenAITimeoutSeconds)
	}
	if c.AnalysesPerMinute < 0 {
		return fmt.Errorf("config: RATE_LIMIT_ANALYSES_PER_MINUTE must not be negative, got %v", c.AnalysesPerMinute)
	}
	c.OpenAITimeout = time.Duration(c.OpenAITimeoutSeconds) * time.Second
	return nil
}

// IsDevLike reports whether env allows dev conveniences such as guest identities.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
