package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Provider       string        `envconfig:"MODEL_PROVIDER" default:"gemini" validate:"oneof=gemini openai ollama"`
	Model          string        `envconfig:"MODEL_NAME"`
	APIKey         string        `envconfig:"MODEL_API_KEY"`
	GeminiAPIKey   string        `envconfig:"GEMINI_API_KEY"`
	ViteGeminiKey  string        `envconfig:"VITE_GEMINI_API_KEY"`
	OllamaURL      string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434" validate:"url"`
	RequestTimeout time.Duration `envconfig:"MODEL_REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`

	MaxBatchSize     int   `envconfig:"MAX_BATCH_SIZE" default:"10" validate:"min=1,max=100"`
	SingleMaxTokens  int32 `envconfig:"SINGLE_MAX_TOKENS" default:"128" validate:"min=1"`
	PerItemMaxTokens int32 `envconfig:"PER_ITEM_MAX_TOKENS" default:"64" validate:"min=1"`
	StripMarkdown    bool  `envconfig:"STRIP_MARKDOWN" default:"false"`

	BreakerMaxRequests         uint32        `envconfig:"BREAKER_MAX_REQUESTS" default:"1"`
	BreakerInterval            time.Duration `envconfig:"BREAKER_INTERVAL" default:"60s"`
	BreakerTimeout             time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
	BreakerConsecutiveFailures uint32        `envconfig:"BREAKER_CONSECUTIVE_FAILURES" default:"5" validate:"min=1"`

	HTTPAddr         string `envconfig:"HTTP_ADDR" default:":8000"`
	CORSAllowOrigins string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	WarmUp           bool   `envconfig:"WARM_UP" default:"true"`

	KafkaBroker       string `envconfig:"KAFKA_BROKER" default:"localhost:29092"`
	KafkaGroupID      string `envconfig:"KAFKA_CONSUMER_GROUP_ID" default:"emotiflow-consumer-group"`
	KafkaRequestTopic string `envconfig:"KAFKA_REQUEST_TOPIC" default:"emotion-requests"`
	KafkaResultTopic  string `envconfig:"KAFKA_RESULT_TOPIC" default:"emotion-results"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultCredential is the model credential used when a caller does not send
// one. MODEL_API_KEY wins over the Gemini-specific variables.
func (c *Config) DefaultCredential() string {
	for _, key := range []string{c.APIKey, c.GeminiAPIKey, c.ViteGeminiKey} {
		if key != "" {
			return key
		}
	}
	return ""
}
