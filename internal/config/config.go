package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Chunk     ChunkConfig     `yaml:"chunk" mapstructure:"chunk"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Email     EmailConfig     `yaml:"email" mapstructure:"email"`
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the text-generation gateway.
type LLMConfig struct {
	// Provider selects the backend: "http" (generic prompt endpoint) or "anthropic".
	Provider    string `yaml:"provider" mapstructure:"provider"`
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-request timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ChunkConfig bounds chunk size and the overlap carried between chunks.
type ChunkConfig struct {
	MaxChars     int `yaml:"max_chars" mapstructure:"max_chars"`
	OverlapChars int `yaml:"overlap_chars" mapstructure:"overlap_chars"`
	// Highlight sizes apply to discrepancy detection over the source PDF.
	HighlightMaxChars     int `yaml:"highlight_max_chars" mapstructure:"highlight_max_chars"`
	HighlightOverlapChars int `yaml:"highlight_overlap_chars" mapstructure:"highlight_overlap_chars"`
}

// WorkerConfig configures the per-document chunk worker pool.
type WorkerConfig struct {
	PoolSize       int `yaml:"pool_size" mapstructure:"pool_size"`
	RequestDelayMs int `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
}

// RequestDelay returns the minimum spacing between LLM requests.
func (c WorkerConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

// RetryConfig configures LLM call retries.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoff     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier     float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the circuit breaker in front of the LLM endpoint.
type CircuitConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int  `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StorageConfig configures where artifacts are downloaded from and uploaded to.
type StorageConfig struct {
	// Backend is "local" or "http".
	Backend    string `yaml:"backend" mapstructure:"backend"`
	LocalDir   string `yaml:"local_dir" mapstructure:"local_dir"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	AuthToken  string `yaml:"auth_token" mapstructure:"auth_token"`
	WorkDir    string `yaml:"work_dir" mapstructure:"work_dir"`
	RatePerSec int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// EmailConfig holds SMTP settings for result notifications.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	Subject  string `yaml:"subject" mapstructure:"subject"`
}

// SchemaConfig points at an optional YAML field schema.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// BatchConfig configures multi-termsheet runs.
type BatchConfig struct {
	MaxConcurrentTermsheets int `yaml:"max_concurrent_termsheets" mapstructure:"max_concurrent_termsheets"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TERMSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.provider", "http")
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("chunk.max_chars", 2000)
	v.SetDefault("chunk.overlap_chars", 200)
	v.SetDefault("chunk.highlight_max_chars", 800)
	v.SetDefault("chunk.highlight_overlap_chars", 150)
	v.SetDefault("worker.pool_size", 2)
	v.SetDefault("worker.request_delay_ms", 1000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.enabled", true)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./artifacts")
	v.SetDefault("storage.work_dir", "/tmp/termsheet")
	v.SetDefault("storage.rate_per_sec", 5)
	v.SetDefault("email.port", 587)
	v.SetDefault("email.subject", "Termsheet validation results")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("batch.max_concurrent_termsheets", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
