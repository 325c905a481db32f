// Package config handles loading and validating the narrator configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the narrator daemon and CLI.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Rewrite    RewriteConfig    `mapstructure:"rewrite"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Validation ValidationConfig `mapstructure:"validation"`
	Output     OutputConfig     `mapstructure:"output"`
	History    HistoryConfig    `mapstructure:"history"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	Port         int  `mapstructure:"port"`
	MaxMessageMB int  `mapstructure:"max_message_mb"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Port        int  `mapstructure:"port"`
	MaxUploadMB int  `mapstructure:"max_upload_mb"`
}

// OpenAIConfig holds OpenAI API settings shared by rewriting and premium speech.
// An empty APIKey disables both.
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	RewriteModel    string        `mapstructure:"rewrite_model"`
	SpeechModel     string        `mapstructure:"speech_model"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"` // zero means the HTTP client default (none)
}

// RewriteConfig holds the default narration rewrite settings.
type RewriteConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Style      string  `mapstructure:"style"`      // storytelling, professional, casual
	Creativity float64 `mapstructure:"creativity"` // sampling temperature
	ChunkSize  int     `mapstructure:"chunk_size"`
}

// TTSConfig selects and configures the text-to-speech engines.
type TTSConfig struct {
	Engine    string        `mapstructure:"engine"` // "openai", "gtts" or "pyttsx3"
	ChunkSize int           `mapstructure:"chunk_size"`
	Voices    string        `mapstructure:"voices"` // optional YAML catalogue override
	OpenAI    OpenAIVoice   `mapstructure:"openai"`
	GTTS      GTTSConfig    `mapstructure:"gtts"`
	Offline   OfflineConfig `mapstructure:"offline"`
}

// OpenAIVoice holds premium speech defaults.
type OpenAIVoice struct {
	Voice string  `mapstructure:"voice"`
	Speed float64 `mapstructure:"speed"` // 0.25 to 4.0 multiplier
}

// GTTSConfig holds Google Translate speech defaults.
type GTTSConfig struct {
	Language string `mapstructure:"language"`
	Slow     bool   `mapstructure:"slow"`
	TLD      string `mapstructure:"tld"`      // accent domain, e.g. "co.uk"
	BaseURL  string `mapstructure:"base_url"` // overrides https://translate.google.{tld}
}

// OfflineConfig holds the local speech engine settings.
type OfflineConfig struct {
	Command string  `mapstructure:"command"` // e.g. "espeak-ng" or "espeak-ng --path /opt/espeak"
	Rate    int     `mapstructure:"rate"`    // words per minute
	Volume  float64 `mapstructure:"volume"`  // 0.0 to 1.0
	Gender  string  `mapstructure:"gender"`  // preferred voice keyword
}

// ValidationConfig bounds the extracted text length.
type ValidationConfig struct {
	MinLength int `mapstructure:"min_length"`
	MaxLength int `mapstructure:"max_length"`
}

// OutputConfig controls where and how CLI output files are written.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Suffix string `mapstructure:"suffix"`
}

// HistoryConfig controls the optional SQLite run history.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	MaxRuns int    `mapstructure:"max_runs"` // 0 keeps every run
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from .env, file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./narrator.yaml, ./configs/narrator.yaml, /etc/narrator/narrator.yaml.
func Load(configFile string) (*Config, error) {
	// A .env in the working directory is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.grpc.max_message_mb", 64)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.max_upload_mb", 50)
	v.SetDefault("openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.rewrite_model", "gpt-4o-mini")
	v.SetDefault("openai.speech_model", "tts-1")
	v.SetDefault("openai.max_output_tokens", 4000)
	v.SetDefault("openai.timeout", 0)
	v.SetDefault("rewrite.enabled", true)
	v.SetDefault("rewrite.style", "storytelling")
	v.SetDefault("rewrite.creativity", 0.7)
	v.SetDefault("rewrite.chunk_size", 4000)
	v.SetDefault("tts.engine", "gtts")
	v.SetDefault("tts.chunk_size", 5000)
	v.SetDefault("tts.voices", "")
	v.SetDefault("tts.openai.voice", "alloy")
	v.SetDefault("tts.openai.speed", 1.0)
	v.SetDefault("tts.gtts.language", "en")
	v.SetDefault("tts.gtts.slow", false)
	v.SetDefault("tts.gtts.tld", "com")
	v.SetDefault("tts.gtts.base_url", "")
	v.SetDefault("tts.offline.command", "espeak-ng")
	v.SetDefault("tts.offline.rate", 150)
	v.SetDefault("tts.offline.volume", 1.0)
	v.SetDefault("tts.offline.gender", "female")
	v.SetDefault("validation.min_length", 10)
	v.SetDefault("validation.max_length", 100000)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.suffix", "_audiobook")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "data/narrator.db")
	v.SetDefault("history.max_runs", 1000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("narrator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/narrator")
	}

	// Environment variables: NARRATOR_TTS_ENGINE, NARRATOR_REWRITE_CHUNK_SIZE, etc.
	v.SetEnvPrefix("NARRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.OpenAI.APIKey = resolveEnvRef(cfg.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
// Creativity is deliberately left unchecked; the rewrite backend rejects bad values.
func (c *Config) Validate() error {
	var errs []error
	if c.Rewrite.ChunkSize < 1000 || c.Rewrite.ChunkSize > 10000 {
		errs = append(errs, fmt.Errorf("rewrite.chunk_size must be within 1000-10000, got %d", c.Rewrite.ChunkSize))
	}
	if c.TTS.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("tts.chunk_size must be positive, got %d", c.TTS.ChunkSize))
	}
	switch strings.ToLower(c.TTS.Engine) {
	case "openai", "gtts", "pyttsx3":
	default:
		errs = append(errs, fmt.Errorf("tts.engine %q is not one of openai, gtts, pyttsx3", c.TTS.Engine))
	}
	switch strings.ToLower(c.Rewrite.Style) {
	case "storytelling", "professional", "casual":
	default:
		errs = append(errs, fmt.Errorf("rewrite.style %q is not one of storytelling, professional, casual", c.Rewrite.Style))
	}
	if c.Validation.MinLength > c.Validation.MaxLength {
		errs = append(errs, fmt.Errorf("validation.min_length %d exceeds max_length %d", c.Validation.MinLength, c.Validation.MaxLength))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HasOpenAIKey reports whether a rewrite/premium speech credential is configured.
func (c *Config) HasOpenAIKey() bool {
	return c.OpenAI.APIKey != ""
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var
// value. An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		return os.Getenv(envKey)
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
