// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix. A .env file in the working directory
// is read first when present; real environment variables take precedence.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Graph sources.
const (
	GraphSourceSeed     = "seed"
	GraphSourceYAML     = "yaml"
	GraphSourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Log      LogConfig
	Graph    GraphConfig
	Adaptive AdaptiveConfig
	Reminder ReminderConfig
	AI       AIConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL runs
// the service on in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings.
type CacheConfig struct {
	URL string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// GraphConfig selects where the knowledge graph is loaded from.
type GraphConfig struct {
	Source string // "seed", "yaml" or "postgres"
	Dir    string // YAML directory when Source is "yaml"
}

// AdaptiveConfig tunes recommendation and review scheduling.
type AdaptiveConfig struct {
	DefaultGrade   int
	MasteryWeight  float64
	DiffWeight     float64
	DepWeight      float64
	RecencyWeight  float64
	MemoryStrength float64 // days
	Locale         string
}

// ReminderConfig controls the background review reminder job.
type ReminderConfig struct {
	Enabled         bool
	IntervalMinutes int
	StartHour       int
	EndHour         int

	// TelegramBotToken delivers reminders over Telegram when set; learner
	// IDs are then used as chat IDs.
	TelegramBotToken string
}

// AIConfig holds configuration for OpenAI-compatible providers.
type AIConfig struct {
	DeepSeek ProviderConfig
	Doubao   ProviderConfig
	// DailyTokenLimit caps tokens per day across providers. Zero disables it.
	DailyTokenLimit int
}

// ProviderConfig holds one provider's credentials.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		Graph: GraphConfig{
			Source: strings.ToLower(envStr("LEARN_GRAPH_SOURCE", GraphSourceSeed)),
			Dir:    envStr("LEARN_GRAPH_DIR", "./knowledge"),
		},
		Adaptive: AdaptiveConfig{
			DefaultGrade:   envInt("LEARN_ADAPTIVE_DEFAULT_GRADE", 4),
			MasteryWeight:  envFloat("LEARN_ADAPTIVE_MASTERY_WEIGHT", 0.4),
			DiffWeight:     envFloat("LEARN_ADAPTIVE_DIFFICULTY_WEIGHT", 0.3),
			DepWeight:      envFloat("LEARN_ADAPTIVE_DEPENDENCY_WEIGHT", 0.2),
			RecencyWeight:  envFloat("LEARN_ADAPTIVE_RECENCY_WEIGHT", 0.1),
			MemoryStrength: envFloat("LEARN_ADAPTIVE_MEMORY_STRENGTH", 30),
			Locale:         envStr("LEARN_ADAPTIVE_LOCALE", "zh"),
		},
		Reminder: ReminderConfig{
			Enabled:         envBool("LEARN_REMINDER_ENABLED", false),
			IntervalMinutes: envInt("LEARN_REMINDER_INTERVAL", 60),
			StartHour:       envInt("LEARN_REMINDER_START_HOUR", 8),
			EndHour:         envInt("LEARN_REMINDER_END_HOUR", 20),

			TelegramBotToken: envStr("LEARN_TELEGRAM_BOT_TOKEN", ""),
		},
		AI: AIConfig{
			DeepSeek: ProviderConfig{
				APIKey:  envStr("LEARN_AI_DEEPSEEK_API_KEY", ""),
				BaseURL: envStr("LEARN_AI_DEEPSEEK_BASE_URL", ""),
				Model:   envStr("LEARN_AI_DEEPSEEK_MODEL", ""),
			},
			Doubao: ProviderConfig{
				APIKey:  envStr("LEARN_AI_DOUBAO_API_KEY", ""),
				BaseURL: envStr("LEARN_AI_DOUBAO_BASE_URL", ""),
				Model:   envStr("LEARN_AI_DOUBAO_MODEL", ""),
			},
			DailyTokenLimit: envInt("LEARN_AI_DAILY_TOKEN_LIMIT", 0),
		},
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Adaptive.DefaultGrade < 4 || c.Adaptive.DefaultGrade > 6 {
		return fmt.Errorf("LEARN_ADAPTIVE_DEFAULT_GRADE must be 4, 5 or 6, got %d", c.Adaptive.DefaultGrade)
	}

	weights := []float64{c.Adaptive.MasteryWeight, c.Adaptive.DiffWeight, c.Adaptive.DepWeight, c.Adaptive.RecencyWeight}
	sum := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("recommendation weights must be finite and non-negative, got %v", weights)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("recommendation weights must not all be zero")
	}

	if c.Adaptive.MemoryStrength <= 0 {
		return fmt.Errorf("LEARN_ADAPTIVE_MEMORY_STRENGTH must be positive, got %v", c.Adaptive.MemoryStrength)
	}

	switch c.Graph.Source {
	case GraphSourceSeed:
	case GraphSourceYAML:
		if c.Graph.Dir == "" {
			return fmt.Errorf("LEARN_GRAPH_DIR is required when LEARN_GRAPH_SOURCE is yaml")
		}
	case GraphSourcePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("LEARN_DATABASE_URL is required when LEARN_GRAPH_SOURCE is postgres")
		}
	default:
		return fmt.Errorf("LEARN_GRAPH_SOURCE must be 'seed', 'yaml' or 'postgres', got %q", c.Graph.Source)
	}

	switch c.Adaptive.Locale {
	case "zh", "en":
	default:
		return fmt.Errorf("LEARN_ADAPTIVE_LOCALE must be 'zh' or 'en', got %q", c.Adaptive.Locale)
	}

	if c.Reminder.Enabled {
		if c.Reminder.IntervalMinutes <= 0 {
			return fmt.Errorf("LEARN_REMINDER_INTERVAL must be positive, got %d", c.Reminder.IntervalMinutes)
		}
		if c.Reminder.StartHour < 0 || c.Reminder.EndHour > 23 || c.Reminder.StartHour > c.Reminder.EndHour {
			return fmt.Errorf("reminder hours must satisfy 0 <= start <= end <= 23, got %d-%d",
				c.Reminder.StartHour, c.Reminder.EndHour)
		}
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.DeepSeek.APIKey != "" || c.AI.Doubao.APIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
