package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the static configuration object handed to every component at
// startup. Values come from the environment, optionally seeded from a .env
// file in the working directory.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	// OperatorID is the Discord user the persona talks to. One persona,
	// one operator.
	OperatorID string `env:"OPERATOR_ID,required"`

	PersonaID   string `env:"PERSONA_ID" envDefault:"lumi"`
	PersonaName string `env:"PERSONA_NAME" envDefault:"Lumi"`

	DBPath   string `env:"DB_PATH" envDefault:"data/lumi.db"`
	LogFile  string `env:"LOG_FILE" envDefault:"data/lumi.log"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	AI       AIConfig
	Embed    EmbedConfig
	Behavior BehaviorConfig
}

// AIConfig configures the text-generation service client.
type AIConfig struct {
	BaseURL string `env:"AI_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	APIKey  string `env:"AI_API_KEY"`
	Model   string `env:"AI_MODEL" envDefault:"deepseek/deepseek-chat"`
	// AnalyticsModel serves consolidation and planning requests; falls back
	// to Model when empty.
	AnalyticsModel string `env:"AI_ANALYTICS_MODEL"`
	TimeoutSeconds int    `env:"AI_TIMEOUT_SECONDS" envDefault:"30"`
}

// EmbedConfig configures the optional embedding provider for the similarity
// index. Provider "none" disables the vector path; retrieval then serves
// from the keyword index only.
type EmbedConfig struct {
	Provider string `env:"EMBED_PROVIDER" envDefault:"none"` // none | ollama | openai
	BaseURL  string `env:"EMBED_BASE_URL"`
	APIKey   string `env:"EMBED_API_KEY"`
	Model    string `env:"EMBED_MODEL" envDefault:"nomic-embed-text"`
}

// BehaviorConfig holds the behavior knobs of the initiative engine and the
// consciousness cycle.
type BehaviorConfig struct {
	BaseInitiativeChance float64 `env:"BASE_INITIATIVE_CHANCE" envDefault:"0.30"`
	MinInitiativeGap     float64 `env:"MIN_HOURS_BETWEEN_INITIATIVES" envDefault:"2"`
	MaxDailyInitiatives  int     `env:"MAX_DAILY_INITIATIVES" envDefault:"8"`
	SleepStartHour       int     `env:"SLEEP_START_HOUR" envDefault:"23"`
	SleepEndHour         int     `env:"SLEEP_END_HOUR" envDefault:"7"`
	TickMinutes          int     `env:"TICK_MINUTES" envDefault:"5"`
	ConsolidationHour    int     `env:"CONSOLIDATION_HOUR" envDefault:"4"`
	MoodVolatility       float64 `env:"MOOD_VOLATILITY" envDefault:"0.15"`
	// EnergyBaseline is where waking energy drifts toward, one point per
	// tick. Zero disables the drift.
	EnergyBaseline int `env:"DAYTIME_ENERGY_BASELINE" envDefault:"70"`

	WorkingMemoryCap int `env:"WORKING_MEMORY_CAP" envDefault:"50"`
	DailyMemoryCap   int `env:"DAILY_MEMORY_CAP" envDefault:"20"`
	MinImportance    int `env:"MIN_MEMORY_IMPORTANCE" envDefault:"3"`
}

// MinGap returns the initiative cooldown as a duration.
func (b BehaviorConfig) MinGap() time.Duration {
	return time.Duration(b.MinInitiativeGap * float64(time.Hour))
}

// New loads configuration from the environment. A missing .env file is fine;
// missing required variables are not.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	b := &c.Behavior
	if b.BaseInitiativeChance < 0 || b.BaseInitiativeChance > 1 {
		return fmt.Errorf("BASE_INITIATIVE_CHANCE must be in [0,1], got %v", b.BaseInitiativeChance)
	}
	if b.SleepStartHour < 0 || b.SleepStartHour > 23 || b.SleepEndHour < 0 || b.SleepEndHour > 23 {
		return fmt.Errorf("sleep hours must be in [0,23]")
	}
	if b.TickMinutes <= 0 {
		return fmt.Errorf("TICK_MINUTES must be positive, got %d", b.TickMinutes)
	}
	if b.ConsolidationHour < 0 || b.ConsolidationHour > 23 {
		return fmt.Errorf("CONSOLIDATION_HOUR must be in [0,23], got %d", b.ConsolidationHour)
	}
	if b.WorkingMemoryCap <= 0 || b.DailyMemoryCap <= 0 {
		return fmt.Errorf("memory caps must be positive")
	}
	if b.EnergyBaseline < 0 || b.EnergyBaseline > 100 {
		return fmt.Errorf("DAYTIME_ENERGY_BASELINE must be in [0,100], got %d", b.EnergyBaseline)
	}
	if c.AI.AnalyticsModel == "" {
		c.AI.AnalyticsModel = c.AI.Model
	}
	return nil
}
