package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// PlaceholderArchive is the sentinel left in sample configs; it counts as unset.
const PlaceholderArchive = "YOUR_CHANNEL_ID"

var ErrMissingToken = errors.New("BOT_TOKEN is missing in environment variables")

type Config struct {
	App     AppConfig
	Bot     BotConfig
	Index   IndexConfig
	Session SessionConfig
}

type AppConfig struct {
	Environment    string        `validate:"required"`
	LogFilePath    string        `validate:"required"`
	HealthAddr     string        // empty disables the health server
	RequestTimeout time.Duration `validate:"gt=0"`
}

type BotConfig struct {
	Token          string
	ArchiveChannel string        // "@username" or numeric chat id
	PollTimeout    time.Duration `validate:"gt=0"`
	SearchLimit    int           `validate:"min=1,max=10"`
}

type IndexConfig struct {
	Path string `validate:"required"`
}

type SessionConfig struct {
	Backend  string        `validate:"oneof=memory redis"`
	TTL      time.Duration `validate:"gt=0"`
	RedisURL string        `validate:"required_if=Backend redis"`
}

// Load reads .env (when present) and the process environment. envFile may be
// empty, in which case ./.env is tried.
func Load(envFile string) *Config {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:    getEnv("GO_ENV", "development"),
			LogFilePath:    getEnv("LOG_FILE_PATH", "logs/shelfbot.log"),
			HealthAddr:     getEnv("HEALTH_ADDR", ""),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		},
		Bot: BotConfig{
			Token:          getEnv("BOT_TOKEN", ""),
			ArchiveChannel: getEnv("ARCHIVE_CHANNEL", "@books921383837"),
			PollTimeout:    getEnvAsDuration("POLL_TIMEOUT", 10*time.Second),
			SearchLimit:    getEnvAsInt("SEARCH_LIMIT", 5),
		},
		Index: IndexConfig{
			Path: getEnv("DB_PATH", "./shelfbot.db"),
		},
		Session: SessionConfig{
			Backend:  getEnv("SESSION_BACKEND", "memory"),
			TTL:      getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			RedisURL: getEnv("REDIS_URL", ""),
		},
	}
}

// Validate checks structural constraints. A missing token is reported as
// ErrMissingToken so callers can treat it as fatal. The archive channel is not
// checked here: an unconfigured archive is reported per search attempt.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return ErrMissingToken
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ArchiveConfigured reports whether the archive identifier is usable.
func (c BotConfig) ArchiveConfigured() bool {
	return c.ArchiveChannel != "" && c.ArchiveChannel != PlaceholderArchive
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
