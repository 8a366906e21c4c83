package bot

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`

	// GuildID registers commands to a single guild instead of globally.
	GuildID  string `env:"DISCORD_GUILD_ID"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadDotEnv loads variables from a .env file in the working directory, if present.
// Variables already set in the environment take precedence.
func LoadDotEnv() {
	err := godotenv.Load()
	switch {
	case err == nil:
		slog.Debug("loaded .env file")
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("found no .env file")
	default:
		slog.Warn("failed to load .env file", "error", err)
	}
}

// LoadConfig loads configuration from environment variables.
// Returns an error if required fields are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SlogLevel converts LogLevel to a slog level. Unknown values give info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
