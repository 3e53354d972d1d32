package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                          string        `mapstructure:"PORT"`
	AppEnv                        string        `mapstructure:"APP_ENV"`
	LogLevel                      string        `mapstructure:"LOG_LEVEL"`
	DatabasePath                  string        `mapstructure:"DATABASE_PATH"`
	StoreBackend                  string        `mapstructure:"STORE_BACKEND"`
	RedisURL                      string        `mapstructure:"REDIS_URL"`
	SyncEndpoint                  string        `mapstructure:"SYNC_ENDPOINT"`
	SyncDebounce                  time.Duration `mapstructure:"SYNC_DEBOUNCE"`
	SyncMaxRetries                int           `mapstructure:"SYNC_MAX_RETRIES"`
	SyncInitialBackoff            time.Duration `mapstructure:"SYNC_INITIAL_BACKOFF"`
	DiscordClientID               string        `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret           string        `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL            string        `mapstructure:"DISCORD_REDIRECT_URL"`
	DiscordBotToken               string        `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string        `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	JWTSecret                     string        `mapstructure:"JWT_SECRET"`
}

func LoadConfig() *Config {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_PATH", "airbadge.db")
	viper.SetDefault("STORE_BACKEND", "sqlite")
	viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
	viper.SetDefault("SYNC_ENDPOINT", "http://127.0.0.1:8080")
	viper.SetDefault("SYNC_DEBOUNCE", 30*time.Second)
	viper.SetDefault("SYNC_MAX_RETRIES", 3)
	viper.SetDefault("SYNC_INITIAL_BACKOFF", 2*time.Second)
	viper.SetDefault("DISCORD_REDIRECT_URL", "http://127.0.0.1:8080/auth/discord/callback")

	viper.BindEnv("DISCORD_CLIENT_ID")
	viper.BindEnv("DISCORD_CLIENT_SECRET")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")
	viper.BindEnv("JWT_SECRET")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}
