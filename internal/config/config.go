package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	BotToken string

	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Notifier NotifierConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ProviderConfig points at the third-party booking site.
type ProviderConfig struct {
	ListingURL   string
	SignupURL    string
	RequestDelay time.Duration
	Timeout      time.Duration
}

type NotifierConfig struct {
	SendDelay    time.Duration
	FetchRetries uint64
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	// Running without a .env file is fine, the environment takes over.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		BotToken: v.GetString("BOT_TOKEN"),
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Provider: ProviderConfig{
			ListingURL:   v.GetString("PROVIDER_LISTING_URL"),
			SignupURL:    v.GetString("PROVIDER_SIGNUP_URL"),
			RequestDelay: parseDuration(v.GetString("PROVIDER_REQUEST_DELAY"), 3*time.Second),
			Timeout:      parseDuration(v.GetString("PROVIDER_TIMEOUT"), 30*time.Second),
		},
		Notifier: NotifierConfig{
			SendDelay:    parseDuration(v.GetString("NOTIFIER_SEND_DELAY"), time.Second),
			FetchRetries: v.GetUint64("NOTIFIER_FETCH_RETRIES"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "unisport_bot")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("PROVIDER_LISTING_URL", "https://unisport.koeln/e65/e41657/e41692/k_content41702/publicGetData")
	v.SetDefault("PROVIDER_SIGNUP_URL", "https://isis.verw.uni-koeln.de/cgi/anmeldung.fcgi")
	v.SetDefault("PROVIDER_REQUEST_DELAY", "3s")
	v.SetDefault("PROVIDER_TIMEOUT", "30s")

	v.SetDefault("NOTIFIER_SEND_DELAY", "1s")
	v.SetDefault("NOTIFIER_FETCH_RETRIES", 3)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
