package config

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first env file found among envFilePath (searching parent
// directories), falls back to ./.env, then populates App from the
// environment.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()

	for _, path := range envFilePath {
		foundPath, err := FindEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path)
			continue
		}
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		logger.Info("Loaded environment file", "path", foundPath)
		return loadFromEnv()
	}

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found in current directory")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"provider", cfg.ExchangeRateProvider.Driver,
		"provider_url", cfg.ExchangeRateProvider.URL,
		"provider_api_key", maskValue(cfg.ExchangeRateProvider.APIKey),
		"cache", cfg.ExchangeRateCache.Driver,
		"cache_ttl", cfg.ExchangeRateCache.TTL,
		"preferences", cfg.Preferences.Driver,
		"eventbus", cfg.EventBus.Driver,
	)
	return &cfg, nil
}

func maskValue(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
