package cache

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines cache connection and expiry settings.
type Config struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// LoadConfig loads cache config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Addr:       getenvDefault("REDIS_ADDR", "localhost:6379"),
		Password:   os.Getenv("REDIS_PASSWORD"),
		DB:         getenvIntDefault("REDIS_DB", 0),
		TTLSeconds: getenvIntDefault("CACHE_TTL_SECONDS", int(DefaultTTL/time.Second)),
	}

	if path := os.Getenv("CACHE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Addr == "" {
		return cfg, errors.New("cache: addr required")
	}
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = int(DefaultTTL / time.Second)
	}
	return cfg, nil
}

// TTL returns the configured entry TTL.
func (c Config) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
