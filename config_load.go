package gatekeep

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied by [LoadConfig] after the YAML file.
const (
	EnvMode             = "GATEKEEP_MODE"
	EnvTokenSecret      = "GATEKEEP_TOKEN_SECRET"
	EnvRedisAddr        = "GATEKEEP_REDIS_ADDR"
	EnvRedisPassword    = "GATEKEEP_REDIS_PASSWORD"
	EnvRedisDB          = "GATEKEEP_REDIS_DB"
	EnvRateLimitBackend = "GATEKEEP_RATE_LIMIT_BACKEND"
	EnvTrustProxy       = "GATEKEEP_TRUST_PROXY"
)

// LoadConfig reads a YAML file over [DefaultConfig], then applies GATEKEEP_* environment
// overrides. A .env file in the working directory is loaded first when present.
// An empty path skips the file. The result is validated.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMode); ok && v != "" {
		cfg.Mode = Mode(strings.ToLower(v))
	}
	if v, ok := lookup(EnvTokenSecret); ok && v != "" {
		cfg.Token.Secret = v
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookup(EnvRedisDB); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		cfg.Redis.DB = db
	}
	if v, ok := lookup(EnvRateLimitBackend); ok && v != "" {
		cfg.RateLimit.Backend = v
	}
	if v, ok := lookup(EnvTrustProxy); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTrustProxy, err)
		}
		cfg.HTTP.TrustProxy = b
	}
	return nil
}
