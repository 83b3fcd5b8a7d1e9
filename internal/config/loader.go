package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that
// override them. REDIS_URL matches the deployment convention of
// managed Redis providers.
var envBindings = map[string]string{
	"service":        "SERVICE_NAME",
	"server.host":    "HOST",
	"server.port":    "PORT",
	"redis.enabled":  "REDIS_ENABLED",
	"redis.url":      "REDIS_URL",
	"redis.addr":     "REDIS_ADDR",
	"redis.password": "REDIS_PASSWORD",
	"session.ttl":    "SESSION_TTL",
	"log.level":      "LOG_LEVEL",
	"log.format":     "LOG_FORMAT",
}

// Load reads configuration from the given YAML file (optional), a
// .env file in the working directory (optional), and environment
// variables. Missing files are not errors.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist and parse; the default search
		// locations may simply be absent.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
