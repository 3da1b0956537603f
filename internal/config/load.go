package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "AUTOBUILD"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// When configFile is empty, ./config.yaml is used if it exists.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// AUTOBUILD_STORAGE_DATABASE_URL overrides storage.database_url
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The validator treats an empty non-nil slice as present, so list
	// settings are checked by length here.
	if cfg.Storage.Backend == "etcd" && len(cfg.Storage.EtcdEndpoints) == 0 {
		return fmt.Errorf("invalid configuration: storage.etcd_endpoints is required for the etcd backend")
	}
	if len(cfg.Notify.KafkaBrokers) > 0 && cfg.Notify.KafkaTopic == "" {
		return fmt.Errorf("invalid configuration: notify.kafka_topic is required when kafka brokers are set")
	}

	return nil
}

// setDefaults registers a default for every key. Viper only maps
// environment variables onto keys it already knows, so keys without a
// meaningful default are registered with their zero value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.token_lifetime_minutes", 60)
	v.SetDefault("server.otlp_endpoint", "")

	v.SetDefault("scheduler.tick_interval", time.Minute)
	v.SetDefault("scheduler.execution_timeout", 2*time.Minute)
	v.SetDefault("scheduler.apply_timeout", 30*time.Second)
	v.SetDefault("scheduler.apply_workers", 2)
	v.SetDefault("scheduler.apply_queue_size", 64)
	v.SetDefault("scheduler.executor", "simulated")
	v.SetDefault("scheduler.min_delay", 5*time.Second)
	v.SetDefault("scheduler.max_delay", 15*time.Second)
	v.SetDefault("scheduler.success_rate", 0.8)
	v.SetDefault("scheduler.auto_start", true)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.slot_key", "autobuild-tasks")
	v.SetDefault("storage.file_path", "data/tasks.json")
	v.SetDefault("storage.marker_dir", "data/applied")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.etcd_endpoints", []string{})
	v.SetDefault("storage.dial_timeout", 5*time.Second)
	v.SetDefault("storage.poll_interval", time.Second)
	v.SetDefault("storage.migrate_on_start", true)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.prompt_template_path", "")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("workspace.url", "")
	v.SetDefault("workspace.timeout", 10*time.Second)
	v.SetDefault("workspace.max_retries", 3)

	v.SetDefault("notify.kafka_brokers", []string{})
	v.SetDefault("notify.kafka_topic", "")
}
