package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// AuthSecret enables bearer-token auth on the API when set.
	AuthSecret string `mapstructure:"auth_secret" validate:"omitempty,min=32"`
	// TokenLifetimeMinutes is the lifetime of tokens minted by the token command.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
	// OTLPEndpoint enables trace export when set, e.g. "localhost:4318".
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// SchedulerConfig controls the task scheduler and the simulated executor.
type SchedulerConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval" validate:"required,gt=0"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout" validate:"required,gt=0"`
	ApplyTimeout     time.Duration `mapstructure:"apply_timeout" validate:"required,gt=0"`
	// ApplyWorkers and ApplyQueueSize size the artifact application pool.
	ApplyWorkers   int `mapstructure:"apply_workers" validate:"gt=0"`
	ApplyQueueSize int `mapstructure:"apply_queue_size" validate:"gt=0"`
	// Executor selects the execution strategy: "simulated" or "generating".
	Executor    string        `mapstructure:"executor" validate:"required,oneof=simulated generating"`
	MinDelay    time.Duration `mapstructure:"min_delay" validate:"gte=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=MinDelay"`
	SuccessRate float64       `mapstructure:"success_rate" validate:"gte=0,lte=1"`
	// AutoStart starts the scheduler when the server boots.
	AutoStart bool `mapstructure:"auto_start"`
}

// StorageConfig selects and configures the durable slot, idempotency guard
// and change watcher backends.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=file postgres sqlite redis etcd"`
	// SlotKey names the slot inside shared backends.
	SlotKey       string   `mapstructure:"slot_key" validate:"required"`
	FilePath      string   `mapstructure:"file_path" validate:"required_if=Backend file"`
	MarkerDir     string   `mapstructure:"marker_dir" validate:"required_if=Backend file"`
	DatabaseURL   string   `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	SQLitePath    string   `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisAddr     string   `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	EtcdEndpoints []string `mapstructure:"etcd_endpoints"`
	// DialTimeout bounds connection setup for network backends.
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	// PollInterval is how often the sqlite backend checks for external writes.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	// MigrateOnStart applies pending SQL migrations when the server boots.
	MigrateOnStart bool `mapstructure:"migrate_on_start"`
}

// LLMConfig contains all LLM integration related settings. When the API key
// is empty the offline template generator is used instead.
type LLMConfig struct {
	GeminiAPIKey       string `mapstructure:"gemini_api_key"`
	ModelName          string `mapstructure:"model_name" validate:"required_with=GeminiAPIKey"`
	PromptTemplatePath string `mapstructure:"prompt_template_path"`
	MaxRetries         int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// WorkspaceConfig points at the service that performs file writes and route
// registration. When URL is empty, writes are only logged.
type WorkspaceConfig struct {
	URL        string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

// NotifyConfig configures optional notice sinks.
type NotifyConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}
