package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Realtime RealtimeConfig `mapstructure:"realtime" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// AllowedOrigins restricts WebSocket upgrades by Origin header. Empty allows any origin.
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// RealtimeConfig tunes the per-task comment channel.
type RealtimeConfig struct {
	SendBufferSize  int           `mapstructure:"send_buffer_size" validate:"gte=1"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" validate:"gte=1024"`
	PingInterval    time.Duration `mapstructure:"ping_interval" validate:"gt=0,ltfield=PongWait"`
	PongWait        time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	WriteWait       time.Duration `mapstructure:"write_wait" validate:"gt=0"`
}

// RedisConfig enables cross-instance fan-out. An empty URL keeps fan-out in process.
type RedisConfig struct {
	URL           string `mapstructure:"url" validate:"omitempty,url"`
	ChannelPrefix string `mapstructure:"channel_prefix" validate:"required_with=URL"`
}

// StorageConfig points at the S3-compatible bucket holding comment attachments.
// An empty Endpoint disables attachment URLs.
type StorageConfig struct {
	Endpoint   string        `mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	AccessKey  string        `mapstructure:"access_key" validate:"required_with=Endpoint"`
	SecretKey  string        `mapstructure:"secret_key" validate:"required_with=Endpoint"`
	Bucket     string        `mapstructure:"bucket" validate:"required_with=Endpoint"`
	Region     string        `mapstructure:"region"`
	UseSSL     bool          `mapstructure:"use_ssl"`
	PresignTTL time.Duration `mapstructure:"presign_ttl" validate:"gt=0"`
}
