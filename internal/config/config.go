package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Gate      GateConfig      `mapstructure:"gate"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig selects MongoDB. An empty URI runs on the in-memory store.
type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	// PublicBaseURL is where catalog media is served from, e.g. a CDN in front of the bucket.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// AuthConfig lists emails that receive the admin role on registration.
// From env, AUTH_ADMIN_EMAILS takes a comma separated list.
type AuthConfig struct {
	AdminEmails []string `mapstructure:"admin_emails"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`  // "development" or "production"
	Level string `mapstructure:"level"` // optional override: debug, info, warn, error
}

// RedisConfig backs the request rate limiter. An empty address disables limiting.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type GeneratorConfig struct {
	Provider    string        `mapstructure:"provider"` // openai | gemini
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Temperature float64       `mapstructure:"temperature"`
}

// EngineConfig tunes the generation pipeline.
type EngineConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	MaxDocumentBytes int           `mapstructure:"max_document_bytes"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	AuditTimeout     time.Duration `mapstructure:"audit_timeout"`
	AuditWait        time.Duration `mapstructure:"audit_wait"`
}

type GateConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Nested keys map to env vars: generator.api_key -> GENERATOR_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	// A missing file is fine, defaults and env vars still apply
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	// Duration strings ("90s", "720h") decode straight into time.Duration fields
	err = v.Unmarshal(&config)
	if err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "fitness_protocols")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("auth.admin_emails", []string{})
	v.SetDefault("log.mode", "production")
	v.SetDefault("log.level", "")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rate_limit.requests", 10)
	v.SetDefault("rate_limit.window", "1h")
	v.SetDefault("generator.provider", "openai")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.model", "")
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.timeout", "90s")
	v.SetDefault("generator.max_retries", 2)
	v.SetDefault("generator.temperature", 0.4)
	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.max_document_bytes", 12000)
	v.SetDefault("engine.request_timeout", "120s")
	v.SetDefault("engine.audit_timeout", "60s")
	v.SetDefault("engine.audit_wait", "3s")
	v.SetDefault("gate.window", "720h")
}
