package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full server configuration. Values come from an optional YAML
// file and are overridden by environment variables.
type Config struct {
	Server    Server    `yaml:"server"`
	Logger    Logger    `yaml:"logger"`
	Database  Database  `yaml:"database"`
	Auth      Auth      `yaml:"auth"`
	Media     Media     `yaml:"media"`
	Bootstrap Bootstrap `yaml:"bootstrap"`
}

type Server struct {
	Addr            string        `yaml:"addr"            env:"PANTRY_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"readTimeout"     env:"PANTRY_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"    env:"PANTRY_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"PANTRY_SHUTDOWN_TIMEOUT" env-default:"5s"`
	// MaxUploadBytes caps recipe image uploads.
	MaxUploadBytes int64 `yaml:"maxUploadBytes" env:"PANTRY_MAX_UPLOAD_BYTES" env-default:"10485760"`
}

type Logger struct {
	Level     string   `yaml:"level"     env:"PANTRY_LOG_LEVEL"      env-default:"info"`
	Output    []string `yaml:"output"    env:"PANTRY_LOG_OUTPUT"     env-default:"stdout"`
	ErrOutput []string `yaml:"errOutput" env:"PANTRY_LOG_ERR_OUTPUT" env-default:"stderr"`
	// Development switches to the console encoder.
	Development bool `yaml:"development" env:"PANTRY_LOG_DEVELOPMENT"`
}

type Database struct {
	Driver string `yaml:"driver" env:"PANTRY_DB_DRIVER" env-default:"sqlite"`
	DSN    string `yaml:"dsn"    env:"PANTRY_DB_DSN"    env-default:"pantry.db"`
}

type Auth struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET" env-default:"pantry-dev-secret-change-in-production"`
	TTL    time.Duration `yaml:"ttl"    env:"JWT_TTL"    env-default:"24h"`
}

// Media selects where uploaded recipe images are written.
type Media struct {
	Backend string `yaml:"backend" env:"PANTRY_MEDIA_BACKEND" env-default:"local"`
	Root    string `yaml:"root"    env:"PANTRY_MEDIA_ROOT"    env-default:"media"`

	S3Bucket       string `yaml:"s3Bucket"       env:"PANTRY_S3_BUCKET"`
	S3Region       string `yaml:"s3Region"       env:"PANTRY_S3_REGION"        env-default:"us-east-1"`
	S3BaseEndpoint string `yaml:"s3BaseEndpoint" env:"PANTRY_S3_ENDPOINT"`
	S3AccessKey    string `yaml:"s3AccessKey"    env:"PANTRY_S3_ACCESS_KEY"`
	S3SecretKey    string `yaml:"s3SecretKey"    env:"PANTRY_S3_SECRET_KEY"`
}

// Bootstrap describes the superuser created on first start. Empty email disables it.
type Bootstrap struct {
	AdminEmail    string `yaml:"adminEmail"    env:"PANTRY_ADMIN_EMAIL"`
	AdminPassword string `yaml:"adminPassword" env:"PANTRY_ADMIN_PASSWORD"`
}

const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"
)

// New reads configuration from configPath (if set) and the environment.
func New(configPath string) (Config, error) {
	var cfg Config

	if configPath != "" {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Media.Backend {
	case MediaBackendLocal:
	case MediaBackendS3:
		if c.Media.S3Bucket == "" {
			return fmt.Errorf("media backend %q requires a bucket", c.Media.Backend)
		}
	default:
		return fmt.Errorf("unsupported media backend %q", c.Media.Backend)
	}

	if c.Bootstrap.AdminEmail != "" && c.Bootstrap.AdminPassword == "" {
		return fmt.Errorf("bootstrap admin %q has no password", c.Bootstrap.AdminEmail)
	}

	return nil
}
