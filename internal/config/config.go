package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported persistence drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Supported avatar storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`

	DBDriver   string `envconfig:"DB_DRIVER" default:"mysql"`
	MySQLDSN   string `envconfig:"MYSQL_DSN" default:"user:password@tcp(localhost:3306)/tablebook?charset=utf8mb4&parseTime=True&loc=Local"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/tablebook.db"`
	ResetDB    bool   `envconfig:"RESET_DB" default:"false"`

	// RedisAddr may be empty, in which case sessions live in process memory
	// and reads are not cached.
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`

	SessionSecret string        `envconfig:"SESSION_SECRET" default:"change-me"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"session_token"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"false"`
	LoginPath     string        `envconfig:"LOGIN_PATH" default:"/login"`

	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`

	AvatarStorage  string `envconfig:"AVATAR_STORAGE" default:"local"`
	UploadsDir     string `envconfig:"UPLOADS_DIR" default:"public/uploads"`
	AvatarMaxBytes int64  `envconfig:"AVATAR_MAX_BYTES" default:"5242880"`

	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	SwaggerHost string `envconfig:"SWAGGER_HOST"`
}

// Load reads an optional .env file and builds Config from the environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option combinations that envconfig cannot express.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.AvatarStorage {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when AVATAR_STORAGE=s3")
		}
	default:
		return fmt.Errorf("unsupported AVATAR_STORAGE %q", c.AvatarStorage)
	}

	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.AvatarMaxBytes <= 0 {
		return errors.New("AVATAR_MAX_BYTES must be positive")
	}
	return nil
}
