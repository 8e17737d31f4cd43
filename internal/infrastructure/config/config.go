package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Session SessionConfig
	Storage StorageConfig
	Redis   RedisConfig
	Mongo   MongoConfig
}

type SessionConfig struct {
	JWTSecret   string        `env:"JWT_SECRET,   default=dev-secret-change-me"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,    default=1h"`
	AdminEmail  string        `env:"ADMIN_EMAIL,  default=admin@example.com"`
	AdminSecret string        `env:"ADMIN_SECRET, default=password123"`
}

type StorageConfig struct {
	// Driver selects the backing store: memory, file, redis, or mongo.
	Driver string `env:"STORAGE_DRIVER, default=file"`
	// Path is the store file location for the file driver.
	Path string `env:"STORAGE_PATH, default=data/storefront.json"`
}

type RedisConfig struct {
	Addr   string `env:"REDIS_ADDR,   default=localhost:6379"`
	DB     int    `env:"REDIS_DB,     default=0"`
	Prefix string `env:"REDIS_PREFIX, default=storefront"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=storefront"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(logger *slog.Logger) *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		logger.Error("Failed to load configuration", "error", err)
		panic(err)
	}
	return &cfg
}
