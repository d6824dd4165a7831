package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration, loaded from environment
// variables with an optional .env file for local runs.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	MongoURI            string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB             string        `env:"MONGO_DB" envDefault:"shop"`
	MongoConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
	MongoMaxPoolSize    uint64        `env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`
	MongoMinPoolSize    uint64        `env:"MONGO_MIN_POOL_SIZE" envDefault:"10"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"shop"`
	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	CatalogBaseURL string `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8081"`

	JWTSecret string `env:"JWT_SECRET,required"`

	VerificationCodeTTL time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"10m"`
	SessionCartTTL      time.Duration `env:"SESSION_CART_TTL" envDefault:"48h"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
