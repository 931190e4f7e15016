package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

type Config struct {
	HTTPAddr        string        `env:"CROPCHAIN_HTTP_ADDR"        envDefault:":8080"`
	GRPCAddr        string        `env:"CROPCHAIN_GRPC_ADDR"        envDefault:":50051"`
	ShutdownTimeout time.Duration `env:"CROPCHAIN_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"CROPCHAIN_LOG_LEVEL"        envDefault:"info"`

	MySQLDSN          string        `env:"CROPCHAIN_MYSQL_DSN"            envDefault:"root:root@tcp(localhost:3306)/cropchain?parseTime=true"`
	MySQLMaxOpen      int           `env:"CROPCHAIN_MYSQL_MAX_OPEN"       envDefault:"50"`
	MySQLMaxIdle      int           `env:"CROPCHAIN_MYSQL_MAX_IDLE"       envDefault:"25"`
	MySQLConnLifetime time.Duration `env:"CROPCHAIN_MYSQL_CONN_LIFETIME"  envDefault:"5m"`
	MigrateOnStart    bool          `env:"CROPCHAIN_MIGRATE_ON_START"     envDefault:"true"`

	RedisAddr     string `env:"CROPCHAIN_REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisPoolSize int    `env:"CROPCHAIN_REDIS_POOL_SIZE" envDefault:"100"`

	KafkaBrokers []string `env:"CROPCHAIN_KAFKA_BROKERS"  envSeparator:","`
	KafkaTopic   string   `env:"CROPCHAIN_KAFKA_TOPIC"    envDefault:"cropchain.orders"`

	TokenSecret string        `env:"CROPCHAIN_TOKEN_SECRET,required"`
	TokenTTL    time.Duration `env:"CROPCHAIN_TOKEN_TTL"    envDefault:"30m"`
	BcryptCost  int           `env:"CROPCHAIN_BCRYPT_COST"  envDefault:"10"`

	ChatHistoryLimit int           `env:"CROPCHAIN_CHAT_HISTORY_LIMIT" envDefault:"10"`
	ChatQueueSize    int           `env:"CROPCHAIN_CHAT_QUEUE_SIZE"    envDefault:"64"`
	ChatReadTimeout  time.Duration `env:"CROPCHAIN_CHAT_READ_TIMEOUT"  envDefault:"5m"`
	ChatWriteTimeout time.Duration `env:"CROPCHAIN_CHAT_WRITE_TIMEOUT" envDefault:"10s"`

	OrderRecoveryInterval time.Duration `env:"CROPCHAIN_ORDER_RECOVERY_INTERVAL" envDefault:"1m"`
	PendingOrderMaxAge    time.Duration `env:"CROPCHAIN_PENDING_ORDER_MAX_AGE"   envDefault:"5m"`

	OTelEndpoint string `env:"CROPCHAIN_OTEL_ENDPOINT"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if len(c.TokenSecret) < 16 {
		errs = append(errs, errors.New("CROPCHAIN_TOKEN_SECRET must be at least 16 bytes"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("CROPCHAIN_TOKEN_TTL must be positive"))
	}
	if c.ChatHistoryLimit <= 0 {
		errs = append(errs, errors.New("CROPCHAIN_CHAT_HISTORY_LIMIT must be positive"))
	}
	if c.ChatQueueSize <= 0 {
		errs = append(errs, errors.New("CROPCHAIN_CHAT_QUEUE_SIZE must be positive"))
	}
	if c.ChatReadTimeout <= 0 || c.ChatWriteTimeout <= 0 {
		errs = append(errs, errors.New("chat timeouts must be positive"))
	}
	if c.OrderRecoveryInterval <= 0 || c.PendingOrderMaxAge <= 0 {
		errs = append(errs, errors.New("order recovery settings must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("CROPCHAIN_LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
