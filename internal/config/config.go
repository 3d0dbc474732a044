package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env      string   `env:"ENV" envDefault:"prod"`
	LogLevel int      `env:"LOG_LEVEL" envDefault:"0"`
	Server   Server   `envPrefix:"SERVER_"`
	MySQL    MySQL    `envPrefix:"MYSQL_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	JWT      JWT      `envPrefix:"JWT_"`
	KDF      KDF      `envPrefix:"KDF_"`
	Ledger   Ledger   `envPrefix:"LEDGER_"`
	Storage  Storage  `envPrefix:"MINIO_"`
	RabbitMQ RabbitMQ `envPrefix:"RABBITMQ_"`
	Admin    Admin    `envPrefix:"ADMIN_"`
}

// Server contains HTTP server parameters.
type Server struct {
	Port        string `env:"PORT" envDefault:"8080"`
	SwaggerHost string `env:"SWAGGER_HOST"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// MySQL contains database connection parameters.
type MySQL struct {
	DSN string `env:"DSN" envDefault:"farmtrace:farmtrace@tcp(localhost:3306)/farmtrace?charset=utf8mb4&parseTime=True&loc=UTC"`
}

// Redis contains cache connection parameters.
type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// JWT contains token signing parameters.
type JWT struct {
	Secret string `env:"SECRET" envDefault:"change-me"`
}

// KDF contains argon2id parameters used to derive wallet encryption keys.
type KDF struct {
	Time   uint32 `env:"TIME" envDefault:"1"`
	MemKiB uint32 `env:"MEM" envDefault:"65536"`
	Par    uint8  `env:"PAR" envDefault:"4"`
}

// Ledger contains smart contract connection parameters.
// An empty RPCURL disables ledger mirroring.
type Ledger struct {
	RPCURL          string        `env:"RPC_URL"`
	ChainID         int64         `env:"CHAIN_ID" envDefault:"1337"`
	ContractAddress string        `env:"CONTRACT_ADDRESS"`
	OperatorKey     string        `env:"OPERATOR_KEY"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// Enabled reports whether ledger mirroring is configured.
func (l Ledger) Enabled() bool {
	return l.RPCURL != "" && l.ContractAddress != ""
}

// Storage contains object storage parameters.
// An empty Endpoint disables metadata documents.
type Storage struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"farmtrace-metadata"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// RabbitMQ contains event publishing parameters.
// An empty URL disables domain event publishing.
type RabbitMQ struct {
	URL          string `env:"URL"`
	Queue        string `env:"QUEUE" envDefault:"farmtrace.events"`
	QueueDurable bool   `env:"QUEUE_DURABLE" envDefault:"true"`
}

// Admin contains parameters for administrative endpoints.
type Admin struct {
	APIKey string `env:"API_KEY"`
}

// Load builds Config from environment. When ENV=dev a local .env file is read first.
func Load() (*Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
