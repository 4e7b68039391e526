package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	HTTP      ServerConfig
	MySQL     MySQLConfig
	Log       LogConfig
	Midtrans  MidtransConfig
	Reconcile ReconcileConfig
	AMQP      AMQPConfig
	JWT       JWTConfig
	Jobs      JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type MidtransConfig struct {
	BaseURL     string
	ServerKey   string
	HTTPTimeout time.Duration
}

type ReconcileConfig struct {
	PollMaxAttempts int32
	PollInterval    time.Duration
	StaleAfter      time.Duration
	JobBatchSize    int32
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type JWTConfig struct {
	Secret string
}

type JobsConfig struct {
	ReconcileInterval time.Duration
	ExpireInterval    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	if serverKey == "" {
		return nil, errors.New("MIDTRANS_SERVER_KEY environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "reconciliation-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Midtrans: MidtransConfig{
			BaseURL:     getEnv("MIDTRANS_BASE_URL", "https://api.sandbox.midtrans.com"),
			ServerKey:   serverKey,
			HTTPTimeout: getSecondsEnv("MIDTRANS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Reconcile: ReconcileConfig{
			PollMaxAttempts: int32(getIntEnv("RECONCILE_POLL_MAX_ATTEMPTS", 10)),
			PollInterval:    getSecondsEnv("RECONCILE_POLL_INTERVAL_SECONDS", 2*time.Second),
			StaleAfter:      getMinutesEnv("RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:    int32(getIntEnv("RECONCILE_JOB_BATCH_SIZE", 100)),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "payments"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getMinutesEnv("RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			ExpireInterval:    getMinutesEnv("EXPIRE_UNPAID_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
