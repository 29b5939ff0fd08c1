package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the runtime configuration read from the environment.
// A .env file in the working directory is loaded first when present.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	Port     string `envconfig:"APP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"LOG_DIR" default:"logs"`

	DBUser string `envconfig:"DB_USER" required:"true"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME" required:"true"`

	DBMaxConns    int           `envconfig:"DB_MAX_CONNS" default:"25"`
	DBConnMaxLife time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	JWTSecret      string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin   int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"15"`
	RefreshTTLDays int    `envconfig:"REFRESH_TOKEN_TTL_DAYS" default:"30"`
	BcryptCost     int    `envconfig:"BCRYPT_COST" default:"10"`

	// RabbitMQURL empty disables publishing and the consumers.
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`

	// OTLPEndpoint empty disables tracing export.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"eventhub"`

	OTP OTPConfig
}

// OTPConfig controls one-time login codes.
type OTPConfig struct {
	Length      int    `envconfig:"OTP_LENGTH" default:"6"`
	TTLSeconds  int    `envconfig:"OTP_TTL_SECONDS" default:"120"`
	MaxAttempts int    `envconfig:"OTP_MAX_ATTEMPTS" default:"5"`
	Prefix      string `envconfig:"OTP_PREFIX" default:"otp"`
}

// Load reads the configuration.  Missing required variables are
// reported as an error.
func Load() (Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	if c.OTP.Length < 4 {
		c.OTP.Length = 4
	}
	return c, nil
}
