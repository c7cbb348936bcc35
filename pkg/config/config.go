package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"callinsight-server/pkg/errors"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config represents the complete application configuration
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Database  DatabaseConfig  `json:"database"`
	Messaging MessagingConfig `json:"messaging"`
	Analysis  AnalysisConfig  `json:"analysis"`
	Logging   LoggingConfig   `json:"logging"`
}

// HTTPConfig holds the HTTP server configuration
type HTTPConfig struct {
	Port          int           `json:"port" env:"HTTP_PORT" default:"8080"`
	ReadTimeout   time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout  time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"30s"`
	EnableMetrics bool          `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`
}

// DatabaseConfig controls transcript/call persistence
type DatabaseConfig struct {
	Enabled         bool          `json:"enabled" env:"DATABASE_ENABLED" default:"false"`
	Host            string        `json:"host" env:"DATABASE_HOST" default:"localhost"`
	Port            int           `json:"port" env:"DATABASE_PORT" default:"3306"`
	Database        string        `json:"database" env:"DATABASE_NAME" default:"callinsight"`
	Username        string        `json:"username" env:"DATABASE_USER" default:"callinsight"`
	Password        string        `json:"password" env:"DATABASE_PASSWORD"`
	MaxOpenConns    int           `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" default:"5m"`
	SSLMode         string        `json:"ssl_mode" env:"DATABASE_SSL_MODE"`
}

// MessagingConfig holds AMQP publication settings. An empty URL disables
// publication entirely.
type MessagingConfig struct {
	AMQPUrl        string `json:"amqp_url" env:"AMQP_URL"`
	AMQPQueueName  string `json:"amqp_queue_name" env:"AMQP_QUEUE_NAME" default:"call_analysis"`
	AMQPExchange   string `json:"amqp_exchange" env:"AMQP_EXCHANGE"`
	AMQPRoutingKey string `json:"amqp_routing_key" env:"AMQP_ROUTING_KEY"`
}

// AnalysisConfig holds pipeline tunables for timestamp synthesis
type AnalysisConfig struct {
	WordsPerMinute int     `json:"words_per_minute" env:"ANALYSIS_WORDS_PER_MINUTE" default:"150"`
	MinTurnGap     float64 `json:"min_turn_gap" env:"ANALYSIS_MIN_TURN_GAP" default:"0.5"`
	MaxTurnGap     float64 `json:"max_turn_gap" env:"ANALYSIS_MAX_TURN_GAP" default:"1.5"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"LOG_FORMAT" default:"text"`
}

// Load reads configuration from a .env file (when present) and the
// environment, applies defaults, and validates the result.
func Load(logger *logrus.Logger) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr == nil {
			if loadErr := godotenv.Load(envFile); loadErr == nil {
				loadedFrom, _ = filepath.Abs(envFile)
				break
			}
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Successfully loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Debug("No .env file found, using environment variables only")
	}

	config := &Config{
		HTTP: HTTPConfig{
			Port:          getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:   getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			EnableMetrics: getEnvBool("HTTP_ENABLE_METRICS", true),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DATABASE_ENABLED", false),
			Host:            getEnv("DATABASE_HOST", "localhost"),
			Port:            getEnvInt("DATABASE_PORT", 3306),
			Database:        getEnv("DATABASE_NAME", "callinsight"),
			Username:        getEnv("DATABASE_USER", "callinsight"),
			Password:        getEnv("DATABASE_PASSWORD", ""),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			SSLMode:         getEnv("DATABASE_SSL_MODE", ""),
		},
		Messaging: MessagingConfig{
			AMQPUrl:        getEnv("AMQP_URL", ""),
			AMQPQueueName:  getEnv("AMQP_QUEUE_NAME", "call_analysis"),
			AMQPExchange:   getEnv("AMQP_EXCHANGE", ""),
			AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", ""),
		},
		Analysis: AnalysisConfig{
			WordsPerMinute: getEnvInt("ANALYSIS_WORDS_PER_MINUTE", 150),
			MinTurnGap:     getEnvFloat("ANALYSIS_MIN_TURN_GAP", 0.5),
			MaxTurnGap:     getEnvFloat("ANALYSIS_MAX_TURN_GAP", 1.5),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return config, nil
}

// ApplyLogging configures the logger from the logging section.
func (c *Config) ApplyLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(c.Logging.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.HTTP.Port < 1 || config.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", config.HTTP.Port)
	}
	if config.Analysis.WordsPerMinute <= 0 {
		return fmt.Errorf("ANALYSIS_WORDS_PER_MINUTE must be positive, got %d", config.Analysis.WordsPerMinute)
	}
	if config.Analysis.MinTurnGap < 0 {
		return fmt.Errorf("ANALYSIS_MIN_TURN_GAP must be non-negative, got %f", config.Analysis.MinTurnGap)
	}
	if config.Analysis.MaxTurnGap < config.Analysis.MinTurnGap {
		return fmt.Errorf("ANALYSIS_MAX_TURN_GAP must be >= ANALYSIS_MIN_TURN_GAP")
	}
	if config.Database.Enabled {
		if config.Database.Host == "" || config.Database.Database == "" {
			return fmt.Errorf("DATABASE_HOST and DATABASE_NAME are required when DATABASE_ENABLED is true")
		}
	}
	return nil
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// Helper function to get a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvFloat retrieves an environment variable and converts it to float64
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}
