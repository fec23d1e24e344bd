package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadENV loads the environment variables from .env when GO_ENV is unset or development.
// A missing .env file is not an error.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

// Config holds every setting the API reads at startup
type Config struct {
	GoEnv string `yaml:"go_env"`
	Port  int    `yaml:"port"`

	// Database
	DBDriver   string `yaml:"db_driver"` // postgres, sqlite
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUserName string `yaml:"db_user_name"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_ssl_mode"`
	SQLitePath string `yaml:"sqlite_path"`

	// JWT
	JWTSecret string        `yaml:"jwt_secret"`
	JWTIssuer string        `yaml:"jwt_issuer"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`

	// Redis
	RedisURL string `yaml:"redis_url"`

	// Kafka
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	// Scheduled jobs
	CronEnabled          bool   `yaml:"cron_enabled"`
	SessionSweepSchedule string `yaml:"session_sweep_schedule"`

	// Engines
	LockWaitTimeout time.Duration `yaml:"lock_wait_timeout"`

	// HTTP
	AllowedOrigins string `yaml:"allowed_origins"`
	AccessLog      bool   `yaml:"access_log"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		Port:                 8080,
		DBDriver:             "postgres",
		DBHost:               "localhost",
		DBPort:               "5432",
		DBSSLMode:            "disable",
		SQLitePath:           "data/fitcamp.sqlite",
		JWTIssuer:            "fitcamp-api",
		JWTExpiry:            24 * time.Hour,
		RedisURL:             "redis://localhost:6379/0",
		KafkaTopic:           "fitcamp.events",
		CronEnabled:          true,
		SessionSweepSchedule: "0 0 3 * * *", // daily at 3 AM
		LockWaitTimeout:      5 * time.Second,
		AllowedOrigins:       "http://localhost:3000,http://localhost:3001",
		AccessLog:            true,
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

// Get builds the configuration: defaults, then the optional CONFIG_FILE yaml, then env vars
func Get() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the values found in a yaml file
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.GoEnv, "GO_ENV")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DBHost, "DB_HOST")
	setString(&c.DBPort, "DB_PORT")
	setString(&c.DBUserName, "DB_USER_NAME")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBName, "DB_NAME")
	setString(&c.DBSSLMode, "DB_SSL_MODE")
	setString(&c.SQLitePath, "SQLITE_PATH")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.JWTIssuer, "JWT_ISSUER")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.KafkaTopic, "KAFKA_TOPIC")
	setString(&c.SessionSweepSchedule, "SESSION_SWEEP_SCHEDULE")
	setString(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.LogFile, "LOG_FILE")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	if v := os.Getenv("CRON_ENABLED"); v != "" {
		c.CronEnabled = v != "false"
	}

	if v := os.Getenv("ACCESS_LOG"); v != "" {
		c.AccessLog = v != "false"
	}

	if err := setDuration(&c.JWTExpiry, "JWT_EXPIRY"); err != nil {
		return err
	}
	return setDuration(&c.LockWaitTimeout, "LOCK_WAIT_TIMEOUT")
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
