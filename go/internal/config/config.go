// Package config loads gateway and client configuration from an optional YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Gateway  Gateway  `yaml:"gateway"`
	Log      Log      `yaml:"log"`
	NATS     NATS     `yaml:"nats"`
	Database Database `yaml:"database"`
	Video    Video    `yaml:"video"`
}

type Gateway struct {
	Port              string        `yaml:"port"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Database holds Postgres connection settings. With Enabled false the gateway keeps
// segment timelines in memory.
type Database struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (d Database) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

type Video struct {
	Store string `yaml:"store"` // memory or s3
	S3    S3     `yaml:"s3"`
}

type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Default returns the configuration used when no file or environment is present.
func Default() Config {
	return Config{
		Gateway: Gateway{
			Port:              "8081",
			HeartbeatInterval: 250 * time.Millisecond,
			HandshakeTimeout:  10 * time.Second,
			PingInterval:      30 * time.Second,
			AllowedOrigins:    []string{"*"},
		},
		Log: Log{Level: "info", Format: "console"},
		NATS: NATS{
			SubjectPrefix: "meeting.events",
		},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Name:     "classroom",
			SSLMode:  "disable",
		},
		Video: Video{
			Store: "memory",
			S3:    S3{Region: "us-east-1"},
		},
	}
}

// Load reads path (skipped when empty or missing) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Gateway.Port = getEnv("GATEWAY_PORT", c.Gateway.Port)
	c.Gateway.HeartbeatInterval = getEnvAsDuration("HEARTBEAT_INTERVAL", c.Gateway.HeartbeatInterval)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Gateway.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)

	c.Database.Enabled = getEnvAsBool("DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Video.Store = getEnv("VIDEO_STORE", c.Video.Store)
	c.Video.S3.Bucket = getEnv("S3_BUCKET", c.Video.S3.Bucket)
	c.Video.S3.Region = getEnv("S3_REGION", c.Video.S3.Region)
	c.Video.S3.Endpoint = getEnv("S3_ENDPOINT", c.Video.S3.Endpoint)
	c.Video.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.Video.S3.AccessKeyID)
	c.Video.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.Video.S3.SecretAccessKey)
	c.Video.S3.UsePathStyle = getEnvAsBool("S3_USE_PATH_STYLE", c.Video.S3.UsePathStyle)
}

// Validate rejects settings the gateway cannot start with.
func (c Config) Validate() error {
	if c.Gateway.Port == "" {
		return errors.New("gateway port is required")
	}
	if c.Gateway.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", c.Gateway.HeartbeatInterval)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	switch c.Video.Store {
	case "memory":
	case "s3":
		if c.Video.S3.Bucket == "" {
			return errors.New("S3 bucket is required for the s3 video store")
		}
	default:
		return fmt.Errorf("unknown video store %q", c.Video.Store)
	}
	return nil
}

// ZerologLevel returns the parsed level, falling back to info.
func (l Log) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
