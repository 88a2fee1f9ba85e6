// Package config loads process configuration from an optional YAML file,
// an optional .env file and SAFETYNET_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SAFETYNET_"

// Config is the full process configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
	Storage Storage `yaml:"storage"`
	Metrics Metrics `yaml:"metrics"`
	Trace   Trace   `yaml:"trace"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Log configures the zap logger.
type Log struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // json, console
	Service string `yaml:"service"`
}

// Storage selects and configures the durable store.
type Storage struct {
	Driver      string `yaml:"driver"` // memory, fs, s3, sqlite, postgres, redis
	DataPath    string `yaml:"dataPath"`
	SeedPath    string `yaml:"seedPath"`
	SQLitePath  string `yaml:"sqlitePath"`
	PostgresDSN string `yaml:"postgresDsn"`
	Redis       Redis  `yaml:"redis"`
	S3          S3     `yaml:"s3"`
}

// Redis configures the redis driver.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// S3 configures the s3 driver.
type S3 struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	PathStyle       bool   `yaml:"pathStyle"`
	Key             string `yaml:"key"`
}

// Metrics selects the metrics recorder: prometheus, expvar or none.
type Metrics struct {
	Backend string `yaml:"backend"`
}

// Trace configures span export. Spans go to an OTLP/HTTP collector when
// Endpoint is set and to a JSON-lines file when File is set.
type Trace struct {
	Endpoint string `yaml:"endpoint"`
	File     string `yaml:"file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:    Log{Level: "info", Format: "json", Service: "safetynet"},
		Storage: Storage{
			Driver:     "fs",
			DataPath:   "./data/data.json",
			SQLitePath: "safetynet.db",
			Redis:      Redis{Addr: "localhost:6379", Key: "safetynet:document"},
			S3:         S3{Region: "us-east-1", Key: "data.json"},
		},
		Metrics: Metrics{Backend: "prometheus"},
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// SAFETYNET_CONFIG variable is consulted, and when that is empty too no file
// is read. A .env file in the working directory is applied if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	// #nosec G304 -- operator-supplied path
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "ADDR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.Service, "SERVICE_NAME")
	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.DataPath, "DATA_PATH")
	setString(&cfg.Storage.SeedPath, "SEED_PATH")
	setString(&cfg.Storage.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&cfg.Storage.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Storage.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Storage.Redis.Key, "REDIS_KEY")
	setString(&cfg.Storage.S3.Region, "S3_REGION")
	setString(&cfg.Storage.S3.Bucket, "S3_BUCKET")
	setString(&cfg.Storage.S3.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Storage.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Storage.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.S3.Key, "S3_KEY")
	setString(&cfg.Metrics.Backend, "METRICS")
	setString(&cfg.Trace.Endpoint, "TRACE_ENDPOINT")
	setString(&cfg.Trace.File, "TRACE_FILE")

	if v, ok := lookup("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		cfg.Storage.Redis.DB = n
	}
	if v, ok := lookup("S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sS3_PATH_STYLE: %w", EnvPrefix, err)
		}
		cfg.Storage.S3.PathStyle = b
	}
	if v, ok := lookup("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Server.ShutdownTimeout = d
	}
	return nil
}

func lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + name))
	return v, v != ""
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

// Validate checks the fields the selected driver needs.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdownTimeout must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q must be json or console", c.Log.Format)
	}
	switch c.Metrics.Backend {
	case "prometheus", "expvar", "none":
	default:
		return fmt.Errorf("metrics.backend %q must be prometheus, expvar or none", c.Metrics.Backend)
	}
	s := c.Storage
	switch s.Driver {
	case "memory":
	case "fs":
		if s.DataPath == "" {
			return errors.New("storage.dataPath is required for the fs driver")
		}
	case "sqlite":
		if s.SQLitePath == "" {
			return errors.New("storage.sqlitePath is required for the sqlite driver")
		}
	case "postgres":
		if s.PostgresDSN == "" {
			return errors.New("storage.postgresDsn is required for the postgres driver")
		}
	case "redis":
		if s.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis driver")
		}
	case "s3":
		if s.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", s.Driver)
	}
	return nil
}
