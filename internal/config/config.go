package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// AppConfig is resolved in layers: built-in defaults, then the optional YAML file
// named by CONFIG_FILE, then environment variables (a .env file is loaded first).
type AppConfig struct {
	AppName  string `yaml:"app_name" envconfig:"APP_NAME" validate:"required"`
	AppEnv   string `yaml:"app_env" envconfig:"APP_ENV" validate:"oneof=development production test"`
	Port     string `yaml:"port" envconfig:"PORT" validate:"required,numeric"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`

	// Upstream sensor API.
	APIEndpoint string        `yaml:"api_endpoint" envconfig:"SEOUL_API_ENDPOINT" validate:"required,url"`
	APIKey      string        `yaml:"api_key" envconfig:"SEOUL_API_KEY" validate:"required"`
	Dataset     string        `yaml:"dataset" envconfig:"SEOUL_API_DATASET" validate:"required"`
	RowLimit    int           `yaml:"row_limit" envconfig:"SEOUL_API_ROW_LIMIT" validate:"gte=1,lte=1000"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" validate:"gte=0"`
	MaxRetries  int           `yaml:"max_retries" envconfig:"FETCH_MAX_RETRIES" validate:"gte=0,lte=10"`
	Timezone    string        `yaml:"timezone" envconfig:"TIMEZONE" validate:"required"`

	// Dataset cache and warming. A zero RefreshInterval disables the warmer.
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" validate:"gte=0"`
	RefreshInterval time.Duration `yaml:"refresh_interval" envconfig:"REFRESH_INTERVAL" validate:"gte=0"`
	TrendWindow     time.Duration `yaml:"trend_window" envconfig:"TREND_WINDOW" validate:"gte=1h,lte=168h"`

	// Profiles.
	ProfileBackend string `yaml:"profile_backend" envconfig:"PROFILE_BACKEND" validate:"oneof=file sqlite"`
	ProfileDir     string `yaml:"profile_dir" envconfig:"PROFILE_DIR" validate:"required_if=ProfileBackend file"`
	ProfileDBPath  string `yaml:"profile_db_path" envconfig:"PROFILE_DB_PATH" validate:"required_if=ProfileBackend sqlite"`

	// Reading relay. Empty broker disables it.
	MQTTBroker      string `yaml:"mqtt_broker" envconfig:"MQTT_BROKER" validate:"omitempty,url"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix" envconfig:"MQTT_TOPIC_PREFIX"`
	MQTTClientID    string `yaml:"mqtt_client_id" envconfig:"MQTT_CLIENT_ID"`

	SentryDSN   string `yaml:"sentry_dsn" envconfig:"SENTRY_DSN"`
	SentryDebug bool   `yaml:"sentry_debug" envconfig:"SENTRY_DEBUG"`

	location *time.Location
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		AppName:         "green-wellness-tracker",
		AppEnv:          "development",
		Port:            "8080",
		LogLevel:        "info",
		APIEndpoint:     "http://openapi.seoul.go.kr:8088",
		Dataset:         "IotVdata017",
		RowLimit:        1000,
		Timezone:        "Asia/Seoul",
		CacheTTL:        time.Hour,
		TrendWindow:     24 * time.Hour,
		ProfileBackend:  BackendFile,
		ProfileDir:      "data/profiles",
		ProfileDBPath:   "data/profiles.db",
		MQTTTopicPrefix: "green-wellness/parks",
		MQTTClientID:    "green-wellness-tracker",
	}
}

var validate = validator.New()

// Load reads configuration from .env, CONFIG_FILE and the environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(os.Getenv("CONFIG_FILE"))
}

func load(yamlPath string) (*AppConfig, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
		}
	}

	// No envconfig defaults: unset variables leave the layers above untouched.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("environment variable parsing: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and resolves the timezone.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid config: TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location is the timezone sensing times are reported in.
func (c *AppConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
