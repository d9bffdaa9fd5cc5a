package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

const SupportedVersion = "1"

const (
	LightTheme = "light"
	DarkTheme  = "dark"
)

// Config represents the complete configuration structure
type Config struct {
	Version       string              `yaml:"version" default:"1"`
	API           APIConfig           `yaml:"api"`
	User          UserConfig          `yaml:"user"`
	Channel       ChannelConfig       `yaml:"channel"`
	Autosave      AutosaveConfig      `yaml:"autosave"`
	Storage       StorageConfig       `yaml:"storage"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	UI            UIConfig            `yaml:"ui"`
}

// APIConfig holds the remote endpoint and session credentials. With a
// refresh token set, the access token is renewed ExpiresIn after startup, or
// on first use when ExpiresIn is zero.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" default:"http://localhost:3000"`
	Timeout      time.Duration `yaml:"timeout" default:"15s"`
	Token        string        `yaml:"token" default:""`
	RefreshToken string        `yaml:"refresh_token" default:""`
	ExpiresIn    time.Duration `yaml:"expires_in" default:"0s"`
}

// UserConfig identifies the session user, whose own mentions are never notified.
type UserConfig struct {
	ID    string `yaml:"id" default:""`
	Name  string `yaml:"name" default:""`
	Email string `yaml:"email" default:""`
}

type ChannelConfig struct {
	BaseURL       string        `yaml:"base_url" default:"ws://localhost:3000"`
	ReconnectBase time.Duration `yaml:"reconnect_base" default:"1s"`
	ReconnectMax  time.Duration `yaml:"reconnect_max" default:"10s"`
	MaxAttempts   int           `yaml:"max_attempts" default:"5"`
}

type AutosaveConfig struct {
	Interval  time.Duration `yaml:"interval" default:"30s"`
	Namespace string        `yaml:"namespace" default:"@drafts:autosave"`
}

type StorageConfig struct {
	Backend     string      `yaml:"backend" default:"sqlite"`
	Path        string      `yaml:"path" default:"./draftroom.db"`
	Compression string      `yaml:"compression" default:"zstd"`
	Redis       RedisConfig `yaml:"redis"`
	S3          S3Config    `yaml:"s3"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password" default:""`
	DB       int           `yaml:"db" default:"0"`
	TTL      time.Duration `yaml:"ttl" default:"0s"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket" default:""`
	Prefix          string `yaml:"prefix" default:"autosave/"`
	Endpoint        string `yaml:"endpoint" default:""`
	Region          string `yaml:"region" default:"auto"`
	AccessKeyID     string `yaml:"access_key_id" default:""`
	SecretAccessKey string `yaml:"secret_access_key" default:""`
}

type NotificationsConfig struct {
	Rate      float64 `yaml:"rate" default:"5"`
	Burst     int     `yaml:"burst" default:"5"`
	QueueSize int     `yaml:"queue_size" default:"64"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
}

type UIConfig struct {
	Theme string `yaml:"theme" default:"dark"`
	Width int    `yaml:"width" default:"80"`
}

// Environment variables that take precedence over the config file.
const (
	EnvAPIURL         = "DRAFTROOM_API_URL"
	EnvWSURL          = "DRAFTROOM_WS_URL"
	EnvToken          = "DRAFTROOM_TOKEN"
	EnvRefreshToken   = "DRAFTROOM_REFRESH_TOKEN"
	EnvStorageBackend = "DRAFTROOM_STORAGE_BACKEND"
	EnvStoragePath    = "DRAFTROOM_STORAGE_PATH"
	EnvLogLevel       = "DRAFTROOM_LOG_LEVEL"
	EnvUserID         = "DRAFTROOM_USER_ID"
	EnvUserName       = "DRAFTROOM_USER_NAME"
	EnvConfigPath     = "DRAFTROOM_CONFIG"
)

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf(ErrParseConfigFmt, err)
		}
	case os.IsNotExist(err):
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf(ErrReadConfigFmt, err)
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Version != SupportedVersion {
		return fmt.Errorf("unsupported configuration version %q", c.Version)
	}
	switch c.Storage.Backend {
	case "memory", "sqlite", "file", "redis", "s3":
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	switch c.Storage.Compression {
	case "none", "gzip", "zstd":
	default:
		return fmt.Errorf("unsupported compression %q", c.Storage.Compression)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
	}
	if c.API.ExpiresIn < 0 {
		return fmt.Errorf("api.expires_in must not be negative")
	}
	if c.Channel.MaxAttempts < 0 {
		return fmt.Errorf("channel.max_attempts must not be negative")
	}
	switch c.UI.Theme {
	case LightTheme, DarkTheme:
	default:
		return fmt.Errorf("unsupported ui theme %q", c.UI.Theme)
	}
	if c.Autosave.Interval <= 0 {
		return fmt.Errorf("autosave.interval must be positive")
	}
	return nil
}

func applyEnv(config *Config) {
	overrides := []struct {
		name   string
		target *string
	}{
		{EnvAPIURL, &config.API.BaseURL},
		{EnvWSURL, &config.Channel.BaseURL},
		{EnvToken, &config.API.Token},
		{EnvRefreshToken, &config.API.RefreshToken},
		{EnvStorageBackend, &config.Storage.Backend},
		{EnvStoragePath, &config.Storage.Path},
		{EnvLogLevel, &config.Logging.Level},
		{EnvUserID, &config.User.ID},
		{EnvUserName, &config.User.Name},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			*o.target = v
		}
	}
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch {
		case field.Type() == durationType:
			if val, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(val))
			}
		case field.Kind() == reflect.String:
			field.SetString(defaultValue)
		case field.Kind() == reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case field.Kind() == reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case field.Kind() == reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case field.Kind() == reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
