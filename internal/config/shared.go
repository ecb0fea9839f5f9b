package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	ProviderDrive = "drive"
	ProviderS3    = "s3"
	ProviderLocal = "local"
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	API struct {
		Key string `mapstructure:"key"`
	} `mapstructure:"api"`
	Google struct {
		Credentials     string `mapstructure:"credentials"`
		CredentialsFile string `mapstructure:"credentials_file"`
	} `mapstructure:"google"`
	Storage struct {
		Provider  string `mapstructure:"provider"`
		KeyID     string `mapstructure:"key_id"`
		AppKey    string `mapstructure:"app_key"`
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		LocalRoot string `mapstructure:"local_root"`
	} `mapstructure:"storage"`
	Server struct {
		Port            string `mapstructure:"port"`
		MetricsPort     string `mapstructure:"metrics_port"`
		LogLevel        string `mapstructure:"log_level"`
		LogFormat       string `mapstructure:"log_format"`
		ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds"`
	} `mapstructure:"server"`
}

// Load reads config.yaml (if present) and the environment. Keys use the
// GATEWAY_ prefix; API_KEY and GOOGLE_CREDENTIALS are accepted as well.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register keys
	v.BindEnv("api.key", "GATEWAY_API_KEY", "API_KEY")
	v.BindEnv("google.credentials", "GATEWAY_GOOGLE_CREDENTIALS", "GOOGLE_CREDENTIALS")
	v.BindEnv("google.credentials_file")
	v.BindEnv("storage.provider")
	v.BindEnv("storage.key_id")
	v.BindEnv("storage.app_key")
	v.BindEnv("storage.endpoint")
	v.BindEnv("storage.region")
	v.BindEnv("storage.bucket")
	v.BindEnv("storage.local_root")
	v.BindEnv("server.port")
	v.BindEnv("server.metrics_port")
	v.BindEnv("server.log_level")
	v.BindEnv("server.log_format")
	v.BindEnv("server.shutdown_timeout_seconds")

	// Defaults
	v.SetDefault("storage.provider", ProviderDrive)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.local_root", "./data")
	v.SetDefault("server.port", ":8000")
	v.SetDefault("server.metrics_port", ":9091")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		slog.Debug("config.yaml not found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that would keep the gateway from
// serving requests.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return errors.New("api key is missing (GATEWAY_API_KEY or API_KEY)")
	}

	switch c.Storage.Provider {
	case ProviderDrive:
		if c.Google.Credentials == "" && c.Google.CredentialsFile == "" {
			return errors.New("google credentials are missing (GATEWAY_GOOGLE_CREDENTIALS, GOOGLE_CREDENTIALS or GATEWAY_GOOGLE_CREDENTIALS_FILE)")
		}
		if c.Google.Credentials != "" && !json.Valid([]byte(c.Google.Credentials)) {
			return errors.New("google credentials are not valid JSON")
		}
	case ProviderS3:
		if c.Storage.Bucket == "" {
			return errors.New("s3 bucket is missing (GATEWAY_STORAGE_BUCKET)")
		}
		if c.Storage.KeyID == "" || c.Storage.AppKey == "" {
			return errors.New("s3 credentials are missing (GATEWAY_STORAGE_KEY_ID, GATEWAY_STORAGE_APP_KEY)")
		}
	case ProviderLocal:
		if c.Storage.LocalRoot == "" {
			return errors.New("local storage root is missing (GATEWAY_STORAGE_LOCAL_ROOT)")
		}
	default:
		return fmt.Errorf("unknown storage provider %q (want %s, %s or %s)",
			c.Storage.Provider, ProviderDrive, ProviderS3, ProviderLocal)
	}

	return nil
}

// GoogleCredentials returns the service-account JSON, read from the file when
// it was not given inline.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.Google.Credentials != "" {
		return []byte(c.Google.Credentials), nil
	}
	if c.Google.CredentialsFile == "" {
		return nil, errors.New("google credentials are missing")
	}

	data, err := os.ReadFile(c.Google.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("google credentials file %s is not valid JSON", c.Google.CredentialsFile)
	}
	return data, nil
}
