package internal

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/reelbox/reelbox_server/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultPort           = 1090
	defaultUploadsDir     = "uploads"
	defaultUploadMaxBytes = int64(1 << 30)
	defaultConfigFile     = "files/config.yaml"
)

type Config struct {
	Port           int                  `mapstructure:"port"`
	AllowedOrigins []string             `mapstructure:"allowed_origins"`
	Log            LogConfig            `mapstructure:"log"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Uploads        UploadsConfig        `mapstructure:"uploads"`
	Remote         storage.RemoteConfig `mapstructure:"remote"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type UploadsConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

var envBindings = map[string]string{
	"port":                         "PORT",
	"allowed_origins":              "ALLOWED_ORIGINS",
	"log.level":                    "LOG_LEVEL",
	"log.pretty":                   "LOG_PRETTY",
	"database.url":                 "DATABASE_URL",
	"uploads.dir":                  "UPLOADS_DIR",
	"uploads.max_bytes":            "UPLOADS_MAX_BYTES",
	"remote.provider":              "REMOTE_PROVIDER",
	"remote.timeout":               "REMOTE_TIMEOUT",
	"remote.max_retries":           "REMOTE_MAX_RETRIES",
	"remote.cloudinary.cloud_name": "CLOUDINARY_CLOUD_NAME",
	"remote.cloudinary.api_key":    "CLOUDINARY_API_KEY",
	"remote.cloudinary.api_secret": "CLOUDINARY_API_SECRET",
	"remote.cloudinary.folder":     "CLOUDINARY_FOLDER",
	"remote.s3.endpoint":           "S3_ENDPOINT",
	"remote.s3.bucket":             "S3_BUCKET",
	"remote.s3.access_key":         "S3_ACCESS_KEY",
	"remote.s3.secret_key":         "S3_SECRET_KEY",
	"remote.s3.region":             "S3_REGION",
	"remote.s3.use_ssl":            "S3_USE_SSL",
	"remote.s3.public_base_url":    "S3_PUBLIC_BASE_URL",
}

// LoadConfig reads defaults, an optional YAML file and the environment, in
// increasing priority. An empty configFile looks for files/config.yaml.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", defaultPort)
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("uploads.dir", defaultUploadsDir)
	v.SetDefault("uploads.max_bytes", defaultUploadMaxBytes)
	v.SetDefault("remote.provider", storage.ProviderCloudinary)
	v.SetDefault("remote.timeout", 2*time.Minute)
	v.SetDefault("remote.max_retries", 2)
	v.SetDefault("remote.cloudinary.folder", storage.DefaultFolder)
	v.SetDefault("remote.s3.use_ssl", true)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	explicit := configFile != ""
	if !explicit {
		configFile = defaultConfigFile
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.AllowedOrigins = splitList(v.GetStringSlice("allowed_origins"))

	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", config.Port)
	}
	if config.Uploads.MaxBytes <= 0 {
		config.Uploads.MaxBytes = defaultUploadMaxBytes
	}
	return &config, nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(config LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(config.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
