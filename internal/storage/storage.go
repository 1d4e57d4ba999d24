package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderCloudinary = "cloudinary"
	ProviderS3         = "s3"

	ResourceTypeVideo = "video"
	DefaultFolder     = "media_app"

	DestroyResultOK       DestroyResult = "ok"
	DestroyResultNotFound DestroyResult = "not found"

	defaultRemoteTimeout = 2 * time.Minute
)

// RemoteBackend is an object store reachable over the network. Artifacts are
// keyed by the opaque identifier it returns from Upload.
type RemoteBackend interface {
	Name() string
	Upload(ctx context.Context, localPath string, opts RemoteUploadOptions) (*RemoteUpload, error)
	Destroy(ctx context.Context, remoteID string) (DestroyResult, error)
	ThumbnailURL(remoteID string) *string
}

// RemoteUploadOptions describe one logical upload. PublicID names the artifact
// inside Folder and stays the same across retries.
type RemoteUploadOptions struct {
	PublicID     string
	ResourceType string
	Folder       string
	ContentType  string
}

// RemoteUpload is what the remote backend reports about a placed artifact.
type RemoteUpload struct {
	RemoteID  string
	SecureURL string
	Format    string
	Duration  float64
	Width     *int
	Height    *int
	Bytes     int64
}

// DestroyResult is the backend's textual answer to a delete request.
type DestroyResult string

// Idempotent reports whether the artifact is gone, either removed now or
// already absent.
func (r DestroyResult) Idempotent() bool {
	return r == DestroyResultOK || r == DestroyResultNotFound
}

type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

type S3Config struct {
	Endpoint      string `mapstructure:"endpoint"`
	Bucket        string `mapstructure:"bucket"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Region        string `mapstructure:"region"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type RemoteConfig struct {
	Provider   string           `mapstructure:"provider"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	S3         S3Config         `mapstructure:"s3"`
	Timeout    time.Duration    `mapstructure:"timeout"`
	MaxRetries int              `mapstructure:"max_retries"`
}

func (c RemoteConfig) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderCloudinary
	}
	return p
}

// IsConfigured is a pure completeness check: every credential the selected
// provider needs must be present and non-blank. No network call is made.
func (c RemoteConfig) IsConfigured() bool {
	switch c.provider() {
	case ProviderCloudinary:
		return allPresent(c.Cloudinary.CloudName, c.Cloudinary.APIKey, c.Cloudinary.APISecret)
	case ProviderS3:
		return allPresent(c.S3.Endpoint, c.S3.Bucket, c.S3.AccessKey, c.S3.SecretKey)
	default:
		return false
	}
}

func (c RemoteConfig) Folder() string {
	if f := strings.TrimSpace(c.Cloudinary.Folder); f != "" && c.provider() == ProviderCloudinary {
		return f
	}
	return DefaultFolder
}

func allPresent(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// NewRemoteBackend builds the remote client once, at startup. It returns a nil
// backend and no error when remote storage is not configured.
func NewRemoteBackend(ctx context.Context, config RemoteConfig) (RemoteBackend, error) {
	if !config.IsConfigured() {
		return nil, nil
	}

	var (
		backend RemoteBackend
		err     error
	)
	switch config.provider() {
	case ProviderCloudinary:
		backend, err = NewCloudinaryStorage(config.Cloudinary)
	case ProviderS3:
		backend, err = NewS3Storage(ctx, config.S3)
	default:
		return nil, fmt.Errorf("unknown remote provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.provider(), err)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return NewRetryingBackend(backend, timeout, ExponentialBackOff(config.MaxRetries)), nil
}
