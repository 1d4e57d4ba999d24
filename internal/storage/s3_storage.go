package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Storage struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

func NewS3Storage(ctx context.Context, config S3Config) (*S3Storage, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, err
		}
	}

	return &S3Storage{
		client:        client,
		bucket:        config.Bucket,
		publicBaseURL: s3PublicBaseURL(config),
	}, nil
}

func s3PublicBaseURL(config S3Config) string {
	if base := strings.TrimRight(strings.TrimSpace(config.PublicBaseURL), "/"); base != "" {
		return base
	}
	scheme := "http"
	if config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, config.Endpoint, config.Bucket)
}

func (s *S3Storage) Name() string {
	return ProviderS3
}

func (s *S3Storage) Upload(ctx context.Context, localPath string, opts RemoteUploadOptions) (*RemoteUpload, error) {
	folder := opts.Folder
	if folder == "" {
		folder = DefaultFolder
	}
	publicID := opts.PublicID
	if publicID == "" {
		publicID = uuid.NewString()
	}
	key := path.Join(folder, publicID+strings.ToLower(filepath.Ext(localPath)))

	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return nil, err
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(localPath)), ".")
	if _, subtype, ok := strings.Cut(baseMediaType(opts.ContentType), "/"); ok && subtype != "" {
		format = subtype
	}

	return &RemoteUpload{
		RemoteID:  key,
		SecureURL: s.objectURL(key),
		Format:    format,
		Bytes:     info.Size,
	}, nil
}

// Destroy maps S3 semantics onto the ok / not found vocabulary. RemoveObject
// already succeeds for missing keys; NoSuchKey is kept for stricter gateways.
func (s *S3Storage) Destroy(ctx context.Context, remoteID string) (DestroyResult, error) {
	err := s.client.RemoveObject(ctx, s.bucket, remoteID, minio.RemoveObjectOptions{})
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		switch errResponse.Code {
		case "NoSuchKey":
			return DestroyResultNotFound, nil
		case "":
			return "", err
		default:
			return DestroyResult(errResponse.Code), nil
		}
	}
	return DestroyResultOK, nil
}

// ThumbnailURL is always nil: plain object storage renders no still frames.
func (s *S3Storage) ThumbnailURL(string) *string {
	return nil
}

func (s *S3Storage) objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s.publicBaseURL + "/" + strings.Join(segments, "/")
}

var _ RemoteBackend = (*S3Storage)(nil)
