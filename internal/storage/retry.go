package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RetryingBackend bounds every remote call with a timeout and retries
// transient failures. Errors wrapped with backoff.Permanent are returned at once.
type RetryingBackend struct {
	delegate     RemoteBackend
	timeout      time.Duration
	buildBackoff func() backoff.BackOff
}

func NewRetryingBackend(delegate RemoteBackend, timeout time.Duration, factory func() backoff.BackOff) *RetryingBackend {
	if factory == nil {
		factory = ExponentialBackOff(2)
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RetryingBackend{delegate: delegate, timeout: timeout, buildBackoff: factory}
}

// ExponentialBackOff returns a factory allowing maxRetries attempts after the first.
func ExponentialBackOff(maxRetries int) func() backoff.BackOff {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 5 * time.Second
		b.MaxElapsedTime = 0
		return backoff.WithMaxRetries(b, uint64(maxRetries))
	}
}

func (r *RetryingBackend) Name() string {
	return r.delegate.Name()
}

func (r *RetryingBackend) Upload(ctx context.Context, localPath string, opts RemoteUploadOptions) (*RemoteUpload, error) {
	if opts.PublicID == "" {
		opts.PublicID = uuid.NewString()
	}

	var result *RemoteUpload
	err := r.retry(ctx, "upload", func(callCtx context.Context) error {
		res, err := r.delegate.Upload(callCtx, localPath, opts)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RetryingBackend) Destroy(ctx context.Context, remoteID string) (DestroyResult, error) {
	var result DestroyResult
	err := r.retry(ctx, "destroy", func(callCtx context.Context) error {
		res, err := r.delegate.Destroy(callCtx, remoteID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

func (r *RetryingBackend) ThumbnailURL(remoteID string) *string {
	return r.delegate.ThumbnailURL(remoteID)
}

func (r *RetryingBackend) retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	attempt := 0
	b := backoff.WithContext(r.buildBackoff(), ctx)
	return backoff.Retry(func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		err := fn(callCtx)
		if err != nil {
			log.Debug().
				Err(err).
				Str("backend", r.delegate.Name()).
				Str("operation", operation).
				Int("attempt", attempt).
				Msg("Remote storage call failed")
		}
		return err
	}, b)
}

var _ RemoteBackend = (*RetryingBackend)(nil)
