package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reelbox/reelbox_server/internal/storage"
	"github.com/rs/zerolog/log"
)

// LocalStore is the part of the local file manager the service drives.
type LocalStore interface {
	PublicURL(scheme, host, localPath string) string
	DeleteByPublicURL(ctx context.Context, rawURL string) error
	Remove(localPath string) error
}

// Notifier receives library changes after they are persisted.
type Notifier interface {
	MediaCreated(m *Media)
	MediaDeleted(id string)
}

type Service struct {
	repo     Repository
	local    LocalStore
	remote   storage.RemoteBackend
	notifier Notifier
	metrics  *Metrics
	folder   string
}

// NewService wires the orchestrators. remote is nil when no remote storage is
// configured; notifier and metrics are optional.
func NewService(repo Repository, local LocalStore, remote storage.RemoteBackend, notifier Notifier, metrics *Metrics, folder string) *Service {
	if folder == "" {
		folder = storage.DefaultFolder
	}
	return &Service{
		repo:     repo,
		local:    local,
		remote:   remote,
		notifier: notifier,
		metrics:  metrics,
		folder:   folder,
	}
}

func (s *Service) RemoteConfigured() bool {
	return s.remote != nil
}

// StorageMode reports where new uploads go first.
func (s *Service) StorageMode() string {
	if s.remote == nil {
		return StorageLocal
	}
	return s.remote.Name()
}

// RemoteOutcome is the result of trying the remote backend for one upload.
type RemoteOutcome struct {
	Attempted bool
	Upload    *storage.RemoteUpload
	Err       error
}

func (o RemoteOutcome) Succeeded() bool {
	return o.Attempted && o.Err == nil && o.Upload != nil
}

func (s *Service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if input.File == nil || strings.TrimSpace(input.File.Path) == "" {
		return nil, ValidationError("No file uploaded")
	}
	file := input.File

	media := &Media{
		Title: strings.TrimSpace(input.Title),
		Genre: NormalizeGenre(input.Genre),
	}
	if synopsis := strings.TrimSpace(input.Synopsis); synopsis != "" {
		media.Synopsis = &synopsis
	}

	storageName := StorageLocal
	outcome := s.uploadRemote(ctx, file)
	if outcome.Succeeded() {
		if err := s.local.Remove(file.Path); err != nil {
			log.Warn().Err(err).Str("path", file.Path).Msg("Failed to remove temporary upload")
		}
		s.applyRemote(media, outcome.Upload, file)
		storageName = s.remote.Name()
	} else {
		if outcome.Attempted {
			log.Warn().Err(outcome.Err).Str("provider", s.remote.Name()).Msg("Remote upload failed, keeping file locally")
			s.metrics.RecordFallback()
		}
		s.applyLocal(media, file, input.Scheme, input.Host)
	}

	if err := media.Validate(); err != nil {
		s.discardArtifact(ctx, media, file.Path)
		return nil, InternalError("Invalid media record", err)
	}

	if err := s.repo.Create(ctx, media); err != nil {
		s.discardArtifact(ctx, media, file.Path)
		return nil, InternalError("Failed to save media", err)
	}

	log.Info().
		Str("mediaID", media.ID).
		Str("storage", storageName).
		Int64("bytes", media.Bytes).
		Msg("Media uploaded")

	s.metrics.RecordUpload(storageName)
	if s.notifier != nil {
		s.notifier.MediaCreated(media)
	}

	return &UploadResult{Media: media, Storage: storageName}, nil
}

func (s *Service) uploadRemote(ctx context.Context, file *UploadedFile) RemoteOutcome {
	if s.remote == nil {
		return RemoteOutcome{}
	}

	started := time.Now()
	upload, err := s.remote.Upload(ctx, file.Path, storage.RemoteUploadOptions{
		PublicID:     uuid.NewString(),
		ResourceType: storage.ResourceTypeVideo,
		Folder:       s.folder,
		ContentType:  file.MimeType,
	})
	if err == nil && (upload == nil || upload.RemoteID == "") {
		err = fmt.Errorf("remote upload returned no identifier")
	}
	s.metrics.ObserveRemote("upload", started, err)

	return RemoteOutcome{Attempted: true, Upload: upload, Err: err}
}

func (s *Service) applyRemote(media *Media, upload *storage.RemoteUpload, file *UploadedFile) {
	remoteID := upload.RemoteID
	media.StorageKind = StorageKindRemote
	media.RemoteProvider = s.remote.Name()
	media.RemoteID = &remoteID
	media.DisplayURL = upload.SecureURL
	media.Duration = upload.Duration
	media.Format = upload.Format
	if media.Format == "" {
		media.Format = formatFromMimeType(file.MimeType)
	}
	media.Resolution = Resolution{Width: upload.Width, Height: upload.Height}
	media.Bytes = upload.Bytes
	if media.Bytes == 0 {
		media.Bytes = file.Size
	}
	media.ThumbnailURL = s.remote.ThumbnailURL(remoteID)
}

func (s *Service) applyLocal(media *Media, file *UploadedFile, scheme, host string) {
	media.StorageKind = StorageKindLocal
	media.DisplayURL = s.local.PublicURL(scheme, host, file.Path)
	media.Format = formatFromMimeType(file.MimeType)
	media.Bytes = file.Size
}

// discardArtifact removes whatever an upload placed when its record could not
// be saved.
func (s *Service) discardArtifact(ctx context.Context, media *Media, localPath string) {
	if media.IsRemote() && s.remote != nil {
		result, err := s.remote.Destroy(context.WithoutCancel(ctx), *media.RemoteID)
		if err != nil || !result.Idempotent() {
			log.Error().Err(err).
				Str("remoteID", *media.RemoteID).
				Str("result", string(result)).
				Msg("Failed to discard remote artifact after save failure")
		}
		return
	}
	if err := s.local.Remove(localPath); err != nil {
		log.Error().Err(err).Str("path", localPath).Msg("Failed to discard local artifact after save failure")
	}
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ValidationError("Media ID is required")
	}

	media, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return NotFoundError("Media not found")
	}
	if err != nil {
		return InternalError("Failed to load media", err)
	}

	if media.IsRemote() {
		if err := s.destroyRemote(ctx, media); err != nil {
			s.metrics.RecordDelete(string(KindOf(err)))
			return err
		}
	} else {
		if err := s.local.DeleteByPublicURL(ctx, media.DisplayURL); err != nil {
			s.metrics.RecordDelete(string(KindIO))
			return IOError("Failed to delete local media file", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotFoundError("Media not found")
		}
		s.metrics.RecordDelete(string(KindInternal))
		return InternalError("Failed to delete media record", err)
	}

	log.Info().Str("mediaID", id).Str("storageKind", string(media.StorageKind)).Msg("Media deleted")

	s.metrics.RecordDelete("ok")
	if s.notifier != nil {
		s.notifier.MediaDeleted(id)
	}
	return nil
}

func (s *Service) destroyRemote(ctx context.Context, media *Media) error {
	if s.remote == nil {
		return ConfigurationError("Remote storage is not configured, cannot delete remote media")
	}
	if media.RemoteProvider != "" && media.RemoteProvider != s.remote.Name() {
		return ConfigurationError(fmt.Sprintf("Media is stored on %s but %s is configured", media.RemoteProvider, s.remote.Name()))
	}

	started := time.Now()
	result, err := s.remote.Destroy(ctx, *media.RemoteID)
	s.metrics.ObserveRemote("destroy", started, err)
	if err != nil {
		return BackendError("Failed to delete media from remote storage", err)
	}
	if !result.Idempotent() {
		log.Warn().Str("mediaID", media.ID).Str("result", string(result)).Msg("Remote storage refused delete")
		return BackendError(fmt.Sprintf("Remote storage returned unexpected result: %s", result), nil)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]*Media, error) {
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, InternalError("Failed to list media", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Media, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ValidationError("Media ID is required")
	}
	media, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, NotFoundError("Media not found")
	}
	if err != nil {
		return nil, InternalError("Failed to load media", err)
	}
	return media, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// formatFromMimeType returns the subtype: video/quicktime -> quicktime.
func formatFromMimeType(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return strings.ToLower(strings.TrimSpace(mimeType[i+1:]))
	}
	return ""
}
