package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/goccy/go-json"
)

const (
	cloudinaryDeliveryHost    = "https://res.cloudinary.com"
	unknownCloudinaryResponse = "Unknown Cloudinary response"
)

type CloudinaryStorage struct {
	client    *cloudinary.Cloudinary
	cloudName string
}

func NewCloudinaryStorage(config CloudinaryConfig) (*CloudinaryStorage, error) {
	client, err := cloudinary.NewFromParams(config.CloudName, config.APIKey, config.APISecret)
	if err != nil {
		return nil, err
	}

	return &CloudinaryStorage{
		client:    client,
		cloudName: config.CloudName,
	}, nil
}

func (s *CloudinaryStorage) Name() string {
	return ProviderCloudinary
}

func (s *CloudinaryStorage) Upload(ctx context.Context, localPath string, opts RemoteUploadOptions) (*RemoteUpload, error) {
	resourceType := opts.ResourceType
	if resourceType == "" {
		resourceType = ResourceTypeVideo
	}

	params := uploader.UploadParams{
		ResourceType: resourceType,
		Folder:       opts.Folder,
	}
	// a fixed public id lets a retried attempt replace the asset an earlier
	// attempt may already have placed
	if opts.PublicID != "" {
		params.PublicID = opts.PublicID
		params.Overwrite = api.Bool(true)
	}

	res, err := s.client.Upload.Upload(ctx, localPath, params)
	if err != nil {
		return nil, err
	}

	if res.Error.Message != "" {
		return nil, backoff.Permanent(fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message))
	}
	if res.PublicID == "" || res.SecureURL == "" {
		return nil, backoff.Permanent(fmt.Errorf("cloudinary upload returned no public id"))
	}

	upload := &RemoteUpload{
		RemoteID:  res.PublicID,
		SecureURL: res.SecureURL,
		Format:    res.Format,
		Bytes:     int64(res.Bytes),
	}
	if res.Width > 0 {
		w := res.Width
		upload.Width = &w
	}
	if res.Height > 0 {
		h := res.Height
		upload.Height = &h
	}
	upload.Duration = responseDuration(res.Response)
	return upload, nil
}

func (s *CloudinaryStorage) Destroy(ctx context.Context, remoteID string) (DestroyResult, error) {
	res, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     remoteID,
		ResourceType: ResourceTypeVideo,
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return "", err
	}

	switch {
	case res.Result != "":
		return DestroyResult(res.Result), nil
	case res.Error.Message != "":
		return DestroyResult(res.Error.Message), nil
	default:
		return DestroyResult(unknownCloudinaryResponse), nil
	}
}

// ThumbnailURL is the still frame Cloudinary renders for a video asset when
// the delivery URL asks for a jpg.
func (s *CloudinaryStorage) ThumbnailURL(remoteID string) *string {
	if remoteID == "" {
		return nil
	}
	segments := strings.Split(remoteID, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	thumb := fmt.Sprintf("%s/%s/%s/upload/%s.jpg",
		cloudinaryDeliveryHost, url.PathEscape(s.cloudName), ResourceTypeVideo, strings.Join(segments, "/"))
	return &thumb
}

// responseDuration reads the video length from the raw upload body, which the
// SDK keeps as a pointer to the decoded JSON.
func responseDuration(response interface{}) float64 {
	if response == nil {
		return 0
	}
	body, err := json.Marshal(response)
	if err != nil {
		return 0
	}
	var parsed struct {
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0
	}
	return parsed.Duration
}

var _ RemoteBackend = (*CloudinaryStorage)(nil)
