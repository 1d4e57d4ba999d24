package media

import (
	"fmt"
	"time"
)

type StorageKind string

const (
	StorageKindRemote StorageKind = "remote"
	StorageKindLocal  StorageKind = "local"

	// StorageLocal is what upload responses report when the artifact stayed on disk.
	StorageLocal = "local"
)

type Resolution struct {
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

// Media is one item in the library. The `_id` tag keeps the frontend contract.
type Media struct {
	ID             string      `json:"_id"`
	Title          string      `json:"title"`
	Genre          []string    `json:"genre"`
	Synopsis       *string     `json:"synopsis"`
	StorageKind    StorageKind `json:"storageKind"`
	RemoteProvider string      `json:"remoteProvider,omitempty"`
	RemoteID       *string     `json:"remoteId"`
	DisplayURL     string      `json:"displayUrl"`
	Duration       float64     `json:"duration"`
	Format         string      `json:"format"`
	Resolution     Resolution  `json:"resolution"`
	Bytes          int64       `json:"bytes"`
	ThumbnailURL   *string     `json:"thumbnailUrl"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

func (m *Media) IsRemote() bool {
	return m.RemoteID != nil && *m.RemoteID != ""
}

// Validate checks the storage state before a record is persisted: a remote
// record carries its remote id, a local one never does.
func (m *Media) Validate() error {
	switch m.StorageKind {
	case StorageKindRemote:
		if !m.IsRemote() {
			return fmt.Errorf("remote media requires a remote id")
		}
	case StorageKindLocal:
		if m.RemoteID != nil {
			return fmt.Errorf("local media cannot carry a remote id")
		}
		if m.ThumbnailURL != nil {
			return fmt.Errorf("local media cannot carry a thumbnail url")
		}
	default:
		return fmt.Errorf("unknown storage kind: %q", m.StorageKind)
	}
	if m.DisplayURL == "" {
		return fmt.Errorf("display url is required")
	}
	return nil
}

// UploadedFile is the transport layer's description of a file it already
// staged on local disk.
type UploadedFile struct {
	Path         string
	MimeType     string
	Size         int64
	OriginalName string
}

type UploadInput struct {
	Title    string
	Synopsis string
	Genre    []string
	File     *UploadedFile

	// Scheme and Host of the inbound request, used to build local display URLs.
	Scheme string
	Host   string
}

type UploadResult struct {
	Media   *Media
	Storage string
}
