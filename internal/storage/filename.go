package storage

import (
	"fmt"
	"math/rand/v2"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const defaultExtension = ".mp4"

var extensionPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// generateFilename combines a millisecond timestamp with a random suffix so
// concurrent uploads never need a shared counter.
func generateFilename(originalName, mimeType string, now time.Time) string {
	return fmt.Sprintf("%d-%d%s", now.UnixMilli(), rand.IntN(1_000_000_000), resolveExtension(originalName, mimeType))
}

func resolveExtension(originalName, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(originalName)); extensionPattern.MatchString(ext) {
		return ext
	}
	if m := mimetype.Lookup(baseMediaType(mimeType)); m != nil {
		if ext := m.Extension(); extensionPattern.MatchString(ext) {
			return ext
		}
	}
	return defaultExtension
}

// baseMediaType drops parameters ("video/mp4; codecs=avc1") and lowercases.
func baseMediaType(contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func IsVideoType(contentType string) bool {
	return strings.HasPrefix(baseMediaType(contentType), "video/")
}
