package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	DefaultMountPath = "/uploads/"

	maxFilenameAttempts = 5
)

var ErrUnsupportedMediaType = errors.New("unsupported media type: only video uploads are accepted")

// LocalStorage keeps uploads on disk and serves them under a static mount.
// Stored filenames are self-contained: the public URL alone is enough to find
// the file again.
type LocalStorage struct {
	basePath  string
	mountPath string
}

func NewLocalStorage(basePath, mountPath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./uploads"
	}
	if mountPath == "" {
		mountPath = DefaultMountPath
	}
	mountPath = "/" + strings.Trim(mountPath, "/") + "/"

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return &LocalStorage{
		basePath:  basePath,
		mountPath: mountPath,
	}, nil
}

func (s *LocalStorage) BasePath() string {
	return s.basePath
}

func (s *LocalStorage) MountPath() string {
	return s.mountPath
}

// Store writes reader to a freshly generated file and returns its path.
func (s *LocalStorage) Store(ctx context.Context, reader io.Reader, originalName, mimeType string) (string, error) {
	if !IsVideoType(mimeType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mimeType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, fullPath, err := s.createUnique(originalName, mimeType)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return fullPath, nil
}

func (s *LocalStorage) createUnique(originalName, mimeType string) (*os.File, string, error) {
	var lastErr error
	for i := 0; i < maxFilenameAttempts; i++ {
		fullPath := filepath.Join(s.basePath, generateFilename(originalName, mimeType, time.Now()))
		file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return file, fullPath, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("failed to create upload file: %w", err)
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("failed to allocate a unique filename: %w", lastErr)
}

// PublicURL builds the absolute URL the frontend plays directly.
func (s *LocalStorage) PublicURL(scheme, host, localPath string) string {
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s%s", scheme, host, s.mountPath, url.PathEscape(filepath.Base(localPath)))
}

// FilenameFromPublicURL is the inverse of PublicURL. It accepts absolute URLs
// and bare paths and returns false when no usable filename is present.
func (s *LocalStorage) FilenameFromPublicURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	p := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.EscapedPath()
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	idx := strings.Index(p, s.mountPath)
	if idx == -1 {
		return "", false
	}
	encoded, _, _ := strings.Cut(p[idx+len(s.mountPath):], "/")
	if encoded == "" {
		return "", false
	}

	name, err := url.PathUnescape(encoded)
	if err != nil {
		return "", false
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name, true
}

// DeleteByPublicURL removes the file a public URL points at. URLs without a
// filename are ignored and a file that is already gone is not an error.
func (s *LocalStorage) DeleteByPublicURL(ctx context.Context, rawURL string) error {
	name, ok := s.FilenameFromPublicURL(rawURL)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Remove(filepath.Join(s.basePath, name))
}

func (s *LocalStorage) Remove(localPath string) error {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) Exists(localPath string) (bool, error) {
	_, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Handler serves stored files under the mount path. Byte ranges are enabled
// so players can seek.
func (s *LocalStorage) Handler() fasthttp.RequestHandler {
	mount := []byte(strings.TrimSuffix(s.mountPath, "/"))
	fileServer := &fasthttp.FS{
		Root:               s.basePath,
		AcceptByteRange:    true,
		GenerateIndexPages: false,
		Compress:           false,
		SkipCache:          true,
		PathRewrite: func(ctx *fasthttp.RequestCtx) []byte {
			p := ctx.Path()
			if i := bytes.Index(p, mount); i >= 0 {
				return p[i+len(mount):]
			}
			return p
		},
		PathNotFound: func(ctx *fasthttp.RequestCtx) {
			ctx.Error("Not Found", fasthttp.StatusNotFound)
		},
	}
	return fileServer.NewRequestHandler()
}
