package media

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
	"github.com/reelbox/reelbox_server/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// FileStager writes an incoming upload to local disk.
type FileStager interface {
	Store(ctx context.Context, reader io.Reader, originalName, mimeType string) (string, error)
}

type Endpoints struct {
	service  *Service
	stager   FileStager
	maxBytes int64
}

func NewEndpoints(service *Service, stager FileStager, maxBytes int64) *Endpoints {
	return &Endpoints{
		service:  service,
		stager:   stager,
		maxBytes: maxBytes,
	}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Storage string `json:"storage"`
	Data    *Media `json:"data"`
}

type listResponse struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Message string   `json:"message,omitempty"`
	Data    []*Media `json:"data"`
}

type itemResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *Media `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Upload handles POST /upload
func (e *Endpoints) Upload(ctx *fasthttp.RequestCtx) {
	contentType := string(ctx.Request.Header.ContentType())
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		writeError(ctx, ValidationError("Content-Type must be multipart/form-data"), "")
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		log.Debug().Err(err).Msg("Failed to parse multipart form")
		writeError(ctx, ValidationError("Failed to parse multipart form"), "")
		return
	}
	defer ctx.Request.RemoveMultipartFormFiles()

	fileHeader := firstFile(form)
	if fileHeader == nil {
		writeError(ctx, ValidationError("No file uploaded"), "")
		return
	}
	if e.maxBytes > 0 && fileHeader.Size > e.maxBytes {
		writeError(ctx, ValidationError("File is too large"), "")
		return
	}

	uploaded, err := e.stage(ctx, fileHeader)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedMediaType) {
			writeError(ctx, ValidationError("Only video files are allowed"), "")
			return
		}
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("Failed to store upload")
		writeError(ctx, IOError("Failed to store uploaded file", err), "Failed to store uploaded file")
		return
	}

	result, err := e.service.Upload(ctx, UploadInput{
		Title:    formValue(form, "title"),
		Synopsis: formValue(form, "synopsis"),
		Genre:    formValues(form, "genre", "genres", "genre[]"),
		File:     uploaded,
		Scheme:   requestScheme(ctx),
		Host:     requestHost(ctx),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to upload media")
		writeError(ctx, err, "Failed to upload media")
		return
	}

	message := "Media uploaded successfully"
	if result.Storage == StorageLocal && e.service.RemoteConfigured() {
		message = "Media saved locally, remote storage was unavailable"
	}
	writeJSON(ctx, fasthttp.StatusCreated, uploadResponse{
		Success: true,
		Message: message,
		Storage: result.Storage,
		Data:    result.Media,
	})
}

func (e *Endpoints) stage(ctx context.Context, fileHeader *multipart.FileHeader) (*UploadedFile, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mimeType, err := resolveMimeType(file, fileHeader)
	if err != nil {
		return nil, err
	}

	path, err := e.stager.Store(ctx, file, fileHeader.Filename, mimeType)
	if err != nil {
		return nil, err
	}

	return &UploadedFile{
		Path:         path,
		MimeType:     mimeType,
		Size:         fileHeader.Size,
		OriginalName: fileHeader.Filename,
	}, nil
}

// resolveMimeType trusts the part header unless it is missing or generic, then
// sniffs the content and finally falls back to the extension.
func resolveMimeType(file multipart.File, fileHeader *multipart.FileHeader) (string, error) {
	declared := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	detected, err := mimetype.DetectReader(file)
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", seekErr
	}
	if err == nil && storage.IsVideoType(detected.String()) {
		return detected.String(), nil
	}
	return detectContentType(fileHeader.Filename), nil
}

// List handles GET /media
func (e *Endpoints) List(ctx *fasthttp.RequestCtx) {
	list, err := e.service.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list media")
		writeError(ctx, err, "Failed to fetch media")
		return
	}

	response := listResponse{Success: true, Count: len(list), Data: list}
	if len(list) == 0 {
		response.Message = "No media found in the library"
	}
	writeJSON(ctx, fasthttp.StatusOK, response)
}

// Get handles GET /media/{id}
func (e *Endpoints) Get(ctx *fasthttp.RequestCtx) {
	mediaID, _ := ctx.UserValue("mediaID").(string)

	media, err := e.service.Get(ctx, mediaID)
	if err != nil {
		if KindOf(err) == KindInternal {
			log.Error().Err(err).Str("mediaID", mediaID).Msg("Failed to get media")
		}
		writeError(ctx, err, "Failed to fetch media")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, itemResponse{Success: true, Data: media})
}

// Delete handles DELETE /media/{id}
func (e *Endpoints) Delete(ctx *fasthttp.RequestCtx) {
	mediaID, _ := ctx.UserValue("mediaID").(string)

	if err := e.service.Delete(ctx, mediaID); err != nil {
		switch KindOf(err) {
		case KindValidation, KindNotFound:
			log.Debug().Err(err).Str("mediaID", mediaID).Msg("Rejected delete")
		default:
			log.Error().Err(err).Str("mediaID", mediaID).Msg("Failed to delete media")
		}
		writeError(ctx, err, "Failed to delete media")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, itemResponse{Success: true, Message: "Media deleted successfully"})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	response, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		ctx.Error("Internal server error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(response)
}

func writeError(ctx *fasthttp.RequestCtx, err error, fallback string) {
	response := errorResponse{
		Success: false,
		Message: PublicMessage(err, fallback),
	}
	switch KindOf(err) {
	case KindBackend, KindIO, KindConfiguration:
		response.Error = err.Error()
	}
	writeJSON(ctx, StatusCode(err), response)
}

// firstFile prefers the "file" field and otherwise takes any file part.
func firstFile(form *multipart.Form) *multipart.FileHeader {
	if files := form.File["file"]; len(files) > 0 {
		return files[0]
	}
	for _, files := range form.File {
		if len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func formValues(form *multipart.Form, keys ...string) []string {
	for _, key := range keys {
		if values := form.Value[key]; len(values) > 0 {
			return values
		}
	}
	return nil
}

func requestScheme(ctx *fasthttp.RequestCtx) string {
	if proto := string(ctx.Request.Header.Peek("X-Forwarded-Proto")); proto != "" {
		return strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	if ctx.IsTLS() {
		return "https"
	}
	return "http"
}

func requestHost(ctx *fasthttp.RequestCtx) string {
	if host := string(ctx.Request.Header.Peek("X-Forwarded-Host")); host != "" {
		return strings.TrimSpace(strings.Split(host, ",")[0])
	}
	return string(ctx.Host())
}

func detectContentType(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "mp4", "m4v":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	case "avi":
		return "video/x-msvideo"
	case "ogv":
		return "video/ogg"
	default:
		return "application/octet-stream"
	}
}
