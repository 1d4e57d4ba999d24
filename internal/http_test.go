package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reelbox/reelbox_server/internal/media"
	"github.com/reelbox/reelbox_server/internal/middleware"
	"github.com/reelbox/reelbox_server/internal/status"
	"github.com/reelbox/reelbox_server/internal/storage"
	"github.com/reelbox/reelbox_server/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type testServer struct {
	handler fasthttp.RequestHandler
	local   *storage.LocalStorage
	service *media.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir(), storage.DefaultMountPath)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics, err := media.NewMetrics(registry)
	require.NoError(t, err)

	hub := websocket.NewHub()
	cors := middleware.NewCORSMiddleware(nil)
	service := media.NewService(media.NewMemoryRepository(), local, nil, hub, metrics, "")
	handler := NewRequestHandler(
		cors,
		media.NewEndpoints(service, local, 1<<30),
		status.NewEndpoints("test", service, hub, nil),
		local,
		websocket.NewHandler(hub, cors.AllowsOrigin),
		NewMetricsHandler(registry),
	)
	return &testServer{handler: handler, local: local, service: service}
}

func (s *testServer) do(method, path string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI("http://localhost:1090" + path)
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	s.handler(ctx)
	return ctx
}

func TestRequestHandler_Routes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		bodyContains   string
	}{
		{name: "hello", method: fasthttp.MethodGet, path: "/", expectedStatus: fasthttp.StatusOK, bodyContains: `"saying":"Hello"`},
		{name: "hello under api", method: fasthttp.MethodGet, path: "/api", expectedStatus: fasthttp.StatusOK, bodyContains: "Hello"},
		{name: "health", method: fasthttp.MethodGet, path: "/health", expectedStatus: fasthttp.StatusOK, bodyContains: `"status":"ok"`},
		{name: "status", method: fasthttp.MethodGet, path: "/api/status", expectedStatus: fasthttp.StatusOK, bodyContains: `"storage":"local"`},
		{name: "list", method: fasthttp.MethodGet, path: "/media", expectedStatus: fasthttp.StatusOK, bodyContains: "No media found in the library"},
		{name: "list under api", method: fasthttp.MethodGet, path: "/api/media", expectedStatus: fasthttp.StatusOK, bodyContains: `"count":0`},
		{name: "delete unknown id", method: fasthttp.MethodDelete, path: "/media/unknown-id", expectedStatus: fasthttp.StatusNotFound, bodyContains: "Media not found"},
		{name: "delete without id", method: fasthttp.MethodDelete, path: "/media/", expectedStatus: fasthttp.StatusBadRequest, bodyContains: "Media ID is required"},
		{name: "get unknown id", method: fasthttp.MethodGet, path: "/api/media/unknown-id", expectedStatus: fasthttp.StatusNotFound},
		{name: "nested media path", method: fasthttp.MethodGet, path: "/media/a/b", expectedStatus: fasthttp.StatusNotFound},
		{name: "upload needs post", method: fasthttp.MethodGet, path: "/upload", expectedStatus: fasthttp.StatusMethodNotAllowed},
		{name: "upload needs multipart", method: fasthttp.MethodPost, path: "/upload", expectedStatus: fasthttp.StatusBadRequest},
		{name: "metrics", method: fasthttp.MethodGet, path: "/metrics", expectedStatus: fasthttp.StatusOK},
		{name: "unknown route", method: fasthttp.MethodGet, path: "/nope", expectedStatus: fasthttp.StatusNotFound},
		{name: "preflight", method: fasthttp.MethodOptions, path: "/media/abc", expectedStatus: fasthttp.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := server.do(tt.method, tt.path)

			assert.Equal(t, tt.expectedStatus, ctx.Response.StatusCode(), string(ctx.Response.Body()))
			if tt.bodyContains != "" {
				assert.Contains(t, string(ctx.Response.Body()), tt.bodyContains)
			}
		})
	}
}

func TestRequestHandler_ShouldServeLocalUploads(t *testing.T) {
	// given
	server := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(server.local.BasePath(), "1700000000000-42.mp4"), []byte("video-bytes"), 0644))

	// when
	direct := server.do(fasthttp.MethodGet, "/uploads/1700000000000-42.mp4")
	proxied := server.do(fasthttp.MethodGet, "/api/uploads/1700000000000-42.mp4")
	missing := server.do(fasthttp.MethodGet, "/uploads/missing.mp4")

	// then
	assert.Equal(t, fasthttp.StatusOK, direct.Response.StatusCode())
	assert.Equal(t, "video-bytes", string(direct.Response.Body()))
	assert.Equal(t, fasthttp.StatusOK, proxied.Response.StatusCode())
	assert.Equal(t, fasthttp.StatusNotFound, missing.Response.StatusCode())
}

func TestRequestHandler_ShouldStopServingDeletedUploads(t *testing.T) {
	// given
	server := newTestServer(t)
	content := bytes.Repeat([]byte{0x42}, 4096)
	path, err := server.local.Store(context.Background(), bytes.NewReader(content), "clip.mp4", "video/mp4")
	require.NoError(t, err)
	result, err := server.service.Upload(context.Background(), media.UploadInput{
		File:   &media.UploadedFile{Path: path, MimeType: "video/mp4", Size: int64(len(content)), OriginalName: "clip.mp4"},
		Scheme: "http",
		Host:   "localhost:1090",
	})
	require.NoError(t, err)
	name, ok := server.local.FilenameFromPublicURL(result.Media.DisplayURL)
	require.True(t, ok)

	// when
	before := server.do(fasthttp.MethodGet, "/uploads/"+name)
	deleted := server.do(fasthttp.MethodDelete, "/media/"+result.Media.ID)
	after := server.do(fasthttp.MethodGet, "/uploads/"+name)

	// then
	assert.Equal(t, fasthttp.StatusOK, before.Response.StatusCode())
	assert.Equal(t, content, before.Response.Body())
	assert.Equal(t, fasthttp.StatusOK, deleted.Response.StatusCode(), string(deleted.Response.Body()))
	assert.Equal(t, fasthttp.StatusNotFound, after.Response.StatusCode())
}
