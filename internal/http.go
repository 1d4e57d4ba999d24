package internal

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reelbox/reelbox_server/internal/media"
	"github.com/reelbox/reelbox_server/internal/middleware"
	"github.com/reelbox/reelbox_server/internal/status"
	"github.com/reelbox/reelbox_server/internal/storage"
	"github.com/reelbox/reelbox_server/internal/websocket"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// apiPrefix is the base the frontend dev proxy uses; every route answers
// with and without it.
const apiPrefix = "/api"

func NewMetricsHandler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

func NewRequestHandler(corsMiddleware *middleware.CORSMiddleware, mediaEndpoints *media.Endpoints, statusEndpoints *status.StatusEndpoints, localStorage *storage.LocalStorage, wsHandler *websocket.Handler, metricsHandler fasthttp.RequestHandler) fasthttp.RequestHandler {
	uploadsMount := localStorage.MountPath()
	uploadsHandler := localStorage.Handler()

	handler := func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		if path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/") {
			path = strings.TrimPrefix(path, apiPrefix)
			if path == "" {
				path = "/"
			}
			ctx.URI().SetPath(path)
		}
		method := string(ctx.Method())

		switch {
		case path == "/":
			if method == fasthttp.MethodGet {
				statusEndpoints.Hello(ctx)
			} else {
				methodNotAllowed(ctx)
			}
		case path == "/health":
			statusEndpoints.Health(ctx)
		case path == "/status":
			statusEndpoints.Status(ctx)
		case path == "/metrics":
			metricsHandler(ctx)
		case path == "/ws":
			wsHandler.HandleFastHTTP(ctx)

		case path == "/upload":
			if method == fasthttp.MethodPost {
				mediaEndpoints.Upload(ctx)
			} else {
				methodNotAllowed(ctx)
			}
		case path == "/media":
			if method == fasthttp.MethodGet {
				mediaEndpoints.List(ctx)
			} else {
				methodNotAllowed(ctx)
			}
		case strings.HasPrefix(path, "/media/"):
			parts := strings.Split(path, "/")
			if len(parts) != 3 {
				notFound(ctx)
				return
			}
			ctx.SetUserValue("mediaID", parts[2])
			switch method {
			case fasthttp.MethodGet:
				if parts[2] == "" {
					mediaEndpoints.List(ctx)
				} else {
					mediaEndpoints.Get(ctx)
				}
			case fasthttp.MethodDelete:
				mediaEndpoints.Delete(ctx)
			default:
				methodNotAllowed(ctx)
			}

		case strings.HasPrefix(path, uploadsMount):
			if method == fasthttp.MethodGet || method == fasthttp.MethodHead {
				uploadsHandler(ctx)
			} else {
				methodNotAllowed(ctx)
			}

		default:
			notFound(ctx)
		}
	}

	return corsMiddleware.Handle(handler)
}

func notFound(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetBodyString(`{"success":false,"message":"Not Found"}`)
}

func methodNotAllowed(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
	ctx.SetBodyString(`{"success":false,"message":"Method Not Allowed"}`)
}
