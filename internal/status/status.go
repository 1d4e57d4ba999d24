package status

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const checkTimeout = 3 * time.Second

// Library is what the status report reads from the media service.
type Library interface {
	Count(ctx context.Context) (int, error)
	StorageMode() string
}

type ClientCounter interface {
	ClientCount() int
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type StatusEndpoints struct {
	version string
	library Library
	clients ClientCounter
	db      Pinger
}

// NewEndpoints builds the health and status handlers. clients and db may be
// nil when the server runs without a live feed or database.
func NewEndpoints(version string, library Library, clients ClientCounter, db Pinger) *StatusEndpoints {
	return &StatusEndpoints{
		version: version,
		library: library,
		clients: clients,
		db:      db,
	}
}

type HelloResponse struct {
	Saying string `json:"saying"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type StatusResponse struct {
	Health      string `json:"health"`
	Version     string `json:"version"`
	Storage     string `json:"storage"`
	MediaCount  int    `json:"mediaCount"`
	LiveClients int    `json:"liveClients"`
}

func (se *StatusEndpoints) Hello(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, HelloResponse{Saying: "Hello"})
}

func (se *StatusEndpoints) Health(ctx *fasthttp.RequestCtx) {
	response := HealthResponse{
		Status:  "ok",
		Version: se.version,
	}

	if se.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := se.db.PingContext(pingCtx); err != nil {
			log.Warn().Err(err).Msg("Health check: database unreachable")
			response.Status = "degraded"
			writeJSON(ctx, fasthttp.StatusServiceUnavailable, response)
			return
		}
	}

	writeJSON(ctx, fasthttp.StatusOK, response)
}

func (se *StatusEndpoints) Status(ctx *fasthttp.RequestCtx) {
	response := StatusResponse{
		Health:  "OK",
		Version: se.version,
		Storage: se.library.StorageMode(),
	}

	countCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	count, err := se.library.Count(countCtx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count media")
		response.Health = "DEGRADED"
	}
	response.MediaCount = count

	if se.clients != nil {
		response.LiveClients = se.clients.ClientCount()
	}

	writeJSON(ctx, fasthttp.StatusOK, response)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	responseJSON, err := json.Marshal(body)
	if err != nil {
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(responseJSON)
}
