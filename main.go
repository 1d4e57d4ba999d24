package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reelbox/reelbox_server/internal"
	"github.com/reelbox/reelbox_server/internal/media"
	"github.com/reelbox/reelbox_server/internal/middleware"
	"github.com/reelbox/reelbox_server/internal/status"
	"github.com/reelbox/reelbox_server/internal/storage"
	"github.com/reelbox/reelbox_server/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 15 * time.Second
	// multipart framing and text fields on top of the file itself
	requestOverhead = 1 << 20
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the media server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configFile)
		},
	}

	rootCmd := &cobra.Command{
		Use:           "reelbox",
		Short:         "Media library server with remote and local video storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file (default files/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(configFile)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return rootCmd
}

func migrate(configFile string) error {
	config, err := internal.LoadConfig(configFile)
	if err != nil {
		return err
	}
	internal.SetupLogging(config.Log)

	if config.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := internal.NewDB(config.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	return internal.Migrate(db)
}

func serve(parent context.Context, configFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := internal.LoadConfig(configFile)
	if err != nil {
		return err
	}
	internal.SetupLogging(config.Log)

	var (
		repo   media.Repository
		pinger status.Pinger
	)
	if config.Database.URL != "" {
		db, err := internal.NewDB(config.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := internal.Migrate(db); err != nil {
			return err
		}
		repo = media.NewPostgresRepository(db)
		pinger = db
		log.Info().Msg("Database initialized")
	} else {
		repo = media.NewMemoryRepository()
		log.Warn().Msg("DATABASE_URL not set, media records are kept in memory only")
	}

	localStorage, err := storage.NewLocalStorage(config.Uploads.Dir, storage.DefaultMountPath)
	if err != nil {
		return err
	}

	remote, err := storage.NewRemoteBackend(ctx, config.Remote)
	if err != nil {
		return fmt.Errorf("failed to initialize remote storage: %w", err)
	}
	if remote != nil {
		log.Info().Str("provider", remote.Name()).Msg("Remote storage configured")
	} else {
		log.Warn().Str("dir", localStorage.BasePath()).Msg("Remote storage not configured, uploads stay on local disk")
	}

	metrics, err := media.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	corsMiddleware := middleware.NewCORSMiddleware(config.AllowedOrigins)
	mediaService := media.NewService(repo, localStorage, remote, hub, metrics, config.Remote.Folder())
	mediaEndpoints := media.NewEndpoints(mediaService, localStorage, config.Uploads.MaxBytes)
	statusEndpoints := status.NewEndpoints(version, mediaService, hub, pinger)
	wsHandler := websocket.NewHandler(hub, corsMiddleware.AllowsOrigin)

	requestHandler := internal.NewRequestHandler(
		corsMiddleware,
		mediaEndpoints,
		statusEndpoints,
		localStorage,
		wsHandler,
		internal.NewMetricsHandler(prometheus.DefaultGatherer),
	)

	server := &fasthttp.Server{
		Handler:            requestHandler,
		Name:               "reelbox",
		MaxRequestBodySize: int(config.Uploads.MaxBytes + requestOverhead),
		StreamRequestBody:  true,
		ReadTimeout:        30 * time.Minute,
		WriteTimeout:       30 * time.Minute,
		IdleTimeout:        2 * time.Minute,
	}

	addr := ":" + strconv.Itoa(config.Port)
	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("Server listening")
		errs <- server.ListenAndServe(addr)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("error starting server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}
