package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/classroom/go/internal/config"
	"github.com/mcdev12/classroom/go/internal/meeting/gateway"
	"github.com/mcdev12/classroom/go/internal/meeting/segments"
	"github.com/mcdev12/classroom/go/internal/metrics"
	"github.com/mcdev12/classroom/go/internal/videostore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(getEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	met := metrics.NewGateway()

	publisher, closePublisher := setupPublisher(cfg.NATS)
	defer closePublisher()

	segmentRepo, closeDB := setupSegments(ctx, cfg.Database)
	defer closeDB()

	videos, err := setupVideoStore(ctx, cfg.Video)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up video store")
	}

	connCfg := gateway.DefaultConnectionConfig()
	connCfg.HandshakeTimeout = cfg.Gateway.HandshakeTimeout
	connCfg.PingInterval = cfg.Gateway.PingInterval

	gatewayService := gateway.NewService(gateway.Config{
		ConnectionConfig:  connCfg,
		HeartbeatInterval: cfg.Gateway.HeartbeatInterval,
		Publisher:         publisher,
		Metrics:           met,
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	gatewayService.RegisterRoutes(r)
	segments.NewHandler(segments.NewApp(segmentRepo)).RegisterRoutes(r)
	videostore.NewHandler(videos).RegisterRoutes(r)

	r.Get("/metrics", met.Handler(func() {
		rooms, conns := gatewayService.Registry().Counts()
		met.SetActive(rooms, conns)
	}).ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
		},
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Gateway.Port),
		Handler:           h2c.NewHandler(c.Handler(r), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Dur("heartbeat", cfg.Gateway.HeartbeatInterval).
			Bool("database", cfg.Database.Enabled).
			Str("video_store", cfg.Video.Store).
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// hijacked websocket connections are not covered by Shutdown
	cancel()
	<-serviceDone

	log.Info().Msg("meeting gateway shutdown complete")
}

func setupLogging(cfg config.Log) {
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(cfg.ZerologLevel())
}

func setupPublisher(cfg config.NATS) (gateway.EventPublisher, func()) {
	if cfg.URL == "" {
		log.Info().Msg("NATS_URL not set, room events are not published")
		return gateway.NoopPublisher{}, func() {}
	}

	natsCfg := gateway.DefaultNATSPublisherConfig()
	natsCfg.URL = cfg.URL
	if cfg.SubjectPrefix != "" {
		natsCfg.SubjectPrefix = cfg.SubjectPrefix
	}

	pub, err := gateway.NewNATSPublisher(natsCfg)
	if err != nil {
		log.Fatal().Err(err).Str("nats_url", cfg.URL).Msg("failed to connect to NATS")
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS publisher")
		}
	}
}

func setupSegments(ctx context.Context, cfg config.Database) (segments.SegmentsRepository, func()) {
	if !cfg.Enabled {
		log.Info().Msg("database disabled, timelines are kept in memory")
		return segments.NewMemoryRepository(), func() {}
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := segments.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare database schema")
	}

	log.Info().Str("database", cfg.Name).Str("host", cfg.Host).Msg("connected to database")
	return segments.NewRepository(pool), pool.Close
}

func setupVideoStore(ctx context.Context, cfg config.Video) (videostore.Store, error) {
	if cfg.Store != "s3" {
		return videostore.NewMemoryStore(), nil
	}
	store, err := videostore.NewS3Store(ctx, videostore.S3Config{
		Endpoint:        cfg.S3.Endpoint,
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		UsePathStyle:    cfg.S3.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("bucket", cfg.S3.Bucket).Msg("storing videos in S3")
	return store, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
