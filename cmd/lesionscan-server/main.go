package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lesionscan/lesionscan/internal/config"
	"github.com/lesionscan/lesionscan/internal/domain/diagnosis"
	"github.com/lesionscan/lesionscan/internal/domain/patient"
	"github.com/lesionscan/lesionscan/internal/domain/upload"
	"github.com/lesionscan/lesionscan/internal/platform/blobstore"
	"github.com/lesionscan/lesionscan/internal/platform/db"
	"github.com/lesionscan/lesionscan/internal/platform/metrics"
	"github.com/lesionscan/lesionscan/internal/platform/middleware"
	"github.com/lesionscan/lesionscan/internal/platform/objectstore"
	"github.com/lesionscan/lesionscan/internal/platform/tracing"
)

const serviceName = "lesionscan-server"

// uploadBodyLimit caps upload request bodies. Base64 payloads inflate by a
// third, so this sits above blobstore.MaxFileSize.
const uploadBodyLimit = "70M"

// Set with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Lesion screening records and image upload API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), serviceName, version)
		},
	}
}

// checkCmd verifies that the configured database and bucket are reachable
// without starting the server.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load config and ping the database and storage bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if cfg.UseMemoryStore {
				fmt.Fprintln(out, "database: skipped (memory store)")
			} else {
				pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
				if err != nil {
					return err
				}
				pool.Close()
				fmt.Fprintln(out, "database: ok")
			}

			if !cfg.StorageEnabled() {
				fmt.Fprintln(out, "storage: skipped (local only)")
				return nil
			}
			bucket, err := objectstore.NewS3Bucket(ctx, storageConfig(cfg))
			if err != nil {
				return err
			}
			if err := bucket.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "storage: ok (bucket %s)\n", bucket.Name())
			return nil
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		logger := newLogger(nil)
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// app is the assembled server with the resources it must release on
// shutdown.
type app struct {
	echo        *echo.Echo
	pool        *pgxpool.Pool
	metrics     *metrics.Collector
	stopTracing func(context.Context) error
}

func (a *app) shutdown(ctx context.Context) error {
	err := a.echo.Shutdown(ctx)
	if a.stopTracing != nil {
		if terr := a.stopTracing(ctx); terr != nil && err == nil {
			err = terr
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return err
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{metrics: metrics.NewCollector()}

	// Tracing
	stop, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Version:     version,
		SampleRate:  cfg.TraceSampleRate,
		Insecure:    cfg.IsDev(),
	})
	if err != nil {
		return nil, err
	}
	a.stopTracing = stop

	// Records
	var (
		patients  patient.Repository
		diagnoses diagnosis.Repository
	)
	if cfg.UseMemoryStore {
		pr := patient.NewMemoryRepo()
		dr := diagnosis.NewMemoryRepo(pr)
		pr.OnDelete(dr.DeleteByPatient)
		patients, diagnoses = pr, dr
		logger.Warn().Msg("using in-memory record store; patient and diagnosis records are lost on restart")
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		patients, diagnoses = patient.NewRepo(pool), diagnosis.NewRepo(pool)
		logger.Info().Msg("connected to database")
	}

	// Uploads
	store, err := blobstore.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	bucket, err := newBucket(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	a.echo = e

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, "traceparent", "tracestate"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, uploadBodyLimit))
	e.Use(middleware.Tracing(serviceName))
	e.Use(middleware.Metrics(a.metrics))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Audit(logger))

	// Health check
	storeKind := "postgres"
	if cfg.UseMemoryStore {
		storeKind = "memory"
	}
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   storeKind,
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))
	e.Static("/uploads", cfg.UploadDir)

	// API
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	patient.NewHandler(patient.NewService(patients, a.metrics)).RegisterRoutes(apiV1)
	diagnosis.NewHandler(diagnosis.NewService(diagnoses, a.metrics)).RegisterRoutes(apiV1)
	upload.NewHandler(upload.NewService(store, bucket, logger, a.metrics)).RegisterRoutes(apiV1)

	return a, nil
}

// newBucket returns the S3 bucket when storage credentials are configured
// and a local-only stand-in otherwise.
func newBucket(ctx context.Context, cfg *config.Config) (objectstore.Bucket, error) {
	if !cfg.StorageEnabled() {
		return objectstore.LocalOnly{BaseURL: "http://localhost:" + cfg.Port}, nil
	}
	return objectstore.NewS3Bucket(ctx, storageConfig(cfg))
}

func storageConfig(cfg *config.Config) objectstore.Config {
	return objectstore.Config{
		Bucket:          cfg.StorageBucket,
		Endpoint:        cfg.StorageEndpoint,
		Region:          cfg.StorageRegion,
		AccessKeyID:     cfg.StorageAccessKeyID,
		SecretAccessKey: cfg.StorageSecretKey,
		PublicURL:       cfg.StoragePublicURL,
		ForcePathStyle:  cfg.StorageForcePathStyle,
	}
}
