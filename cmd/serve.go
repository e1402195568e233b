package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/auth"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"github.com/kozaktomas/face-attendance/internal/stream"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the Face Attendance web server.
The server exposes the login, live video, attendance and enrollment
endpoints. When STREAM_URL is set it also runs the live recognition
pipeline against the camera feed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (overrides WEB_SESSION_SECRET)")
}

// loadOrBuildGallery loads the cached gallery when it is still valid for the
// reference directory, otherwise rebuilds it from scratch and refreshes the
// cache.
func loadOrBuildGallery(ctx context.Context, cfg *config.Config, ex embedding.Extractor, log *zap.Logger) (*gallery.Gallery, error) {
	g, err := gallery.LoadValid(cfg.Gallery.CachePath, cfg.Gallery.ReferenceDir)
	if err == nil {
		log.Info("loaded gallery from cache",
			zap.String("path", cfg.Gallery.CachePath),
			zap.Int("identities", g.Len()))
		return g, nil
	}

	switch {
	case errors.Is(err, gallery.ErrNoCache):
		log.Info("no gallery cache found, building from reference images")
	case errors.Is(err, gallery.ErrCacheStale):
		log.Info("gallery cache is stale, rebuilding from reference images")
	case errors.Is(err, gallery.ErrCacheCorrupt):
		log.Warn("gallery cache is corrupt, rebuilding from reference images")
	default:
		return nil, fmt.Errorf("failed to load gallery cache: %w", err)
	}

	g, err = gallery.Build(ctx, cfg.Gallery.ReferenceDir, ex, log, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build gallery: %w", err)
	}
	log.Info("gallery built", zap.Int("identities", g.Len()))

	hash, err := gallery.DirHash(cfg.Gallery.ReferenceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to hash reference directory: %w", err)
	}
	if err := gallery.Save(cfg.Gallery.CachePath, g, hash); err != nil {
		// A missing cache only means a slower next startup.
		log.Warn("failed to save gallery cache", zap.Error(err))
	}
	return g, nil
}

// openPipeline starts the live recognition pipeline when a camera URL is
// configured. An unreachable camera only disables live video: the video
// endpoints answer 503 while everything else keeps working.
func openPipeline(ctx context.Context, cfg *config.Config, ex embedding.Extractor, handle *gallery.Handle, log *zap.Logger) *stream.Pipeline {
	if cfg.Stream.URL == "" {
		log.Info("STREAM_URL not set, live video disabled")
		return nil
	}

	src, err := stream.OpenMJPEG(ctx, cfg.Stream.URL)
	if err != nil {
		log.Warn("failed to open video stream, live video disabled",
			zap.String("stream", cfg.Stream.URL), zap.Error(err))
		return nil
	}

	pipeline := stream.NewPipeline(src, ex, handle, cfg.Matcher.Threshold, log)
	go pipeline.Run(ctx)
	log.Info("live recognition pipeline started", zap.String("stream", cfg.Stream.URL))
	return pipeline
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Web.SessionSecret = secret
	}

	log, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	users, err := auth.LoadUsers(cfg.Auth.UsersFile)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	store, err := attendance.OpenStore(cfg.Attendance.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open attendance store: %w", err)
	}
	defer store.Close()

	extractor := embedding.NewClient(cfg.Embedding.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, err := loadOrBuildGallery(ctx, cfg, extractor, log)
	if err != nil {
		return err
	}
	handle := gallery.NewHandle(g)

	service := attendance.NewService(handle, extractor, store, cfg.Matcher.Threshold, log)

	pipeline := openPipeline(ctx, cfg, extractor, handle, log)

	server := web.NewServer(cfg, web.Deps{
		Users:     users,
		Gallery:   handle,
		Extractor: extractor,
		Service:   service,
		Store:     store,
		Pipeline:  pipeline,
		Logger:    log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
