package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Rebuild the face gallery from reference images",
	Long: `Rebuild the face gallery from the reference image directory.
Every image is sent to the embedding service, the first detected face
becomes the reference embedding for the identity named by the file.
The result is cached so the web server can start without recomputing.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	images, err := gallery.ReferenceImages(cfg.Gallery.ReferenceDir)
	if err != nil {
		return fmt.Errorf("failed to list reference images: %w", err)
	}
	if len(images) == 0 {
		fmt.Printf("No reference images found in %s\n", cfg.Gallery.ReferenceDir)
		return nil
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	extractor := embedding.NewClient(cfg.Embedding.URL)
	ctx := context.Background()

	g, err := gallery.Build(ctx, cfg.Gallery.ReferenceDir, extractor, log, func() {
		_ = bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("failed to build gallery: %w", err)
	}
	fmt.Println()

	hash, err := gallery.DirHash(cfg.Gallery.ReferenceDir)
	if err != nil {
		return fmt.Errorf("failed to hash reference directory: %w", err)
	}
	if err := gallery.Save(cfg.Gallery.CachePath, g, hash); err != nil {
		return fmt.Errorf("failed to save gallery cache: %w", err)
	}

	fmt.Printf("Enrolled %d identities from %d images\n", g.Len(), len(images))
	fmt.Printf("Gallery cache written to %s\n", cfg.Gallery.CachePath)

	if g.Len() < len(images) {
		log.Warn("some reference images produced no face",
			zap.Int("images", len(images)), zap.Int("identities", g.Len()))
	}
	return nil
}
