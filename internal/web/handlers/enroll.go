package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// EnrollHandler accepts reference-image uploads and rebuilds the gallery.
type EnrollHandler struct {
	referenceDir string
	cachePath    string
	gallery      *gallery.Handle
	extractor    embedding.Extractor
	logger       *zap.Logger
}

// NewEnrollHandler creates a new enroll handler.
func NewEnrollHandler(referenceDir, cachePath string, g *gallery.Handle, ex embedding.Extractor, logger *zap.Logger) *EnrollHandler {
	return &EnrollHandler{
		referenceDir: referenceDir,
		cachePath:    cachePath,
		gallery:      g,
		extractor:    ex,
		logger:       logger,
	}
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// saveReferenceImage writes one uploaded file into the reference directory.
func (h *EnrollHandler) saveReferenceImage(fileHeader *multipart.FileHeader) (string, error) {
	safeName := filepath.Base(fileHeader.Filename)
	if !allowedImageExtensions[strings.ToLower(filepath.Ext(safeName))] {
		return "", fmt.Errorf("unsupported file type: %s", safeName)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file %s", safeName)
	}
	defer file.Close()

	out, err := os.Create(filepath.Join(h.referenceDir, safeName)) //nolint:gosec // filename sanitized via filepath.Base
	if err != nil {
		return "", errors.New("failed to create reference image")
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(file, maxUploadSize)); err != nil {
		return "", errors.New("failed to save reference image")
	}
	return safeName, nil
}

// Enroll handles reference image uploads. Enrollment is a full rebuild:
// the whole reference directory is re-scanned and the new gallery swapped
// in atomically, then the cache artifact is rewritten.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	if err := os.MkdirAll(h.referenceDir, 0o750); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create reference directory")
		return
	}

	var saved []string
	for _, fileHeader := range files {
		name, err := h.saveReferenceImage(fileHeader)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved = append(saved, name)
	}

	g, err := gallery.Build(r.Context(), h.referenceDir, h.extractor, h.logger, nil)
	if err != nil {
		h.logger.Error("gallery rebuild failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to rebuild gallery")
		return
	}
	h.gallery.Set(g)

	hash, err := gallery.DirHash(h.referenceDir)
	if err == nil {
		err = gallery.Save(h.cachePath, g, hash)
	}
	if err != nil {
		// The in-memory gallery is already swapped in; a failed cache write
		// only costs a rebuild on the next start.
		h.logger.Warn("failed to write gallery cache", zap.Error(err))
	}

	h.logger.Info("gallery rebuilt",
		zap.Int("uploaded", len(saved)),
		zap.Int("enrolled", g.Len()))

	respondJSON(w, http.StatusOK, map[string]any{
		"uploaded": len(saved),
		"enrolled": g.Len(),
	})
}
