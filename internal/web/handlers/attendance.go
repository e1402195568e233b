package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/stream"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// AttendanceHandler handles attendance submission and record endpoints.
type AttendanceHandler struct {
	service  *attendance.Service
	store    *attendance.Store
	pipeline *stream.Pipeline // nil when no video stream is configured
	logger   *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc *attendance.Service, store *attendance.Store, p *stream.Pipeline, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service:  svc,
		store:    store,
		pipeline: p,
		logger:   logger,
	}
}

// SubmitStream confirms attendance from the most recent live frame.
func (h *AttendanceHandler) SubmitStream(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "no video stream configured")
		return
	}

	frame, err := h.pipeline.LatestFrame()
	if err != nil {
		if errors.Is(err, stream.ErrNotReady) {
			respondError(w, http.StatusConflict, "not_ready")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	session := middleware.GetSessionFromContext(r.Context())
	names, err := h.service.SubmitStream(r.Context(), session.Context(), frame)
	if err != nil {
		h.logger.Error("stream submission failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"recorded": names,
		"count":    len(names),
	})
}

// photoRequest is a JSON single-shot submission with a data-URL image.
type photoRequest struct {
	Image string `json:"image"`
}

// readSubmittedImage extracts raw image bytes from either a multipart form
// ("image" file field) or a JSON body with a base64 data URL.
func readSubmittedImage(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, errors.New("failed to parse multipart form")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, errors.New("image file is required")
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxUploadSize))
	}

	var req photoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	payload := req.Image
	// Strip a data URL prefix ("data:image/jpeg;base64,...").
	if idx := strings.IndexByte(payload, ','); idx >= 0 {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	return data, nil
}

// SubmitPhoto confirms attendance from one uploaded still image.
func (h *AttendanceHandler) SubmitPhoto(w http.ResponseWriter, r *http.Request) {
	imageData, err := readSubmittedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := middleware.GetSessionFromContext(r.Context())
	result, err := h.service.SubmitPhoto(r.Context(), session.Context(), imageData)
	if err != nil {
		h.logger.Error("photo submission failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	resp := map[string]any{"status": string(result.Outcome)}
	if result.Name != "" {
		resp["name"] = result.Name
	}
	if result.Distance > 0 && !math.IsInf(result.Distance, 1) {
		resp["distance"] = result.Distance
	}
	respondJSON(w, http.StatusOK, resp)
}

// List returns attendance records: all of them for an admin, only the
// caller's own for a user.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var (
		records []attendance.Record
		err     error
	)
	if session.Role == attendance.RoleAdmin {
		records, err = h.store.List(r.Context())
	} else {
		// Records are stored under gallery names; the username may spell
		// the same identity differently ("jane-doe" vs "Jane Doe").
		records, err = h.store.ListByIdentity(r.Context(), session.Username)
	}
	if err != nil {
		h.logger.Error("listing attendance failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

// Summary returns per-identity record counts. Admin only.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context())
	if err != nil {
		h.logger.Error("attendance summary failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to summarize attendance")
		return
	}

	if summary == nil {
		summary = []attendance.NameCount{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// Person returns one identity's records. Admin only.
func (h *AttendanceHandler) Person(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	records, err := h.store.ListByName(r.Context(), name)
	if err != nil {
		h.logger.Error("listing person attendance failed",
			zap.String("name", sanitizeForLog(name)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"records": records,
	})
}
