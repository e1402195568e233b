package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/stream"
)

// StreamHandler serves the annotated live video feed.
type StreamHandler struct {
	pipeline *stream.Pipeline // nil when no video stream is configured
	logger   *zap.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(p *stream.Pipeline, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{pipeline: p, logger: logger}
}

// Video streams annotated frames as multipart/x-mixed-replace MJPEG.
// The subscription is dropped as soon as the client disconnects, so a
// closed browser tab never leaks a consumer.
func (h *StreamHandler) Video(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "no video stream configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	frames, cancel := h.pipeline.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-frames:
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
