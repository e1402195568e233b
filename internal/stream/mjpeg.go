package stream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// MJPEGSource reads frames from an IP camera serving
// multipart/x-mixed-replace JPEG parts.
type MJPEGSource struct {
	resp   *http.Response
	reader *multipart.Reader
	cancel context.CancelFunc
}

// OpenMJPEG connects to an MJPEG stream URL. The returned source keeps the
// connection open until Close is called or the server ends the stream.
func OpenMJPEG(ctx context.Context, url string) (*MJPEGSource, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// No client timeout: the stream stays open indefinitely.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream is not multipart MJPEG (content type %q)", resp.Header.Get("Content-Type"))
	}

	return &MJPEGSource{
		resp:   resp,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
		cancel: cancel,
	}, nil
}

// Next reads the next JPEG frame. Returns io.EOF when the stream ends.
func (s *MJPEGSource) Next(_ context.Context) ([]byte, error) {
	part, err := s.reader.NextPart()
	if err != nil {
		return nil, err
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("reading frame part: %w", err)
	}
	return data, nil
}

// Close terminates the stream connection. A blocked Next unblocks with an error.
func (s *MJPEGSource) Close() error {
	s.cancel()
	return s.resp.Body.Close()
}
