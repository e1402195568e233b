package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"sync"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/matcher"
)

// downscaleFactor shrinks frames before detection. Detection runs per frame,
// so speed wins over accuracy here; the submission path re-runs detection at
// full resolution.
const downscaleFactor = 4

// ErrNotReady is returned when no frame has been acquired yet.
var ErrNotReady = errors.New("no frame captured yet")

// Pipeline runs the acquisition loop: acquire a frame, retain it as the
// latest snapshot, match the faces in it, and publish the annotated frame
// to subscribers. The latest-frame slot is overwritten each iteration; only
// the most recent frame is ever retained.
type Pipeline struct {
	source    Source
	extractor embedding.Extractor
	gallery   *gallery.Handle
	threshold float64
	logger    *zap.Logger

	mu     sync.Mutex
	latest []byte

	subMu sync.Mutex
	subs  map[chan []byte]struct{}
}

// NewPipeline wires the acquisition loop. Run must be called to start it.
func NewPipeline(src Source, ex embedding.Extractor, g *gallery.Handle, threshold float64, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		source:    src,
		extractor: ex,
		gallery:   g,
		threshold: threshold,
		logger:    logger,
		subs:      make(map[chan []byte]struct{}),
	}
}

// Run acquires frames until the source ends or ctx is cancelled. A frame
// that fails to decode or process is logged and skipped; the loop keeps
// going with the next frame.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("frame pipeline stopped")
			return
		}

		frame, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				p.logger.Info("frame source closed")
			} else {
				p.logger.Warn("frame source failed", zap.Error(err))
			}
			return
		}

		p.setLatest(frame)

		annotated, err := p.process(ctx, frame)
		if err != nil {
			p.logger.Warn("frame processing failed", zap.Error(err))
			continue
		}
		p.publish(annotated)
	}
}

// process downscales the frame, detects and matches faces on the small
// version, and returns the full-resolution frame with annotations drawn on.
func (p *Pipeline) process(ctx context.Context, frame []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	small := downscale(img, downscaleFactor)
	var smallBuf bytes.Buffer
	if err := jpeg.Encode(&smallBuf, small, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encoding downscaled frame: %w", err)
	}

	faces, err := p.extractor.DetectFaces(ctx, smallBuf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	out := toRGBA(img)
	g := p.gallery.Get()
	for _, face := range faces {
		if len(face.BBox) != 4 {
			continue
		}
		res := matcher.Match(face.Embedding, g, p.threshold)
		// Scale the box back to full resolution.
		box := image.Rect(
			int(face.BBox[0])*downscaleFactor,
			int(face.BBox[1])*downscaleFactor,
			int(face.BBox[2])*downscaleFactor,
			int(face.BBox[3])*downscaleFactor,
		)
		annotate(out, box, res.Name, res.Known)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encoding annotated frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Pipeline) setLatest(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)

	p.mu.Lock()
	p.latest = cp
	p.mu.Unlock()
}

// LatestFrame returns the most recently acquired raw frame, or ErrNotReady
// if the loop has not produced one yet.
func (p *Pipeline) LatestFrame() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return nil, ErrNotReady
	}
	return p.latest, nil
}

// Subscribe registers a consumer of annotated frames. The returned cancel
// function must be called when the consumer goes away, or the subscription
// leaks.
func (p *Pipeline) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()

	cancel := func() {
		p.subMu.Lock()
		delete(p.subs, ch)
		p.subMu.Unlock()
	}
	return ch, cancel
}

// publish fans an annotated frame out to all subscribers. A slow consumer
// loses its stale frame rather than stalling the loop.
func (p *Pipeline) publish(frame []byte) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// downscale shrinks an image by factor using a cheap bilinear scaler.
func downscale(img image.Image, factor int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx()/factor, b.Dy()/factor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, draw.Over, nil)
	return small
}

// toRGBA copies an image into a drawable RGBA buffer.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Copy(out, b.Min, img, b, draw.Src, nil)
	return out
}
