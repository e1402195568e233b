package attendance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/matcher"
)

// Outcome of a single-shot submission.
type Outcome string

const (
	OutcomeMatched  Outcome = "matched"  // face matched the authorized identity; record appended
	OutcomeNoFace   Outcome = "no_face"  // no face detected in the submitted image
	OutcomeUnknown  Outcome = "unknown"  // face detected but no gallery match under threshold
	OutcomeMismatch Outcome = "mismatch" // match exists but the session may not confirm it
)

// Log is the append-only attendance sink the gate writes to.
type Log interface {
	Append(ctx context.Context, rec Record) error
}

// Service gates match decisions with the session identity policy and turns
// accepted matches into persisted records.
type Service struct {
	gallery   *gallery.Handle
	extractor embedding.Extractor
	log       Log
	threshold float64
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the attendance gate.
func NewService(g *gallery.Handle, ex embedding.Extractor, log Log, threshold float64, logger *zap.Logger) *Service {
	return &Service{
		gallery:   g,
		extractor: ex,
		log:       log,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// authorized reports whether the session may confirm attendance for name.
// A user session may only confirm itself; an admin confirms anyone.
func (s *Service) authorized(sess Session, name string) bool {
	switch sess.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return sameIdentity(name, sess.Username)
	default:
		return false
	}
}

// SubmitStream confirms attendance from a full-resolution frame snapshot.
// Every detected face is matched; matches the session may not confirm are
// silently dropped, and multiple detections of the same identity collapse
// into one record. Returns the names recorded.
func (s *Service) SubmitStream(ctx context.Context, sess Session, frame []byte) ([]string, error) {
	faces, err := s.extractor.DetectFaces(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detecting faces in frame: %w", err)
	}

	g := s.gallery.Get()
	accepted := make(map[string]bool)
	var names []string

	for _, face := range faces {
		res := matcher.Match(face.Embedding, g, s.threshold)
		if !res.Known {
			continue
		}
		if !s.authorized(sess, res.Name) {
			s.logger.Debug("match rejected by session identity policy",
				zap.String("matched", res.Name),
				zap.String("session_user", sess.Username))
			continue
		}
		if accepted[res.Name] {
			continue
		}
		accepted[res.Name] = true
		names = append(names, res.Name)
	}

	for _, name := range names {
		if err := s.log.Append(ctx, NewRecord(name, ModeStream, s.now())); err != nil {
			return nil, err
		}
		s.logger.Info("attendance recorded",
			zap.String("name", name),
			zap.String("mode", ModeStream))
	}
	return names, nil
}

// PhotoResult is the outcome of a single-shot submission.
type PhotoResult struct {
	Outcome  Outcome
	Name     string  // matched identity, empty unless matched or mismatch
	Distance float64 // distance behind the decision, when a face was found
}

// SubmitPhoto confirms attendance from one uploaded still image. Only the
// first detected face is considered. The distinguishable outcomes let the
// caller render "wrong person" differently from "no match".
func (s *Service) SubmitPhoto(ctx context.Context, sess Session, imageData []byte) (PhotoResult, error) {
	faces, err := s.extractor.DetectFaces(ctx, imageData)
	if err != nil {
		return PhotoResult{}, fmt.Errorf("detecting faces in photo: %w", err)
	}
	if len(faces) == 0 {
		return PhotoResult{Outcome: OutcomeNoFace}, nil
	}

	res := matcher.Match(faces[0].Embedding, s.gallery.Get(), s.threshold)
	if !res.Known {
		return PhotoResult{Outcome: OutcomeUnknown, Distance: res.Distance}, nil
	}
	if !s.authorized(sess, res.Name) {
		return PhotoResult{Outcome: OutcomeMismatch, Name: res.Name, Distance: res.Distance}, nil
	}

	if err := s.log.Append(ctx, NewRecord(res.Name, ModeSingleShot, s.now())); err != nil {
		return PhotoResult{}, err
	}
	s.logger.Info("attendance recorded",
		zap.String("name", res.Name),
		zap.String("mode", ModeSingleShot))

	return PhotoResult{Outcome: OutcomeMatched, Name: res.Name, Distance: res.Distance}, nil
}
