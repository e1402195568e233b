package attendance

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// fakeExtractor returns a fixed set of faces for any input.
type fakeExtractor struct {
	faces []embedding.Face
	err   error
}

func (f *fakeExtractor) DetectFaces(context.Context, []byte) ([]embedding.Face, error) {
	return f.faces, f.err
}

// memLog collects appended records in memory.
type memLog struct {
	records []Record
	err     error
}

func (m *memLog) Append(_ context.Context, rec Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func testGallery() *gallery.Handle {
	return gallery.NewHandle(&gallery.Gallery{
		Embeddings: [][]float32{{1, 0}, {0, 1}},
		Names:      []string{"alice", "bob"},
	})
}

func newService(ex embedding.Extractor, log Log) *Service {
	return NewService(testGallery(), ex, log, 0.45, zap.NewNop())
}

// embeddings near the gallery entries
var (
	nearAlice = []float32{0.9, 0}  // distance 0.1 from alice
	nearBob   = []float32{0, 0.9}  // distance 0.1 from bob
	farAway   = []float32{10, 10}  // matches nobody
)

func TestSubmitStream_UserRecordsOnlySelf(t *testing.T) {
	ex := &fakeExtractor{faces: []embedding.Face{
		{Embedding: nearAlice},
		{Embedding: nearBob},
	}}
	log := &memLog{}
	svc := newService(ex, log)

	names, err := svc.SubmitStream(context.Background(), Session{Role: RoleUser, Username: "alice"}, []byte("frame"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(names) != 1 || names[0] != "alice" {
		t.Fatalf("user session must only record itself, got %v", names)
	}
	if len(log.records) != 1 || log.records[0].Name != "alice" {
		t.Fatalf("expected exactly one record for alice, got %v", log.records)
	}
	if log.records[0].Mode != ModeStream {
		t.Errorf("expected mode '%s', got '%s'", ModeStream, log.records[0].Mode)
	}
}

func TestSubmitStream_AdminRecordsEveryone(t *testing.T) {
	ex := &fakeExtractor{faces: []embedding.Face{
		{Embedding: nearAlice},
		{Embedding: nearBob},
		{Embedding: farAway},
	}}
	log := &memLog{}
	svc := newService(ex, log)

	names, err := svc.SubmitStream(context.Background(), Session{Role: RoleAdmin, Username: "boss"}, []byte("frame"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(names) != 2 {
		t.Fatalf("expected alice and bob recorded, got %v", names)
	}
}

func TestSubmitStream_DeduplicatesIdentity(t *testing.T) {
	// Same person detected twice in one frame.
	ex := &fakeExtractor{faces: []embedding.Face{
		{Embedding: nearAlice},
		{Embedding: nearAlice},
	}}
	log := &memLog{}
	svc := newService(ex, log)

	_, err := svc.SubmitStream(context.Background(), Session{Role: RoleUser, Username: "alice"}, []byte("frame"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(log.records) != 1 {
		t.Errorf("two detections of one identity must yield one record, got %d", len(log.records))
	}
}

func TestSubmitStream_UnknownNeverRecorded(t *testing.T) {
	ex := &fakeExtractor{faces: []embedding.Face{{Embedding: farAway}}}
	log := &memLog{}
	svc := newService(ex, log)

	names, err := svc.SubmitStream(context.Background(), Session{Role: RoleAdmin}, []byte("frame"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 0 || len(log.records) != 0 {
		t.Errorf("unrecognized faces must never be recorded, got %v", log.records)
	}
}

func TestSubmitStream_PersistenceFailureSurfaces(t *testing.T) {
	ex := &fakeExtractor{faces: []embedding.Face{{Embedding: nearAlice}}}
	log := &memLog{err: errors.New("disk full")}
	svc := newService(ex, log)

	if _, err := svc.SubmitStream(context.Background(), Session{Role: RoleAdmin}, []byte("frame")); err == nil {
		t.Error("a failed append must surface as an error, not be swallowed")
	}
}

func TestSubmitPhoto_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		faces   []embedding.Face
		sess    Session
		outcome Outcome
		records int
	}{
		{
			name:    "no face",
			faces:   nil,
			sess:    Session{Role: RoleUser, Username: "alice"},
			outcome: OutcomeNoFace,
		},
		{
			name:    "no match under threshold",
			faces:   []embedding.Face{{Embedding: farAway}},
			sess:    Session{Role: RoleUser, Username: "alice"},
			outcome: OutcomeUnknown,
		},
		{
			name:    "wrong person for user session",
			faces:   []embedding.Face{{Embedding: nearBob}},
			sess:    Session{Role: RoleUser, Username: "alice"},
			outcome: OutcomeMismatch,
		},
		{
			name:    "own identity matched",
			faces:   []embedding.Face{{Embedding: nearAlice}},
			sess:    Session{Role: RoleUser, Username: "alice"},
			outcome: OutcomeMatched,
			records: 1,
		},
		{
			name:    "admin matches anyone",
			faces:   []embedding.Face{{Embedding: nearBob}},
			sess:    Session{Role: RoleAdmin, Username: "boss"},
			outcome: OutcomeMatched,
			records: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log := &memLog{}
			svc := newService(&fakeExtractor{faces: tc.faces}, log)

			res, err := svc.SubmitPhoto(context.Background(), tc.sess, []byte("photo"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Outcome != tc.outcome {
				t.Errorf("expected outcome '%s', got '%s'", tc.outcome, res.Outcome)
			}
			if len(log.records) != tc.records {
				t.Errorf("expected %d records, got %d", tc.records, len(log.records))
			}
			if tc.records == 1 && log.records[0].Mode != ModeSingleShot {
				t.Errorf("expected mode '%s', got '%s'", ModeSingleShot, log.records[0].Mode)
			}
		})
	}
}

func TestSubmitPhoto_FirstFaceOnly(t *testing.T) {
	// alice's session, but the first detected face is bob's: mismatch,
	// even though the second face would have matched.
	ex := &fakeExtractor{faces: []embedding.Face{
		{Embedding: nearBob},
		{Embedding: nearAlice},
	}}
	log := &memLog{}
	svc := newService(ex, log)

	res, err := svc.SubmitPhoto(context.Background(), Session{Role: RoleUser, Username: "alice"}, []byte("photo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeMismatch {
		t.Errorf("only the first detected face counts; expected mismatch, got '%s'", res.Outcome)
	}
	if len(log.records) != 0 {
		t.Errorf("expected no records, got %v", log.records)
	}
}

func TestAuthorized_NormalizesIdentity(t *testing.T) {
	svc := newService(&fakeExtractor{}, &memLog{})

	if !svc.authorized(Session{Role: RoleUser, Username: "Jiri"}, "Jiří") {
		t.Error("identity comparison must ignore case and diacritics")
	}
	if svc.authorized(Session{Role: RoleUser, Username: "alice"}, "bob") {
		t.Error("user session must not be authorized for another identity")
	}
	if svc.authorized(Session{Role: "visitor", Username: "alice"}, "alice") {
		t.Error("unknown roles must never be authorized")
	}
}
