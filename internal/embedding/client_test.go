package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectFaces_ParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("expected path '/embed/face', got '%s'", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected 'file' part in form: %v", err)
		}

		resp := faceResponse{
			FacesCount: 1,
			Faces: []Face{
				{FaceIndex: 0, Dim: 4, Embedding: []float32{0.1, 0.2, 0.3, 0.4}, BBox: []float64{10, 20, 50, 60}, DetScore: 0.98},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	faces, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	if faces[0].Dim != 4 {
		t.Errorf("expected dim 4, got %d", faces[0].Dim)
	}
	if faces[0].BBox[2] != 50 {
		t.Errorf("expected bbox x2 50, got %f", faces[0].BBox[2])
	}
}

func TestDetectFaces_NoFaceIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(faceResponse{FacesCount: 0, Faces: []Face{}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	faces, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00})
	if err != nil {
		t.Fatalf("no-face image must not produce an error, got: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected 0 faces, got %d", len(faces))
	}
}

func TestDetectFaces_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00}); err == nil {
		t.Error("expected error for 500 response, got nil")
	}
}

func TestDetectFacesAt_SendsLocations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		loc := r.FormValue("locations")
		if loc == "" {
			t.Error("expected locations form field to be set")
		}
		var boxes [][]float64
		if err := json.Unmarshal([]byte(loc), &boxes); err != nil {
			t.Errorf("locations field is not valid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(faceResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.DetectFacesAt(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00}, [][]float64{{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0x01}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.expected {
				t.Errorf("expected '%s', got '%s'", tc.expected, got)
			}
		})
	}
}
