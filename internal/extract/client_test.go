package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kralovic/faceattend/internal/frame"
)

// jpegHeader is enough magic bytes for MIME detection; the client never
// decodes the payload itself.
var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}

func testFrame() *frame.Frame {
	return &frame.Frame{Index: 0, Data: jpegHeader, Width: 64, Height: 64, CapturedAt: time.Now()}
}

func TestExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/face" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"faces_count": 2,
			"faces": [
				{"face_index": 0, "dim": 4, "embedding": [0.1, 0.2, 0.3, 0.4], "bbox": [10, 20, 50, 60], "det_score": 0.99,
				 "landmarks": {"left_eye": [[1,1],[2,0],[3,0],[4,1],[3,2],[2,2]], "right_eye": [[6,1],[7,0],[8,0],[9,1],[8,2],[7,2]]}},
				{"face_index": 1, "dim": 4, "embedding": [0.5, 0.6, 0.7, 0.8], "bbox": [100, 20, 140, 60], "det_score": 0.75}
			],
			"model": "test"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	detections, err := client.Extract(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(detections) != 2 {
		t.Fatalf("detections = %d; want 2", len(detections))
	}
	if detections[0].Landmarks == nil {
		t.Error("first detection should carry landmarks")
	}
	if detections[1].Landmarks != nil {
		t.Error("second detection should not carry landmarks")
	}
	if detections[0].Score != 0.99 {
		t.Errorf("score = %v; want 0.99", detections[0].Score)
	}
	if len(detections[0].Embedding) != 4 {
		t.Errorf("embedding dim = %d; want 4", len(detections[0].Embedding))
	}
}

func TestExtractNoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces_count": 0, "faces": [], "model": "test"}`))
	}))
	defer server.Close()

	detections, err := NewClient(server.URL).Extract(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("detections = %d; want 0", len(detections))
	}
}

func TestExtractServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Extract(context.Background(), testFrame())
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v; want ErrExtraction", err)
	}
}

func TestExtractTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL).Extract(ctx, testFrame())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v; want context.DeadlineExceeded", err)
	}
}

func TestSupportsLandmarks(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    bool
	}{
		{
			"landmarks available",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"landmarks": true}`))
			},
			true,
		},
		{
			"landmarks unavailable",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"landmarks": false}`))
			},
			false,
		},
		{
			"endpoint missing",
			func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			got := NewClient(server.URL).SupportsLandmarks(context.Background())
			if got != tc.want {
				t.Errorf("SupportsLandmarks = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", jpegHeader, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x00, 0x00}, "image/gif"},
		{"too short", []byte{0x01}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.want {
				t.Errorf("detectMIMEType = %q; want %q", got, tc.want)
			}
		})
	}
}
