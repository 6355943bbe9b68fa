// Package extract talks to the external face detection and embedding
// service. The core never inspects pixels itself; everything it knows about a
// face comes through this boundary.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kralovic/faceattend/internal/frame"
)

const defaultExtractorURL = "http://localhost:8000"

// ErrExtraction wraps any failure reported by the extractor service.
var ErrExtraction = errors.New("face extraction failed")

// Detection is a single face reported by the extractor for one frame.
type Detection struct {
	BBox      []float64        // [x1, y1, x2, y2] in frame pixel coordinates
	Embedding []float32        // fixed-dimension face embedding
	Score     float64          // detector confidence
	Landmarks *frame.Landmarks // nil when the service has no landmark support
}

// Extractor is the capability contract consumed by the scan orchestrator.
// Implementations must honor the context deadline.
type Extractor interface {
	// Extract returns zero or more face detections for a frame, in the order
	// reported by the service.
	Extract(ctx context.Context, f *frame.Frame) ([]Detection, error)

	// SupportsLandmarks reports whether detections carry eye landmarks.
	// Queried once at startup to select the liveness strategy.
	SupportsLandmarks(ctx context.Context) bool
}

// Client calls the extractor service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the extractor service.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

type landmarksPayload struct {
	LeftEye  [][2]float64 `json:"left_eye"`
	RightEye [][2]float64 `json:"right_eye"`
}

type facePayload struct {
	FaceIndex int               `json:"face_index"`
	Dim       int               `json:"dim"`
	Embedding []float32         `json:"embedding"`
	BBox      []float64         `json:"bbox"`
	DetScore  float64           `json:"det_score"`
	Landmarks *landmarksPayload `json:"landmarks,omitempty"`
}

type faceResponse struct {
	FacesCount int           `json:"faces_count"`
	Faces      []facePayload `json:"faces"`
	Model      string        `json:"model"`
}

type capabilitiesResponse struct {
	Landmarks bool `json:"landmarks"`
}

// Extract posts the frame to the service and decodes the reported faces.
func (c *Client) Extract(ctx context.Context, f *frame.Frame) ([]Detection, error) {
	body, err := c.postMultipartImage(ctx, "/detect/face", f.Data)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrExtraction, err)
	}

	detections := make([]Detection, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		if len(face.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding for face %d", ErrExtraction, face.FaceIndex)
		}
		detections = append(detections, Detection{
			BBox:      face.BBox,
			Embedding: face.Embedding,
			Score:     face.DetScore,
			Landmarks: convertLandmarks(face.Landmarks),
		})
	}
	return detections, nil
}

// SupportsLandmarks probes the service capability endpoint. Any failure is
// treated as "no landmarks" so startup can still pick a usable strategy.
func (c *Client) SupportsLandmarks(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capabilities", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var caps capabilitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return false
	}
	return caps.Landmarks
}

func convertLandmarks(p *landmarksPayload) *frame.Landmarks {
	if p == nil || len(p.LeftEye) != 6 || len(p.RightEye) != 6 {
		return nil
	}
	var lm frame.Landmarks
	for i := 0; i < 6; i++ {
		lm.LeftEye[i] = frame.Point{X: p.LeftEye[i][0], Y: p.LeftEye[i][1]}
		lm.RightEye[i] = frame.Point{X: p.RightEye[i][0], Y: p.RightEye[i][1]}
	}
	return &lm
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// header based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		// Leave deadline errors recognizable for the orchestrator.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrExtraction, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrExtraction, resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
