// Package frame holds the decoded camera frames and liveness sessions the
// scan pipeline operates on.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Point is a 2D landmark coordinate in frame pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks carries the eye landmark points reported by the extractor for one
// detected face. Each eye is described by six points in the dlib ordering:
// outer corner, upper lid (2), inner corner, lower lid (2).
type Landmarks struct {
	LeftEye  [6]Point `json:"left_eye"`
	RightEye [6]Point `json:"right_eye"`
}

// Frame is a single decoded camera frame within a liveness session.
type Frame struct {
	Index      int       // capture-order index within the session
	Data       []byte    // original encoded bytes
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time

	// Landmarks is populated by the orchestrator after extraction; nil when
	// no face (or no landmark support) was reported for this frame.
	Landmarks *Landmarks

	gray *image.Gray // lazily computed, frames are not shared across goroutines
}

// Decode decodes encoded image bytes into a Frame.
func Decode(data []byte, index int, capturedAt time.Time) (*Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}

	bounds := img.Bounds()
	return &Frame{
		Index:      index,
		Data:       data,
		Image:      img,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		CapturedAt: capturedAt,
	}, nil
}

// Gray returns the frame as an 8-bit grayscale image using the ITU-R BT.601
// luma formula. The result is cached on the frame.
func (f *Frame) Gray() *image.Gray {
	if f.gray != nil {
		return f.gray
	}

	bounds := f.Image.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := f.Image.At(x, y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: uint8(luma)})
		}
	}
	f.gray = gray
	return gray
}

// Resize scales encoded image bytes to fit within maxSize while keeping the
// aspect ratio. Returns JPEG-encoded bytes, or the input unchanged when it
// already fits.
func Resize(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}
