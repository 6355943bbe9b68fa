package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"
)

// makeJPEG encodes a solid-color image of the given size.
func makeJPEG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeFrame(t *testing.T, data []byte, index int, at time.Time) *Frame {
	t.Helper()
	f, err := Decode(data, index, at)
	if err != nil {
		t.Fatalf("Decode frame %d: %v", index, err)
	}
	return f
}

func TestDecode(t *testing.T) {
	data := makeJPEG(t, 64, 48, color.White)
	f := decodeFrame(t, data, 0, time.Now())

	if f.Width != 64 || f.Height != 48 {
		t.Errorf("dimensions = %dx%d; want 64x48", f.Width, f.Height)
	}
	if f.Index != 0 {
		t.Errorf("index = %d; want 0", f.Index)
	}
}

func TestDecodeInvalidData(t *testing.T) {
	if _, err := Decode([]byte("not an image"), 0, time.Now()); err == nil {
		t.Fatal("expected error for invalid image data")
	}
}

func TestGrayCached(t *testing.T) {
	f := decodeFrame(t, makeJPEG(t, 10, 10, color.RGBA{200, 100, 50, 255}), 0, time.Now())
	g1 := f.Gray()
	g2 := f.Gray()
	if g1 != g2 {
		t.Error("Gray should return the cached image on the second call")
	}
	if g1.Bounds().Dx() != 10 || g1.Bounds().Dy() != 10 {
		t.Errorf("gray bounds = %v; want 10x10", g1.Bounds())
	}
}

func TestNewSession(t *testing.T) {
	now := time.Now()
	data := makeJPEG(t, 32, 32, color.White)

	frames := []*Frame{
		decodeFrame(t, data, 0, now),
		decodeFrame(t, data, 1, now.Add(200*time.Millisecond)),
		decodeFrame(t, data, 2, now.Add(400*time.Millisecond)),
	}

	s, err := NewSession(frames, 3, 10*time.Second)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.ID == "" {
		t.Error("session ID should not be empty")
	}
	if len(s.Frames) != 3 {
		t.Errorf("frame count = %d; want 3", len(s.Frames))
	}
}

func TestNewSessionTooFewFrames(t *testing.T) {
	now := time.Now()
	data := makeJPEG(t, 32, 32, color.White)
	frames := []*Frame{
		decodeFrame(t, data, 0, now),
		decodeFrame(t, data, 1, now),
	}

	_, err := NewSession(frames, 3, 10*time.Second)
	if !errors.Is(err, ErrTooFewFrames) {
		t.Errorf("err = %v; want ErrTooFewFrames", err)
	}
}

func TestNewSessionWindowExceeded(t *testing.T) {
	now := time.Now()
	data := makeJPEG(t, 32, 32, color.White)
	frames := []*Frame{
		decodeFrame(t, data, 0, now),
		decodeFrame(t, data, 1, now.Add(time.Second)),
		decodeFrame(t, data, 2, now.Add(time.Minute)),
	}

	_, err := NewSession(frames, 3, 10*time.Second)
	if !errors.Is(err, ErrWindowExceeded) {
		t.Errorf("err = %v; want ErrWindowExceeded", err)
	}
}

func TestNewSessionOutOfOrder(t *testing.T) {
	now := time.Now()
	data := makeJPEG(t, 32, 32, color.White)
	frames := []*Frame{
		decodeFrame(t, data, 1, now),
		decodeFrame(t, data, 0, now),
		decodeFrame(t, data, 2, now),
	}

	_, err := NewSession(frames, 3, 0)
	if !errors.Is(err, ErrFramesOutOfOrder) {
		t.Errorf("err = %v; want ErrFramesOutOfOrder", err)
	}
}

func TestSessionIdentical(t *testing.T) {
	now := time.Now()
	same := makeJPEG(t, 32, 32, color.White)
	other := makeJPEG(t, 32, 32, color.Black)

	identical := mustSession(t, []*Frame{
		decodeFrame(t, same, 0, now),
		decodeFrame(t, same, 1, now),
		decodeFrame(t, same, 2, now),
	})
	if !identical.Identical() {
		t.Error("session of identical frames should report Identical = true")
	}

	mixed := mustSession(t, []*Frame{
		decodeFrame(t, same, 0, now),
		decodeFrame(t, other, 1, now),
		decodeFrame(t, same, 2, now),
	})
	if mixed.Identical() {
		t.Error("session with differing frames should report Identical = false")
	}
}

func TestSessionUniformSize(t *testing.T) {
	now := time.Now()
	small := makeJPEG(t, 32, 32, color.White)
	big := makeJPEG(t, 64, 64, color.White)

	s := mustSession(t, []*Frame{
		decodeFrame(t, small, 0, now),
		decodeFrame(t, big, 1, now),
		decodeFrame(t, small, 2, now),
	})
	if s.UniformSize() {
		t.Error("session with mixed dimensions should report UniformSize = false")
	}
}

func TestResize(t *testing.T) {
	data := makeJPEG(t, 200, 100, color.White)

	resized, err := Resize(data, 100)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("decode resized: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("resized to %v; want 100x50", img.Bounds())
	}

	// Already within bounds: returned unchanged.
	same, err := Resize(data, 500)
	if err != nil {
		t.Fatalf("Resize noop: %v", err)
	}
	if !bytes.Equal(same, data) {
		t.Error("Resize should return input unchanged when it already fits")
	}
}

func mustSession(t *testing.T, frames []*Frame) *Session {
	t.Helper()
	s, err := NewSession(frames, 3, 0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}
