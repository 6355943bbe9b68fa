package frame

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MinSessionFrames is the smallest number of frames a liveness session may
// carry. Fewer frames give the movement and blink detectors nothing to work
// with.
const MinSessionFrames = 3

var (
	// ErrTooFewFrames is returned when a session carries fewer than the
	// required number of frames.
	ErrTooFewFrames = errors.New("liveness session requires at least 3 frames")

	// ErrWindowExceeded is returned when the frames span a longer real-time
	// window than allowed. A session cannot be resumed; the caller must
	// capture a fresh one.
	ErrWindowExceeded = errors.New("liveness session exceeds capture window")

	// ErrFramesOutOfOrder is returned when frame indexes do not form an
	// increasing sequence.
	ErrFramesOutOfOrder = errors.New("liveness session frames out of capture order")
)

// Session is one ordered, finite liveness capture. Sessions are immutable
// after construction and are never restarted mid-flight.
type Session struct {
	ID     string
	Frames []*Frame
}

// NewSession validates the ordered frames and wraps them in a Session.
// maxWindow bounds the real time between the first and last capture; a
// non-positive maxWindow disables the window check.
func NewSession(frames []*Frame, minFrames int, maxWindow time.Duration) (*Session, error) {
	if minFrames < MinSessionFrames {
		minFrames = MinSessionFrames
	}
	if len(frames) < minFrames {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewFrames, len(frames))
	}

	for i := 1; i < len(frames); i++ {
		if frames[i].Index <= frames[i-1].Index {
			return nil, ErrFramesOutOfOrder
		}
	}

	if maxWindow > 0 {
		span := frames[len(frames)-1].CapturedAt.Sub(frames[0].CapturedAt)
		if span > maxWindow {
			return nil, fmt.Errorf("%w: spans %s", ErrWindowExceeded, span)
		}
	}

	return &Session{
		ID:     uuid.NewString(),
		Frames: frames,
	}, nil
}

// Identical reports whether every frame in the session is byte-for-byte the
// same as the first one. An all-identical session is a cheap replay signal
// and is rejected before any detector runs.
func (s *Session) Identical() bool {
	for i := 1; i < len(s.Frames); i++ {
		if !bytes.Equal(s.Frames[i].Data, s.Frames[0].Data) {
			return false
		}
	}
	return true
}

// UniformSize reports whether all frames share the same pixel dimensions.
func (s *Session) UniformSize() bool {
	for i := 1; i < len(s.Frames); i++ {
		if s.Frames[i].Width != s.Frames[0].Width || s.Frames[i].Height != s.Frames[0].Height {
			return false
		}
	}
	return true
}
