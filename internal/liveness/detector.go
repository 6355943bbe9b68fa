// Package liveness decides whether a session of frames was produced by a
// live subject rather than a static photo or a replayed video.
//
// Detection strategies form a fixed ordered chain {movement, blink,
// combined}; one strategy is selected at process start based on capability
// availability and held for the lifetime of the process.
package liveness

import (
	"context"
	"errors"

	"github.com/kralovic/faceattend/internal/frame"
)

// Reason identifies why a session failed the liveness check.
type Reason string

const (
	ReasonInsufficientMovement Reason = "insufficient-movement"
	ReasonInsufficientBlinks   Reason = "insufficient-blinks"
	ReasonFrameSizeMismatch    Reason = "inconsistent-frame-sizes"
	ReasonLandmarksUnavailable Reason = "landmarks-unavailable"
)

// ErrFrameSizeMismatch is returned when a session mixes frame dimensions.
// Such a session is invalid input, not a liveness verdict.
var ErrFrameSizeMismatch = errors.New("session frames have inconsistent dimensions")

// Result is one detector verdict.
type Result struct {
	Live   bool
	Score  float64
	Reason Reason // set when Live is false
}

// Detector is one interchangeable liveness strategy.
type Detector interface {
	// Name identifies the strategy in logs and outcomes.
	Name() string

	// Detect inspects an ordered session of frames. Detection is pure CPU
	// work; implementations must not call external services.
	Detect(ctx context.Context, s *frame.Session) (Result, error)
}
