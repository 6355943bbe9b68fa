package liveness

import (
	"context"
	"fmt"

	"github.com/kralovic/faceattend/internal/frame"
)

// DefaultMovementThreshold is the minimum mean per-pixel grayscale
// difference across consecutive frames for a session to count as live.
const DefaultMovementThreshold = 2.0

// Movement detects liveness from pixel-wise change between consecutive
// frames. A static photo held in front of the camera produces near-zero
// movement; identically sized frames with zero difference always fail.
type Movement struct {
	Threshold float64
}

// NewMovement creates a movement detector. A non-positive threshold adopts
// DefaultMovementThreshold.
func NewMovement(threshold float64) *Movement {
	if threshold <= 0 {
		threshold = DefaultMovementThreshold
	}
	return &Movement{Threshold: threshold}
}

func (m *Movement) Name() string { return "movement" }

// Detect sums the absolute grayscale differences of consecutive frame pairs
// and normalizes by pixel count. Sessions with mixed frame dimensions are
// invalid input and fail fast with ErrFrameSizeMismatch.
func (m *Movement) Detect(ctx context.Context, s *frame.Session) (Result, error) {
	if !s.UniformSize() {
		return Result{Reason: ReasonFrameSizeMismatch}, fmt.Errorf("%w: session %s", ErrFrameSizeMismatch, s.ID)
	}

	pixels := s.Frames[0].Width * s.Frames[0].Height
	if pixels == 0 {
		return Result{Reason: ReasonFrameSizeMismatch}, fmt.Errorf("%w: zero-sized frames", ErrFrameSizeMismatch)
	}

	var total float64
	for i := 1; i < len(s.Frames); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		total += frameDiff(s.Frames[i-1], s.Frames[i])
	}

	// Mean per-pixel difference, averaged over the frame pairs.
	score := total / float64(pixels) / float64(len(s.Frames)-1)

	if score > m.Threshold {
		return Result{Live: true, Score: score}, nil
	}
	return Result{Live: false, Score: score, Reason: ReasonInsufficientMovement}, nil
}

// frameDiff sums absolute grayscale differences between two equally sized
// frames.
func frameDiff(a, b *frame.Frame) float64 {
	ga, gb := a.Gray(), b.Gray()

	var sum float64
	for i := range ga.Pix {
		d := int(ga.Pix[i]) - int(gb.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	return sum
}
