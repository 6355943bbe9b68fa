package liveness

import (
	"context"
	"math"

	"github.com/kralovic/faceattend/internal/frame"
)

// Combined aggregates the weaker movement and landmark-symmetry signals into
// one score. It is the last-resort strategy, used only when both the
// movement and blink detectors are structurally unavailable.
type Combined struct {
	MovementThreshold float64

	movement *Movement
}

// NewCombined creates the last-resort detector.
func NewCombined(movementThreshold float64) *Combined {
	return &Combined{
		MovementThreshold: movementThreshold,
		movement:          NewMovement(movementThreshold),
	}
}

func (c *Combined) Name() string { return "combined" }

// Detect blends the normalized movement score with eye-landmark symmetry
// variation across frames. A live face both moves and changes its landmark
// geometry slightly; a replayed still does neither.
func (c *Combined) Detect(ctx context.Context, s *frame.Session) (Result, error) {
	moveRes, err := c.movement.Detect(ctx, s)
	if err != nil {
		return moveRes, err
	}

	// Normalize movement against its own threshold so a borderline movement
	// score contributes 0.5.
	moveSignal := moveRes.Score / (2 * c.movement.Threshold)
	if moveSignal > 1 {
		moveSignal = 1
	}

	symmetrySignal := symmetryVariation(s)

	score := 0.7*moveSignal + 0.3*symmetrySignal
	if score > 0.5 {
		return Result{Live: true, Score: score}, nil
	}
	return Result{Live: false, Score: score, Reason: ReasonInsufficientMovement}, nil
}

// symmetryVariation measures how much the left/right eye symmetry changes
// across frames that carry landmarks. Returns 0 when fewer than two frames
// have landmarks.
func symmetryVariation(s *frame.Session) float64 {
	var ratios []float64
	for _, f := range s.Frames {
		if f.Landmarks == nil {
			continue
		}
		left := eyeAspectRatio(f.Landmarks.LeftEye)
		right := eyeAspectRatio(f.Landmarks.RightEye)
		if right == 0 {
			continue
		}
		ratios = append(ratios, left/right)
	}
	if len(ratios) < 2 {
		return 0
	}

	var mean float64
	for _, r := range ratios {
		mean += r
	}
	mean /= float64(len(ratios))

	var variance float64
	for _, r := range ratios {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(ratios))

	// Map the standard deviation into [0, 1]; ~5% variation saturates.
	signal := math.Sqrt(variance) / 0.05
	if signal > 1 {
		signal = 1
	}
	return signal
}
