package liveness

import (
	"context"
	"math"

	"github.com/kralovic/faceattend/internal/frame"
)

// Blink detector defaults. An eye aspect ratio below the threshold marks a
// frame as a blink frame; a session is live once enough blink frames appear.
const (
	DefaultBlinkThreshold = 0.21
	DefaultRequiredBlinks = 2
)

// Blink detects liveness from eye closure across the session. It consumes
// the eye landmarks the orchestrator attached to each frame during
// extraction; frames without landmarks are skipped entirely (neither blink
// nor non-blink).
type Blink struct {
	Threshold      float64
	RequiredBlinks int
}

// NewBlink creates a blink detector, substituting defaults for non-positive
// parameters.
func NewBlink(threshold float64, requiredBlinks int) *Blink {
	if threshold <= 0 {
		threshold = DefaultBlinkThreshold
	}
	if requiredBlinks <= 0 {
		requiredBlinks = DefaultRequiredBlinks
	}
	return &Blink{Threshold: threshold, RequiredBlinks: requiredBlinks}
}

func (b *Blink) Name() string { return "blink" }

func (b *Blink) Detect(ctx context.Context, s *frame.Session) (Result, error) {
	blinkFrames := 0
	framesWithLandmarks := 0
	minEAR := math.MaxFloat64

	for _, f := range s.Frames {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if f.Landmarks == nil {
			continue
		}
		framesWithLandmarks++

		ear := (eyeAspectRatio(f.Landmarks.LeftEye) + eyeAspectRatio(f.Landmarks.RightEye)) / 2
		if ear < minEAR {
			minEAR = ear
		}
		if ear < b.Threshold {
			blinkFrames++
		}
	}

	if framesWithLandmarks == 0 {
		return Result{Live: false, Reason: ReasonLandmarksUnavailable}, nil
	}

	score := float64(blinkFrames)
	if blinkFrames >= b.RequiredBlinks {
		return Result{Live: true, Score: score}, nil
	}
	return Result{Live: false, Score: score, Reason: ReasonInsufficientBlinks}, nil
}

// eyeAspectRatio computes the EAR of one eye from its six landmark points in
// dlib ordering: (|p2-p6| + |p3-p5|) / (2 * |p1-p4|).
func eyeAspectRatio(eye [6]frame.Point) float64 {
	vertical1 := pointDistance(eye[1], eye[5])
	vertical2 := pointDistance(eye[2], eye[4])
	horizontal := pointDistance(eye[0], eye[3])
	if horizontal == 0 {
		return 0
	}
	return (vertical1 + vertical2) / (2 * horizontal)
}

func pointDistance(a, b frame.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
