package liveness

import (
	"log/slog"
)

// Capabilities describes what the environment offers to the detectors,
// probed once at startup.
type Capabilities struct {
	// Movement is false only when frame differencing is disabled by
	// configuration (e.g., a deployment with a single-shot camera).
	Movement bool
	// Landmarks reports whether the extractor attaches eye landmarks to
	// detections, which the blink detector requires.
	Landmarks bool
}

// ChainConfig carries the detector thresholds used when instantiating the
// selected strategy.
type ChainConfig struct {
	MovementThreshold float64
	BlinkThreshold    float64
	RequiredBlinks    int
}

// Select walks the fixed strategy order {movement, blink, combined} and
// returns the first available detector. This runs once at process start; the
// resolved detector is then held for every request. The combined detector is
// always constructible and acts as the last resort.
func Select(cfg ChainConfig, caps Capabilities, log *slog.Logger) Detector {
	if log == nil {
		log = slog.Default()
	}

	var d Detector
	switch {
	case caps.Movement:
		d = NewMovement(cfg.MovementThreshold)
	case caps.Landmarks:
		d = NewBlink(cfg.BlinkThreshold, cfg.RequiredBlinks)
	default:
		d = NewCombined(cfg.MovementThreshold)
	}

	log.Info("liveness detector selected", slog.String("strategy", d.Name()))
	return d
}
