package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Thresholds.Match.Threshold != 0.6 {
		t.Errorf("default match threshold = %v; want 0.6", cfg.Thresholds.Match.Threshold)
	}
	if cfg.Thresholds.Liveness.RequiredBlinks != 2 {
		t.Errorf("default required blinks = %d; want 2", cfg.Thresholds.Liveness.RequiredBlinks)
	}
	if cfg.Thresholds.Session.MinFrames != 3 {
		t.Errorf("default min frames = %d; want 3", cfg.Thresholds.Session.MinFrames)
	}
	if cfg.Thresholds.Guard.MaxFailures != 5 {
		t.Errorf("default max failures = %d; want 5", cfg.Thresholds.Guard.MaxFailures)
	}
	if cfg.Thresholds.Guard.WindowMinutes != 10 {
		t.Errorf("default window minutes = %d; want 10", cfg.Thresholds.Guard.WindowMinutes)
	}
	if cfg.Thresholds.Guard.BlockMinutes != 60 {
		t.Errorf("default block minutes = %d; want 60", cfg.Thresholds.Guard.BlockMinutes)
	}
	if cfg.Gallery.Dim != 128 {
		t.Errorf("default gallery dim = %d; want 128", cfg.Gallery.Dim)
	}
	if cfg.Extractor.MaxImageSize != 1280 {
		t.Errorf("default max image size = %d; want 1280", cfg.Extractor.MaxImageSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.45")
	t.Setenv("REQUIRED_BLINKS", "3")
	t.Setenv("GALLERY_DIM", "512")

	cfg := Load()

	if cfg.Thresholds.Match.Threshold != 0.45 {
		t.Errorf("match threshold = %v; want 0.45", cfg.Thresholds.Match.Threshold)
	}
	if cfg.Thresholds.Liveness.RequiredBlinks != 3 {
		t.Errorf("required blinks = %d; want 3", cfg.Thresholds.Liveness.RequiredBlinks)
	}
	if cfg.Gallery.Dim != 512 {
		t.Errorf("gallery dim = %d; want 512", cfg.Gallery.Dim)
	}
}

func TestDisableMovementSwitch(t *testing.T) {
	if cfg := Load(); cfg.Thresholds.Liveness.DisableMovement {
		t.Error("movement must be enabled by default")
	}

	t.Setenv("LIVENESS_DISABLE_MOVEMENT", "true")
	if cfg := Load(); !cfg.Thresholds.Liveness.DisableMovement {
		t.Error("LIVENESS_DISABLE_MOVEMENT=true must disable movement")
	}
}

func TestEnvOverridesInvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "not-a-number")
	t.Setenv("GUARD_MAX_FAILURES", "-3")

	cfg := Load()

	if cfg.Thresholds.Match.Threshold != 0.6 {
		t.Errorf("match threshold = %v; want default 0.6", cfg.Thresholds.Match.Threshold)
	}
	if cfg.Thresholds.Guard.MaxFailures != 5 {
		t.Errorf("max failures = %d; want default 5", cfg.Thresholds.Guard.MaxFailures)
	}
}
