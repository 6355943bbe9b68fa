// Package scan orchestrates one attendance scan: abuse checks, session
// validation, face extraction, liveness, matching and the ledger transition.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kralovic/faceattend/internal/extract"
	"github.com/kralovic/faceattend/internal/frame"
	"github.com/kralovic/faceattend/internal/gallery"
	"github.com/kralovic/faceattend/internal/guard"
	"github.com/kralovic/faceattend/internal/kvstore"
	"github.com/kralovic/faceattend/internal/ledger"
	"github.com/kralovic/faceattend/internal/liveness"
	"github.com/kralovic/faceattend/internal/match"
)

// Config wires the orchestrator's collaborators. Gallery, Matcher,
// Detector, Extractor and Ledger are required; Guard, Limiter and Logins
// are optional and skipped when nil.
type Config struct {
	Gallery   *gallery.Holder
	Matcher   *match.Matcher
	Detector  liveness.Detector
	Extractor extract.Extractor
	Ledger    *ledger.Ledger
	Guard     *guard.Guard
	Limiter   *guard.RateLimiter
	Logins    *guard.LoginAttempts

	// Degraded reports whether the store runs on its non-persistent
	// fallback. Nil means storage never degrades.
	Degraded func() bool

	ExtractTimeout time.Duration // per-frame extractor call budget
	StoreTimeout   time.Duration // ledger transition budget
	MinFrames      int           // minimum session length
	MaxWindow      time.Duration // maximum session capture window

	Log *slog.Logger
}

// Scanner runs scan requests. Safe for concurrent use; all mutable state
// lives in the injected collaborators.
type Scanner struct {
	cfg Config
	log *slog.Logger
	now func() time.Time
}

// New creates a scanner.
func New(cfg Config) *Scanner {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 10 * time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Scanner{cfg: cfg, log: log, now: time.Now}
}

// Scan processes one capture session from a client and returns exactly one
// structured outcome. Failures of the extractor or the store never escape
// as raw errors.
func (s *Scanner) Scan(ctx context.Context, client string, frames []*frame.Frame) Outcome {
	requestID := uuid.NewString()
	log := s.log.With(slog.String("request_id", requestID), slog.String("client", client))

	// policy gates run before any detection work
	if s.cfg.Limiter != nil && !s.cfg.Limiter.Allow(client) {
		log.Warn("request rate limit exceeded")
		return s.outcome(requestID, Outcome{
			Kind:    KindClientBlocked,
			Message: "too many requests, slow down",
		})
	}
	if s.cfg.Guard != nil {
		if err := s.cfg.Guard.Check(client); err != nil {
			var blocked *guard.BlockedError
			if errors.As(err, &blocked) {
				log.Warn("blocked client rejected", slog.Time("until", blocked.Until))
				return s.outcome(requestID, Outcome{
					Kind:    KindClientBlocked,
					Message: fmt.Sprintf("client blocked until %s", blocked.Until.Format(time.RFC3339)),
				})
			}
		}
	}

	session, err := frame.NewSession(frames, s.cfg.MinFrames, s.cfg.MaxWindow)
	if err != nil {
		log.Info("invalid session", slog.String("error", err.Error()))
		s.recordFailure(client)
		return s.outcome(requestID, Outcome{
			Kind:    KindLivenessFailed,
			Message: fmt.Sprintf("invalid capture session: %v", err),
		})
	}

	// replay pre-check, independent of the selected detector
	if session.Identical() {
		log.Warn("identical frames rejected as replay")
		s.recordFailure(client)
		return s.outcome(requestID, Outcome{
			Kind:    KindLivenessFailed,
			Reason:  string(liveness.ReasonInsufficientMovement),
			Message: "frames show no variation",
		})
	}

	primary, out := s.extractSession(ctx, requestID, session, log)
	if out != nil {
		return *out
	}

	if o := s.checkLiveness(ctx, requestID, client, session, log); o != nil {
		return *o
	}

	result, o := s.matchFace(requestID, client, primary.Embedding, log)
	if o != nil {
		return *o
	}

	return s.mark(ctx, requestID, client, result, log)
}

// extractSession runs the extractor over the session frames. The first
// detection becomes the match candidate; landmarks are attached to every
// frame that has them so the blink detector can work offline.
func (s *Scanner) extractSession(ctx context.Context, requestID string, session *frame.Session, log *slog.Logger) (*extract.Detection, *Outcome) {
	var primary *extract.Detection

	for _, f := range session.Frames {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		detections, err := s.cfg.Extractor.Extract(callCtx, f)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("extraction timed out", slog.Int("frame", f.Index))
				o := s.outcome(requestID, Outcome{
					Kind:    KindTimeout,
					Message: "face extraction timed out",
				})
				return nil, &o
			}
			log.Error("extraction failed", slog.Int("frame", f.Index), slog.String("error", err.Error()))
			o := s.outcome(requestID, Outcome{
				Kind:    KindExtractionFailed,
				Message: "face extraction failed",
			})
			return nil, &o
		}

		if len(detections) == 0 {
			continue
		}
		if detections[0].Landmarks != nil {
			f.Landmarks = detections[0].Landmarks
		}
		if primary == nil {
			d := detections[0]
			primary = &d
		}
	}

	if primary == nil {
		log.Info("no face in any frame")
		o := s.outcome(requestID, Outcome{
			Kind:    KindNoFaceDetected,
			Message: "no face detected in the session",
		})
		return nil, &o
	}
	return primary, nil
}

func (s *Scanner) checkLiveness(ctx context.Context, requestID, client string, session *frame.Session, log *slog.Logger) *Outcome {
	res, err := s.cfg.Detector.Detect(ctx, session)
	if err != nil {
		s.recordFailure(client)
		if errors.Is(err, liveness.ErrFrameSizeMismatch) {
			log.Info("session frame sizes inconsistent")
			o := s.outcome(requestID, Outcome{
				Kind:    KindLivenessFailed,
				Reason:  string(liveness.ReasonFrameSizeMismatch),
				Message: "session frames have inconsistent dimensions",
			})
			return &o
		}
		log.Error("liveness detection failed", slog.String("error", err.Error()))
		o := s.outcome(requestID, Outcome{
			Kind:    KindLivenessFailed,
			Message: fmt.Sprintf("liveness detection failed: %v", err),
		})
		return &o
	}
	if !res.Live {
		log.Info("liveness check failed",
			slog.String("detector", s.cfg.Detector.Name()),
			slog.String("reason", string(res.Reason)),
			slog.Float64("score", res.Score),
		)
		s.recordFailure(client)
		o := s.outcome(requestID, Outcome{
			Kind:    KindLivenessFailed,
			Reason:  string(res.Reason),
			Message: "liveness check failed",
		})
		return &o
	}
	return nil
}

func (s *Scanner) matchFace(requestID, client string, embedding []float32, log *slog.Logger) (match.Result, *Outcome) {
	snapshot := s.cfg.Gallery.Snapshot()
	result, err := s.cfg.Matcher.Match(embedding, snapshot)
	if err != nil {
		if errors.Is(err, match.ErrEmptyGallery) {
			log.Warn("gallery is empty")
			o := s.outcome(requestID, Outcome{
				Kind:    KindEmptyGallery,
				Message: "no identities enrolled, run gallery enroll first",
			})
			return match.Result{}, &o
		}
		log.Error("matching failed", slog.String("error", err.Error()))
		o := s.outcome(requestID, Outcome{
			Kind:    KindExtractionFailed,
			Message: fmt.Sprintf("embedding rejected: %v", err),
		})
		return match.Result{}, &o
	}
	if !result.Matched {
		log.Info("no confident match", slog.Float64("best_distance", result.Distance))
		s.recordFailure(client)
		o := s.outcome(requestID, Outcome{
			Kind:    KindNoConfidentMatch,
			Message: "no enrolled identity within the match threshold",
		})
		return match.Result{}, &o
	}
	return result, nil
}

func (s *Scanner) mark(ctx context.Context, requestID, client string, result match.Result, log *slog.Logger) Outcome {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	date := s.now().Format(ledger.DateFormat)
	res, err := s.cfg.Ledger.Mark(storeCtx, date, result.Identity)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("ledger transition timed out", slog.String("identity", result.Identity))
			return s.outcome(requestID, Outcome{
				Kind:    KindTimeout,
				Message: "attendance record write timed out",
			})
		}
		if errors.Is(err, kvstore.ErrUnavailable) {
			log.Error("store unavailable", slog.String("error", err.Error()))
		} else {
			log.Error("ledger transition failed", slog.String("error", err.Error()))
		}
		return s.outcome(requestID, Outcome{
			Kind:    KindStoreUnavailable,
			Message: "attendance store unavailable",
		})
	}

	if !res.Marked {
		log.Info("already marked today",
			slog.String("identity", result.Identity),
			slog.String("first_mark", res.Timestamp),
		)
		return s.outcome(requestID, Outcome{
			Kind:       KindAlreadyMarkedToday,
			Identity:   result.Identity,
			Name:       result.Name,
			Confidence: result.Confidence,
			Timestamp:  res.Timestamp,
			Message:    "attendance already recorded today",
		})
	}

	if s.cfg.Logins != nil {
		s.cfg.Logins.Clear(client)
	}
	if res.CounterStale {
		log.Warn("attendance recorded but student counters not updated",
			slog.String("identity", result.Identity),
		)
	}
	log.Info("attendance marked",
		slog.String("identity", result.Identity),
		slog.Float64("confidence", result.Confidence),
		slog.String("timestamp", res.Timestamp),
	)
	return s.outcome(requestID, Outcome{
		Kind:       KindMarked,
		Identity:   result.Identity,
		Name:       result.Name,
		Confidence: result.Confidence,
		Timestamp:  res.Timestamp,
		Message:    "attendance recorded",
	})
}

func (s *Scanner) recordFailure(client string) {
	if s.cfg.Guard != nil {
		s.cfg.Guard.RecordFailure(client)
	}
}

// outcome fills the derived fields every outcome carries.
func (s *Scanner) outcome(requestID string, o Outcome) Outcome {
	o.RequestID = requestID
	o.Class = o.Kind.Class()
	if s.cfg.Degraded != nil && s.cfg.Degraded() {
		o.Degraded = true
	}
	return o
}
