package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kralovic/faceattend/internal/extract"
	"github.com/kralovic/faceattend/internal/frame"
	"github.com/kralovic/faceattend/internal/guard"
	"github.com/kralovic/faceattend/internal/ledger"
	"github.com/kralovic/faceattend/internal/liveness"
	"github.com/kralovic/faceattend/internal/match"
	"github.com/kralovic/faceattend/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan <frame.jpg> <frame.jpg> <frame.jpg> [more frames...]",
	Short: "Run one attendance scan over a capture session",
	Long: `Run a full attendance scan over an ordered set of capture frames.

The frames are treated as one liveness session in argument order. The scan
extracts face embeddings, verifies liveness, matches against the enrolled
gallery and records attendance for the matched identity. The structured
outcome is printed as JSON.

Examples:
  # Scan a three-frame session
  faceattend scan f1.jpg f2.jpg f3.jpg

  # Identify the client for abuse tracking
  faceattend scan --client 10.0.0.42 f1.jpg f2.jpg f3.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("client", "cli", "Client identifier for abuse tracking")
}

func runScan(cmd *cobra.Command, args []string) error {
	client, _ := cmd.Flags().GetString("client")

	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	frames, err := loadFrames(args)
	if err != nil {
		return err
	}

	holder, err := rt.loadGallery(ctx)
	if err != nil {
		return err
	}

	extractor := extract.NewClient(rt.cfg.Extractor.URL)
	detector := liveness.Select(
		liveness.ChainConfig{
			MovementThreshold: rt.cfg.Thresholds.Liveness.MovementThreshold,
			BlinkThreshold:    rt.cfg.Thresholds.Liveness.BlinkThreshold,
			RequiredBlinks:    rt.cfg.Thresholds.Liveness.RequiredBlinks,
		},
		liveness.Capabilities{
			Movement:  !rt.cfg.Thresholds.Liveness.DisableMovement,
			Landmarks: extractor.SupportsLandmarks(ctx),
		},
		rt.log,
	)

	g := guard.New(guard.Config{
		MaxFailures:   rt.cfg.Thresholds.Guard.MaxFailures,
		Window:        time.Duration(rt.cfg.Thresholds.Guard.WindowMinutes) * time.Minute,
		BlockDuration: time.Duration(rt.cfg.Thresholds.Guard.BlockMinutes) * time.Minute,
	})
	defer g.Stop()

	scanner := scan.New(scan.Config{
		Gallery:        holder,
		Matcher:        match.New(rt.cfg.Thresholds.Match.Threshold, match.WithIndex(match.NewIndex(holder.Snapshot()))),
		Detector:       detector,
		Extractor:      extractor,
		Ledger:         ledger.New(rt.store),
		Guard:          g,
		Degraded:       rt.degraded,
		ExtractTimeout: time.Duration(rt.cfg.Extractor.TimeoutSeconds) * time.Second,
		StoreTimeout:   time.Duration(rt.cfg.Database.StoreTimeoutSeconds) * time.Second,
		MinFrames:      rt.cfg.Thresholds.Session.MinFrames,
		MaxWindow:      time.Duration(rt.cfg.Thresholds.Session.WindowSeconds) * time.Second,
		Log:            rt.log,
	})

	outcome := scanner.Scan(ctx, client, frames)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}

// loadFrames reads and decodes the frame files in argument order. Capture
// times come from file modification times so the session window check works
// on real capture dumps.
func loadFrames(paths []string) ([]*frame.Frame, error) {
	frames := make([]*frame.Frame, 0, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %s: %w", path, err)
		}

		capturedAt := time.Now()
		if info, err := os.Stat(path); err == nil {
			capturedAt = info.ModTime()
		}

		f, err := frame.Decode(data, i, capturedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
