package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kralovic/faceattend/internal/extract"
	"github.com/kralovic/faceattend/internal/frame"
	"github.com/kralovic/faceattend/internal/gallery"
	"github.com/kralovic/faceattend/internal/kvstore/postgres"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the enrolled face gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE:  runGalleryList,
}

var galleryEnrollCmd = &cobra.Command{
	Use:   "enroll <identity> <name> <photo.jpg> [more photos...]",
	Short: "Enroll an identity from one or more face photos",
	Long: `Enroll an identity into the gallery from face photos.

Each photo is sent to the face extractor; the enrolled embedding is the
average over all photos with exactly one detected face. Photos with zero or
multiple faces are skipped. Re-enrolling an existing identity replaces its
embedding but keeps its position in the match tie-break order.

Enrollment writes to the database and therefore requires DATABASE_URL.

Examples:
  # Enroll student 42 from three photos
  faceattend gallery enroll 42 "Jan Novák" a.jpg b.jpg c.jpg`,
	Args: cobra.MinimumNArgs(3),
	RunE: runGalleryEnroll,
}

var galleryFindCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find an enrolled identity by display name",
	Long: `Look up an enrolled identity by its display name.

Matching ignores case, diacritics and dashes, so "jan-novak" finds
"Jan Novák".`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryFind,
}

var galleryReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload and validate the gallery source",
	Long: `Load the gallery from its configured source and report the result.

A failed reload leaves nothing changed; use this to validate the enrolled
gallery after edits to the JSON file or the database.`,
	RunE: runGalleryReload,
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "remove <identity>",
	Short: "Remove an enrolled identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryRemove,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryEnrollCmd)
	galleryCmd.AddCommand(galleryFindCmd)
	galleryCmd.AddCommand(galleryReloadCmd)
	galleryCmd.AddCommand(galleryRemoveCmd)
}

func runGalleryReload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	src, err := rt.gallerySource()
	if err != nil {
		return err
	}

	holder := gallery.NewHolder(nil)
	if err := holder.Reload(ctx, src, rt.cfg.Gallery.Dim); err != nil {
		return fmt.Errorf("gallery reload failed: %w", err)
	}

	fmt.Printf("Gallery OK: %d identities from %s\n", holder.Snapshot().Len(), src.Name())
	return nil
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	src, err := rt.gallerySource()
	if err != nil {
		return err
	}
	entries, err := src.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tNAME\tDIM")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\n", e.ID, e.Name, len(e.Embedding))
	}
	return w.Flush()
}

func runGalleryFind(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	src, err := rt.gallerySource()
	if err != nil {
		return err
	}
	g, err := gallery.Load(ctx, src, rt.cfg.Gallery.Dim)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}

	entry, ok := g.FindByName(args[0])
	if !ok {
		return fmt.Errorf("no enrolled identity named %q", args[0])
	}
	fmt.Printf("%s\t%s\n", entry.ID, entry.Name)
	return nil
}

func runGalleryEnroll(cmd *cobra.Command, args []string) error {
	identity, name, photos := args[0], args[1], args[2:]

	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.pool == nil {
		return fmt.Errorf("enrollment requires a database: set DATABASE_URL")
	}

	extractor := extract.NewClient(rt.cfg.Extractor.URL)
	timeout := time.Duration(rt.cfg.Extractor.TimeoutSeconds) * time.Second

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Extracting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	var sum []float64
	used, skipped := 0, 0

	for i, path := range photos {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		// Enrollment photos come straight off a camera; shrink them
		// before shipping to the extractor.
		data, err = frame.Resize(data, rt.cfg.Extractor.MaxImageSize)
		if err != nil {
			return fmt.Errorf("failed to resize %s: %w", path, err)
		}
		f, err := frame.Decode(data, i, time.Now())
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		detections, err := extractor.Extract(callCtx, f)
		cancel()
		if err != nil {
			return fmt.Errorf("extraction failed for %s: %w", path, err)
		}

		if len(detections) != 1 {
			skipped++
			bar.Add(1)
			continue
		}

		emb := detections[0].Embedding
		if sum == nil {
			sum = make([]float64, len(emb))
		}
		if len(emb) != len(sum) {
			return fmt.Errorf("embedding dimension changed between photos: %d vs %d", len(emb), len(sum))
		}
		for j, v := range emb {
			sum[j] += float64(v)
		}
		used++
		bar.Add(1)
	}
	fmt.Println()

	if used == 0 {
		return fmt.Errorf("no usable photos: every photo had zero or multiple faces")
	}
	if len(sum) != rt.cfg.Gallery.Dim {
		return fmt.Errorf("extractor produced %d-dimensional embeddings, gallery expects %d", len(sum), rt.cfg.Gallery.Dim)
	}

	avg := make([]float32, len(sum))
	for i, v := range sum {
		avg[i] = float32(v / float64(used))
	}

	source := postgres.NewGallerySource(rt.pool)
	if err := source.SaveFace(ctx, identity, name, avg); err != nil {
		return fmt.Errorf("failed to enroll: %w", err)
	}

	fmt.Printf("Enrolled %s (%s) from %d photos (%d skipped)\n", name, identity, used, skipped)
	return nil
}

func runGalleryRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.pool == nil {
		return fmt.Errorf("gallery removal requires a database: set DATABASE_URL")
	}

	source := postgres.NewGallerySource(rt.pool)
	if err := source.DeleteFace(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to remove: %w", err)
	}

	fmt.Printf("Removed identity %s\n", args[0])
	return nil
}
