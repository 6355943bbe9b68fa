package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kralovic/faceattend/internal/gallery"
)

// GallerySource loads enrolled identities from the gallery_faces table.
// It implements gallery.Source; entries come back ordered by insertion so
// distance ties resolve to the earliest enrollment.
type GallerySource struct {
	pool *Pool
}

// NewGallerySource creates a gallery source backed by the connection pool.
func NewGallerySource(pool *Pool) *GallerySource {
	return &GallerySource{pool: pool}
}

// Name identifies the source in load errors.
func (s *GallerySource) Name() string {
	return "postgres"
}

// LoadEntries reads all enrolled faces in enrollment order.
func (s *GallerySource) LoadEntries(ctx context.Context) ([]gallery.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identity, name, embedding
		FROM gallery_faces
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query gallery faces: %w", err)
	}
	defer rows.Close()

	var entries []gallery.Entry
	for rows.Next() {
		var e gallery.Entry
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.Name, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery face: %w", err)
		}
		e.Embedding = vec.Slice()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery faces: %w", err)
	}
	return entries, nil
}

// SaveFace enrolls or re-enrolls an identity. Re-enrollment replaces the
// stored embedding but keeps the original enrollment position.
func (s *GallerySource) SaveFace(ctx context.Context, identity, name string, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gallery_faces (identity, name, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET name = EXCLUDED.name, embedding = EXCLUDED.embedding
	`, identity, name, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("save gallery face: %w", err)
	}
	return nil
}

// DeleteFace removes an enrolled identity. Missing identities are a no-op.
func (s *GallerySource) DeleteFace(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM gallery_faces WHERE identity = $1", identity)
	if err != nil {
		return fmt.Errorf("delete gallery face: %w", err)
	}
	return nil
}
