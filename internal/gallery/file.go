package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource loads gallery entries from a JSON file with the shape:
//
//	{"entries": [{"id": "1", "name": "Jan Novak", "embedding": [ ... ]}]}
//
// Entry order in the file is the gallery load order.
type FileSource struct {
	Path string
}

type fileEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
}

type filePayload struct {
	Entries []fileEntry `json:"entries"`
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) LoadEntries(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading gallery file: %w", err)
	}

	var payload filePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing gallery file: %w", err)
	}

	entries := make([]Entry, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		entries = append(entries, Entry{ID: e.ID, Name: e.Name, Embedding: e.Embedding})
	}
	return entries, nil
}
