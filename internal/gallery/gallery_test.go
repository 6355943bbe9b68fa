package gallery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func entry(id, name string, emb ...float32) Entry {
	return Entry{ID: id, Name: name, Embedding: emb}
}

func TestNew(t *testing.T) {
	g, err := New([]Entry{
		entry("1", "Jan", 0, 0, 1),
		entry("2", "Eva", 0, 1, 0),
	}, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d; want 2", g.Len())
	}
	if g.Dim() != 3 {
		t.Errorf("Dim = %d; want 3", g.Dim())
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		dim     int
		wantErr error
	}{
		{"empty", nil, 3, ErrEmpty},
		{
			"duplicate identity",
			[]Entry{entry("1", "a", 0, 0, 1), entry("1", "b", 0, 1, 0)},
			3,
			ErrDuplicateIdentity,
		},
		{
			"dimension mismatch",
			[]Entry{entry("1", "a", 0, 0, 1), entry("2", "b", 0, 1)},
			3,
			ErrDimensionMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.entries, tc.dim)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v; want %v", err, tc.wantErr)
			}
		})
	}
}

func TestQueryAllPreservesLoadOrder(t *testing.T) {
	g, err := New([]Entry{
		entry("b", "second", 1, 0),
		entry("a", "first", 0, 1),
	}, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ids, vectors := g.QueryAll()
	if ids[0] != "b" || ids[1] != "a" {
		t.Errorf("ids = %v; want load order [b a]", ids)
	}
	if vectors[0][0] != 1 {
		t.Errorf("vectors out of order: %v", vectors)
	}
}

func TestGet(t *testing.T) {
	g, _ := New([]Entry{entry("1", "Jan", 1, 2)}, 2)

	if e, ok := g.Get("1"); !ok || e.Name != "Jan" {
		t.Errorf("Get(1) = %v, %v; want Jan, true", e, ok)
	}
	if _, ok := g.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestFindByName(t *testing.T) {
	g, _ := New([]Entry{entry("1", "Jiří Novák", 1, 2)}, 2)

	if _, ok := g.FindByName("jiri-novak"); !ok {
		t.Error("normalized name lookup should match despite diacritics and dashes")
	}
	if _, ok := g.FindByName("someone else"); ok {
		t.Error("lookup of unknown name should report false")
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jiří Novák", "jiri novak"},
		{"jan-novak", "jan novak"},
		{"  Eva  ", "eva"},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.json")
	payload := `{"entries": [
		{"id": "1", "name": "Jan", "embedding": [0.1, 0.2]},
		{"id": "2", "name": "Eva", "embedding": [0.3, 0.4]}
	]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := Load(context.Background(), &FileSource{Path: path}, 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d; want 2", g.Len())
	}
}

func TestLoadErrors(t *testing.T) {
	missing := &FileSource{Path: filepath.Join(t.TempDir(), "does-not-exist.json")}
	_, err := Load(context.Background(), missing, 2)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err = %v; want *LoadError", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(empty, []byte(`{"entries": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(context.Background(), &FileSource{Path: empty}, 2)
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v; want ErrEmpty", err)
	}

	malformed := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(malformed, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), &FileSource{Path: malformed}, 2); err == nil {
		t.Error("expected error for malformed gallery file")
	}
}

func TestHolderSwap(t *testing.T) {
	g1, _ := New([]Entry{entry("1", "a", 1, 0)}, 2)
	g2, _ := New([]Entry{entry("2", "b", 0, 1)}, 2)

	h := NewHolder(g1)
	snap := h.Snapshot()

	h.Swap(g2)

	// The earlier snapshot is unaffected by the swap.
	if _, ok := snap.Get("1"); !ok {
		t.Error("old snapshot lost its entries after swap")
	}
	if _, ok := h.Snapshot().Get("2"); !ok {
		t.Error("new snapshot should expose the swapped gallery")
	}
}

func TestHolderReloadKeepsOldGalleryOnFailure(t *testing.T) {
	g1, _ := New([]Entry{entry("1", "a", 1, 0)}, 2)
	h := NewHolder(g1)

	bad := &FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}
	if err := h.Reload(context.Background(), bad, 2); err == nil {
		t.Fatal("expected reload error")
	}
	if h.Snapshot() != g1 {
		t.Error("failed reload must keep the previous gallery active")
	}
}
