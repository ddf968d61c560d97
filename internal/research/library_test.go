package research

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mcallaghan/moira/internal/brain"
	"github.com/mcallaghan/moira/internal/store"
)

type stubGenerator struct {
	prefix string
}

func (g *stubGenerator) Reply(ctx context.Context, req brain.Request) (string, error) {
	return g.prefix + req.UserText, nil
}

func newTestLibrary(t *testing.T) (*Library, store.Paths) {
	t.Helper()
	paths := store.NewPaths(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	return NewLibrary(store.New(paths, nil), paths), paths
}

func TestResummarizeCachesAndArchives(t *testing.T) {
	lib, paths := newTestLibrary(t)

	src := filepath.Join(paths.ResearchDir, "autism_sleep.txt")
	if err := os.WriteFile(src, []byte("Melatonin helps sleep onset."), 0o644); err != nil {
		t.Fatalf("write research file: %v", err)
	}

	n, err := lib.Resummarize(context.Background(), &stubGenerator{prefix: "summary: "})
	if err != nil {
		t.Fatalf("Resummarize() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Resummarize() = %d, want 1", n)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source file still present, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(paths.ProcessedDir, "autism_sleep.txt")); err != nil {
		t.Fatalf("processed copy missing: %v", err)
	}

	snippets := lib.Snippets()
	if len(snippets) != 1 {
		t.Fatalf("Snippets() len = %d, want 1", len(snippets))
	}
	if !strings.Contains(snippets[0], "autism_sleep.txt") || !strings.Contains(snippets[0], "summary: Melatonin") {
		t.Fatalf("snippet = %q", snippets[0])
	}

	// A fresh library sees the persisted cache.
	reloaded := NewLibrary(store.New(paths, nil), paths)
	if reloaded.Count() != 1 {
		t.Fatalf("reloaded Count() = %d, want 1", reloaded.Count())
	}
}

func TestResummarizeSkipsEmptyAndNonText(t *testing.T) {
	lib, paths := newTestLibrary(t)

	if err := os.WriteFile(filepath.Join(paths.ResearchDir, "empty.txt"), []byte("   \n"), 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(paths.ResearchDir, "scan.pdf"), []byte("binary"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	n, err := lib.Resummarize(context.Background(), &stubGenerator{})
	if err != nil {
		t.Fatalf("Resummarize() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Resummarize() = %d, want 1 (empty file archived without summary)", n)
	}
	if lib.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", lib.Count())
	}
	if _, err := os.Stat(filepath.Join(paths.ResearchDir, "scan.pdf")); err != nil {
		t.Fatalf("non-text file should be left in place: %v", err)
	}
}

type parkedGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func (g *parkedGenerator) Reply(ctx context.Context, req brain.Request) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	return "summary", nil
}

func TestSnippetsNotBlockedWhileSummarizing(t *testing.T) {
	lib, paths := newTestLibrary(t)
	if err := os.WriteFile(filepath.Join(paths.ResearchDir, "slow.txt"), []byte("long document"), 0o644); err != nil {
		t.Fatalf("write research file: %v", err)
	}

	gen := &parkedGenerator{entered: make(chan struct{}), release: make(chan struct{})}
	passDone := make(chan error, 1)
	go func() {
		_, err := lib.Resummarize(context.Background(), gen)
		passDone <- err
	}()
	<-gen.entered

	snippets := make(chan []string, 1)
	go func() { snippets <- lib.Snippets() }()
	select {
	case got := <-snippets:
		if len(got) != 0 {
			t.Fatalf("Snippets() mid-pass = %v, want empty", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Snippets() blocked while a summary was being generated")
	}

	close(gen.release)
	if err := <-passDone; err != nil {
		t.Fatalf("Resummarize() error = %v", err)
	}
	if lib.Count() != 1 {
		t.Fatalf("Count() after pass = %d, want 1", lib.Count())
	}
}

func TestSnippetsOrderedByFilename(t *testing.T) {
	lib, paths := newTestLibrary(t)
	for _, name := range []string{"b_second.txt", "a_first.txt"} {
		if err := os.WriteFile(filepath.Join(paths.ResearchDir, name), []byte("content of "+name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if _, err := lib.Resummarize(context.Background(), &stubGenerator{}); err != nil {
		t.Fatalf("Resummarize() error = %v", err)
	}
	snippets := lib.Snippets()
	if len(snippets) != 2 {
		t.Fatalf("Snippets() len = %d, want 2", len(snippets))
	}
	if !strings.HasPrefix(snippets[0], "From a_first.txt") || !strings.HasPrefix(snippets[1], "From b_second.txt") {
		t.Fatalf("snippets out of order: %q, %q", snippets[0], snippets[1])
	}
}
