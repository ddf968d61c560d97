package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// TimeLayout is the timestamp format shared by every record family. It sorts
// chronologically under plain string comparison.
const TimeLayout = "2006-01-02 15:04:05"

// Paths describes the on-disk layout of all file-resident state.
type Paths struct {
	Root              string
	MemoryFile        string
	LogsDir           string
	DocumentsDir      string
	HealthBufferFile  string
	HealthArchiveFile string
	FamilyDir         string
	ResearchDir       string
	ProcessedDir      string
	SummaryFile       string
	AudioDir          string
}

func NewPaths(root string) Paths {
	return Paths{
		Root:              root,
		MemoryFile:        filepath.Join(root, "memory", "memory.json"),
		LogsDir:           filepath.Join(root, "logs"),
		DocumentsDir:      filepath.Join(root, "documents"),
		HealthBufferFile:  filepath.Join(root, "documents", "health_buffer.json"),
		HealthArchiveFile: filepath.Join(root, "documents", "health_records.json"),
		FamilyDir:         filepath.Join(root, "family"),
		ResearchDir:       filepath.Join(root, "research"),
		ProcessedDir:      filepath.Join(root, "research", "processed"),
		SummaryFile:       filepath.Join(root, "research", "summarized_knowledge.json"),
		AudioDir:          filepath.Join(root, "audio"),
	}
}

// EnsureDirs creates every directory of the layout.
func (p Paths) EnsureDirs() error {
	dirs := []string{
		filepath.Dir(p.MemoryFile),
		p.LogsDir,
		p.DocumentsDir,
		p.FamilyDir,
		p.ResearchDir,
		p.ProcessedDir,
		p.AudioDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// LogFile returns the dated daily-log path for a YYYY-MM-DD date string.
func (p Paths) LogFile(date string) string {
	return filepath.Join(p.LogsDir, date+".txt")
}

// Store reads and writes whole-document JSON record files. Every save replaces
// the full file; callers own serialization of their read-modify-write cycles.
type Store struct {
	paths        Paths
	onDecodeFail func(kind string)
}

// New builds a store over the given layout. onDecodeFail is invoked with the
// record kind whenever a file fails to decode and the empty default is used;
// it may be nil.
func New(paths Paths, onDecodeFail func(kind string)) *Store {
	return &Store{paths: paths, onDecodeFail: onDecodeFail}
}

func (s *Store) Paths() Paths { return s.paths }

// Load decodes the record file at path into out. A missing or undecodable
// file leaves out at its caller-provided default: bad on-disk state must
// never take the service down, so corruption self-heals to the empty
// baseline and is only reported through the decode-failure hook.
func (s *Store) Load(kind, path string, out any) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("store: read %s (%s): %v; using empty default", kind, path, err)
			s.failed(kind)
		}
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("store: decode %s (%s): %v; using empty default", kind, path, err)
		s.failed(kind)
	}
}

// Save atomically replaces the record file at path with the encoded value.
// The temp-file-then-rename dance guarantees readers never observe a
// truncated file after a crash mid-write.
func (s *Store) Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Reset wipes every record family back to its empty baseline: conversation
// memory, both health collections, all family profiles, and archived logs.
func (s *Store) Reset() error {
	if err := s.paths.EnsureDirs(); err != nil {
		return err
	}
	if err := s.Save(s.paths.MemoryFile, map[string]any{"conversations": []any{}}); err != nil {
		return err
	}
	if err := s.Save(s.paths.HealthBufferFile, []any{}); err != nil {
		return err
	}
	if err := s.Save(s.paths.HealthArchiveFile, []any{}); err != nil {
		return err
	}
	for _, pattern := range []string{
		filepath.Join(s.paths.FamilyDir, "*.json"),
		filepath.Join(s.paths.LogsDir, "*.txt"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", m, err)
			}
		}
	}
	return nil
}

func (s *Store) failed(kind string) {
	if s.onDecodeFail != nil {
		s.onDecodeFail(kind)
	}
}
