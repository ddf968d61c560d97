package voice

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// AudioStore writes synthesized replies to disk and bounds how many files are
// kept around for the UI to fetch.
type AudioStore struct {
	dir    string
	retain int
}

func NewAudioStore(dir string, retain int) *AudioStore {
	if retain <= 0 {
		retain = 10
	}
	return &AudioStore{dir: dir, retain: retain}
}

// Write saves the audio as response_<unixnano>.mp3 and returns the filename.
// Older recordings beyond the retention count are removed.
func (a *AudioStore) Write(audio []byte, now time.Time) (string, error) {
	name := fmt.Sprintf("response_%d.mp3", now.UnixNano())
	if err := os.WriteFile(filepath.Join(a.dir, name), audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := a.cleanup(); err != nil {
		return "", err
	}
	return name, nil
}

func (a *AudioStore) cleanup() error {
	matches, err := filepath.Glob(filepath.Join(a.dir, "response_*.mp3"))
	if err != nil {
		return fmt.Errorf("list audio files: %w", err)
	}
	if len(matches) <= a.retain {
		return nil
	}
	// Names embed the creation time, so lexicographic order is age order.
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-a.retain] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old audio: %w", err)
		}
	}
	return nil
}
