// Package research maintains the caregiver's research library: dropped-in
// text files are summarized once, cached, and folded into dialogue context.
package research

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mcallaghan/moira/internal/brain"
	"github.com/mcallaghan/moira/internal/store"
)

const summarizePrompt = "You are a medical research assistant. Summarize the key findings and practical caregiving advice from the following document in a few short paragraphs. Keep concrete details like dosages, thresholds, and warning signs."

// Library holds cached summaries keyed by source filename. mu guards the
// cache only; passMu serializes resummarize passes so two passes never fight
// over the same pending files.
type Library struct {
	mu     sync.Mutex
	passMu sync.Mutex
	paths  store.Paths
	st     *store.Store

	summaries map[string]string
}

func NewLibrary(st *store.Store, paths store.Paths) *Library {
	lib := &Library{
		paths:     paths,
		st:        st,
		summaries: make(map[string]string),
	}
	st.Load("research", paths.SummaryFile, &lib.summaries)
	return lib
}

// Snippets returns all cached summaries in filename order for use as dialogue
// context.
func (l *Library) Snippets() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.summaries))
	for k := range l.summaries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("From %s:\n%s", k, l.summaries[k]))
	}
	return out
}

// Count reports how many summaries are cached.
func (l *Library) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.summaries)
}

// Resummarize summarizes every .txt file waiting in the research directory,
// caches the result, and moves the source into processed/. It returns the
// number of documents summarized. A failure on one document stops the pass so
// the remaining files are retried next time. Generator calls run without the
// cache lock held; chat turns keep reading Snippets while a pass is underway.
func (l *Library) Resummarize(ctx context.Context, gen brain.Generator) (int, error) {
	l.passMu.Lock()
	defer l.passMu.Unlock()

	matches, err := filepath.Glob(filepath.Join(l.paths.ResearchDir, "*.txt"))
	if err != nil {
		return 0, fmt.Errorf("list research files: %w", err)
	}
	sort.Strings(matches)

	done := 0
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return done, fmt.Errorf("read research file: %w", err)
		}
		text := strings.TrimSpace(string(raw))
		name := filepath.Base(path)

		if text != "" {
			summary, err := gen.Reply(ctx, brain.Request{
				SystemPrompt: summarizePrompt,
				UserText:     text,
			})
			if err != nil {
				return done, fmt.Errorf("summarize %s: %w", name, err)
			}
			l.mu.Lock()
			l.summaries[name] = summary
			l.mu.Unlock()
		}

		if err := os.Rename(path, filepath.Join(l.paths.ProcessedDir, name)); err != nil {
			return done, fmt.Errorf("archive research file: %w", err)
		}
		done++
	}

	if done > 0 {
		l.mu.Lock()
		err := l.st.Save(l.paths.SummaryFile, l.summaries)
		l.mu.Unlock()
		if err != nil {
			return done, err
		}
	}
	return done, nil
}
