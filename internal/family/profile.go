// Package family stores structured profiles of household members and the
// onboarding flow that builds them.
package family

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mcallaghan/moira/internal/store"
)

var ErrProfileNotFound = errors.New("family member not found")

// Profile is one household member's character sheet. Saved whole-file; there
// is no partial update.
type Profile struct {
	Name           string   `json:"name"`
	Pronouns       string   `json:"pronouns"`
	Birthday       string   `json:"birthday"`
	Diagnoses      []string `json:"diagnoses"`
	Preferences    []string `json:"preferences"`
	Triggers       []string `json:"triggers"`
	FavoriteThings []string `json:"favorite_things"`
	Notes          string   `json:"notes"`
}

// NormalizeName derives the profile file key: lowercased, spaces to
// underscores.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Registry persists profiles, one JSON file per normalized name.
type Registry struct {
	mu      sync.Mutex
	records *store.Store
}

func NewRegistry(records *store.Store) *Registry {
	return &Registry{records: records}
}

func (r *Registry) path(name string) string {
	return filepath.Join(r.records.Paths().FamilyDir, NormalizeName(name)+".json")
}

// Save overwrites the member's profile file wholesale.
func (r *Registry) Save(p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records.Save(r.path(p.Name), p)
}

// Load fetches one profile by (normalized) name.
func (r *Registry) Load(name string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(name)); err != nil {
		return Profile{}, ErrProfileNotFound
	}
	var p Profile
	r.records.Load("family", r.path(name), &p)
	if p.Name == "" {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// List returns every stored profile, in directory order.
func (r *Registry) List() ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(r.records.Paths().FamilyDir, "*.json"))
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(matches))
	for _, m := range matches {
		var p Profile
		r.records.Load("family", m, &p)
		if p.Name != "" {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// Names returns the display names of every stored member, for the
// patient-name vocabulary.
func (r *Registry) Names() []string {
	profiles, err := r.List()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return names
}
