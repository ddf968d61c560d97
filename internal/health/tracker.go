// Package health owns the lifecycle of tracked health concerns: open buffer
// entries accumulate updates until they are resolved into the archive.
package health

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcallaghan/moira/internal/match"
	"github.com/mcallaghan/moira/internal/store"
)

const (
	StatusOngoing  = "ongoing"
	StatusResolved = "resolved"
)

// UnknownPatient is filed when no family-member name matches the text.
const UnknownPatient = "Unknown"

var ErrIssueNotFound = errors.New("health issue not found")

// Update is one dated note appended to an open issue.
type Update struct {
	Date   string `json:"date"`
	Update string `json:"update"`
}

// Issue is a tracked health concern. It lives in exactly one of the open
// buffer or the archive; buffer to archive is the only transition and it is
// irreversible.
type Issue struct {
	ID           string   `json:"id"`
	Patient      string   `json:"patient"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	Date         string   `json:"date"`
	Updates      []Update `json:"updates"`
	ResolvedDate string   `json:"resolved_date,omitempty"`
}

// Detection is the outcome of scanning a message for health concerns.
type Detection struct {
	Patient     string
	Keywords    []string
	Description string
}

// Keywords is the fixed vocabulary scanned with whole-word matching.
var Keywords = []string{
	"fever", "rash", "not eating", "seizure", "doctor", "er", "hurt", "pain", "vomit", "vomiting",
	"appointment", "medication", "hospital", "sick", "injury", "allergy", "meltdown", "anxious",
	"panic", "headache", "stomach", "sleep", "behavior", "diarrhea", "constipation", "infection",
	"wound", "cut", "bruise", "bleeding", "cough", "cold", "flu", "asthma", "breathing", "therapy",
	"prescription", "swelling", "redness", "temperature", "clinic", "urgent", "ambulance", "doctor's visit",
	"checkup", "check-up", "diagnosis", "treatment", "prescribed", "dose", "dizzy", "dizziness", "nausea",
	"cramp", "cramps", "sore", "throat", "earache", "eczema", "eczema flare", "eczema outbreak", "eczema episode",
}

// Tracker serializes every read-modify-write cycle against the health buffer
// and archive files behind one mutex.
type Tracker struct {
	mu               sync.Mutex
	records          *store.Store
	patientNames     func() []string
	keywordThreshold int
	nameThreshold    int
}

// NewTracker builds a tracker over the record store. patientNames supplies
// the current name vocabulary (family profiles plus any configured extras);
// it may be nil.
func NewTracker(records *store.Store, patientNames func() []string, keywordThreshold, nameThreshold int) *Tracker {
	if keywordThreshold <= 0 {
		keywordThreshold = 90
	}
	if nameThreshold <= 0 {
		nameThreshold = match.DefaultThreshold
	}
	return &Tracker{
		records:          records,
		patientNames:     patientNames,
		keywordThreshold: keywordThreshold,
		nameThreshold:    nameThreshold,
	}
}

// Detect scans text for health keywords and a patient name. The boolean is
// false when no keyword matches. The description is always the full source
// text; the patient falls back to UnknownPatient when no name matches.
func (t *Tracker) Detect(text string) (Detection, bool) {
	keywords := match.Find(text, Keywords, match.WordBoundary, t.keywordThreshold)
	if len(keywords) == 0 {
		return Detection{}, false
	}
	patient := UnknownPatient
	if t.patientNames != nil {
		if names := match.Find(text, t.patientNames(), match.Similarity, t.nameThreshold); len(names) > 0 {
			patient = names[0]
		}
	}
	return Detection{Patient: patient, Keywords: keywords, Description: text}, true
}

// Open appends a new ongoing issue to the buffer and persists it.
func (t *Tracker) Open(patient, description string) (Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	issue := Issue{
		ID:          uuid.NewString(),
		Patient:     patient,
		Description: description,
		Status:      StatusOngoing,
		Date:        time.Now().Format(store.TimeLayout),
		Updates:     []Update{},
	}
	buffer := t.loadBuffer()
	buffer = append(buffer, issue)
	if err := t.records.Save(t.records.Paths().HealthBufferFile, buffer); err != nil {
		return Issue{}, err
	}
	return issue, nil
}

// AddUpdate appends a dated note to the open issue with the given ID and
// optionally transitions its status. Unknown IDs leave the buffer untouched.
func (t *Tracker) AddUpdate(id, text, status string) (Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buffer := t.loadBuffer()
	idx := indexOf(buffer, id)
	if idx < 0 {
		return Issue{}, ErrIssueNotFound
	}
	buffer[idx].Updates = append(buffer[idx].Updates, Update{
		Date:   time.Now().Format(store.TimeLayout),
		Update: text,
	})
	if status != "" {
		buffer[idx].Status = status
	}
	if err := t.records.Save(t.records.Paths().HealthBufferFile, buffer); err != nil {
		return Issue{}, err
	}
	return buffer[idx], nil
}

// Resolve stamps the issue resolved, removes it from the buffer (later
// entries shift forward) and appends it to the archive. Only valid for
// issues currently in the buffer.
func (t *Tracker) Resolve(id string) (Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buffer := t.loadBuffer()
	idx := indexOf(buffer, id)
	if idx < 0 {
		return Issue{}, ErrIssueNotFound
	}

	issue := buffer[idx]
	issue.Status = StatusResolved
	issue.ResolvedDate = time.Now().Format(store.TimeLayout)

	archive := t.loadArchive()
	archive = append(archive, issue)
	buffer = append(buffer[:idx], buffer[idx+1:]...)

	if err := t.records.Save(t.records.Paths().HealthBufferFile, buffer); err != nil {
		return Issue{}, err
	}
	if err := t.records.Save(t.records.Paths().HealthArchiveFile, archive); err != nil {
		return Issue{}, err
	}
	return issue, nil
}

// OpenIssues returns a snapshot of the buffer in order.
func (t *Tracker) OpenIssues() []Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadBuffer()
}

// Summarize renders the medical summary for one patient across the buffer
// and the archive, chronologically by opened date.
func (t *Tracker) Summarize(patient string) string {
	t.mu.Lock()
	all := append(t.loadBuffer(), t.loadArchive()...)
	t.mu.Unlock()

	issues := make([]Issue, 0, len(all))
	for _, issue := range all {
		if strings.EqualFold(issue.Patient, patient) {
			issues = append(issues, issue)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Date < issues[j].Date })

	var b strings.Builder
	fmt.Fprintf(&b, "Medical Summary for %s\n", patient)
	fmt.Fprintf(&b, "Generated on: %s\n", time.Now().Format(store.TimeLayout))
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	if len(issues) == 0 {
		b.WriteString("No health issues recorded for this patient.\n")
		return b.String()
	}

	ongoing, resolved := 0, 0
	for _, issue := range issues {
		if issue.Status == StatusResolved {
			resolved++
		} else {
			ongoing++
		}
	}
	fmt.Fprintf(&b, "Ongoing issues: %d\n", ongoing)
	fmt.Fprintf(&b, "Resolved issues: %d\n\n", resolved)

	for _, issue := range issues {
		fmt.Fprintf(&b, "Date: %s\n", issue.Date)
		fmt.Fprintf(&b, "Status: %s\n", capitalize(issue.Status))
		fmt.Fprintf(&b, "Description: %s\n", issue.Description)
		for _, upd := range issue.Updates {
			fmt.Fprintf(&b, "  Update (%s): %s\n", upd.Date, upd.Update)
		}
		if issue.ResolvedDate != "" {
			fmt.Fprintf(&b, "Resolved on: %s\n", issue.ResolvedDate)
		}
		b.WriteString(strings.Repeat("-", 30) + "\n")
	}
	return b.String()
}

func (t *Tracker) loadBuffer() []Issue {
	buffer := []Issue{}
	t.records.Load("health_buffer", t.records.Paths().HealthBufferFile, &buffer)
	return buffer
}

func (t *Tracker) loadArchive() []Issue {
	archive := []Issue{}
	t.records.Load("health_archive", t.records.Paths().HealthArchiveFile, &archive)
	return archive
}

func indexOf(buffer []Issue, id string) int {
	for i := range buffer {
		if buffer[i].ID == id {
			return i
		}
	}
	return -1
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
