package health

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/mcallaghan/moira/internal/store"
)

func newTestTracker(t *testing.T, names ...string) *Tracker {
	t.Helper()
	s := store.New(store.NewPaths(t.TempDir()), nil)
	if err := s.Paths().EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	return NewTracker(s, func() []string { return names }, 90, 80)
}

func TestDetectKeywordAndPatient(t *testing.T) {
	tr := newTestTracker(t, "Amelia", "Callan")

	text := "He had a fever and wouldn't eat dinner, his name is Callan"
	d, ok := tr.Detect(text)
	if !ok {
		t.Fatalf("Detect() found nothing")
	}
	if d.Patient != "Callan" {
		t.Fatalf("Patient = %q, want %q", d.Patient, "Callan")
	}
	if !reflect.DeepEqual(d.Keywords, []string{"fever"}) {
		t.Fatalf("Keywords = %v, want [fever]", d.Keywords)
	}
	if d.Description != text {
		t.Fatalf("Description = %q, want original text", d.Description)
	}
}

func TestDetectNoKeywordReturnsNoMatch(t *testing.T) {
	tr := newTestTracker(t, "Amelia")
	if _, ok := tr.Detect("we had a lovely day at the park"); ok {
		t.Fatalf("Detect() matched text without health keywords")
	}
}

func TestDetectUnknownPatientFallback(t *testing.T) {
	tr := newTestTracker(t, "Amelia")
	d, ok := tr.Detect("someone has a rash on their arm")
	if !ok {
		t.Fatalf("Detect() found nothing")
	}
	if d.Patient != UnknownPatient {
		t.Fatalf("Patient = %q, want %q", d.Patient, UnknownPatient)
	}
}

func TestOpenThenResolveMovesIssueToArchive(t *testing.T) {
	tr := newTestTracker(t)

	opened, err := tr.Open("Amelia", "fever since this morning")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened.ID == "" || opened.Status != StatusOngoing || opened.Date == "" {
		t.Fatalf("unexpected opened issue: %+v", opened)
	}

	resolved, err := tr.Resolve(opened.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != StatusResolved || resolved.ResolvedDate == "" {
		t.Fatalf("unexpected resolved issue: %+v", resolved)
	}

	if got := tr.OpenIssues(); len(got) != 0 {
		t.Fatalf("buffer after resolve = %v, want empty", got)
	}
	archive := tr.loadArchive()
	if len(archive) != 1 || archive[0].ID != opened.ID || archive[0].Status != StatusResolved {
		t.Fatalf("archive after resolve = %+v, want the resolved issue", archive)
	}
}

func TestResolveFirstOfTwoShiftsSecondForward(t *testing.T) {
	tr := newTestTracker(t)

	first, err := tr.Open("Amelia", "earache")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	second, err := tr.Open("Callan", "cough")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := tr.Resolve(first.ID); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	buffer := tr.OpenIssues()
	if len(buffer) != 1 {
		t.Fatalf("buffer length = %d, want 1", len(buffer))
	}
	if buffer[0].ID != second.ID {
		t.Fatalf("buffer[0] = %q, want the formerly second issue %q", buffer[0].ID, second.ID)
	}
	if archive := tr.loadArchive(); len(archive) != 1 {
		t.Fatalf("archive length = %d, want 1", len(archive))
	}
}

func TestAddUpdateUnknownIDLeavesBufferUnchanged(t *testing.T) {
	tr := newTestTracker(t)
	if _, err := tr.Open("Amelia", "rash"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	before, err := os.ReadFile(tr.records.Paths().HealthBufferFile)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	_, err = tr.AddUpdate("no-such-id", "still itchy", "")
	if !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("AddUpdate() error = %v, want ErrIssueNotFound", err)
	}

	after, err := os.ReadFile(tr.records.Paths().HealthBufferFile)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("buffer file changed on failed update")
	}
}

func TestAddUpdateAppendsAndTransitionsStatus(t *testing.T) {
	tr := newTestTracker(t)
	issue, err := tr.Open("Amelia", "stomach ache")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got, err := tr.AddUpdate(issue.ID, "seems better after lunch", "")
	if err != nil {
		t.Fatalf("AddUpdate() error = %v", err)
	}
	if len(got.Updates) != 1 || got.Updates[0].Update != "seems better after lunch" {
		t.Fatalf("Updates = %+v, want one appended note", got.Updates)
	}
	if got.Status != StatusOngoing {
		t.Fatalf("Status = %q, want unchanged %q", got.Status, StatusOngoing)
	}
}

func TestSummarizeCountsAndOrdersIssues(t *testing.T) {
	tr := newTestTracker(t)
	paths := tr.records.Paths()

	// The newer issue sits in the buffer, the older resolved one in the
	// archive, so chronological rendering must reorder across collections.
	buffer := []Issue{
		{ID: "b", Patient: "amelia", Description: "later concern", Status: StatusOngoing, Date: "2025-06-02 09:00:00"},
		{ID: "c", Patient: "Callan", Description: "other patient", Status: StatusOngoing, Date: "2025-06-02 10:00:00"},
	}
	archive := []Issue{
		{
			ID: "a", Patient: "Amelia", Description: "earlier concern", Status: StatusResolved,
			Date:         "2025-06-01 08:00:00",
			Updates:      []Update{{Date: "2025-06-01 12:00:00", Update: "fever down"}},
			ResolvedDate: "2025-06-01 18:00:00",
		},
	}
	if err := tr.records.Save(paths.HealthBufferFile, buffer); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := tr.records.Save(paths.HealthArchiveFile, archive); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	summary := tr.Summarize("Amelia")
	if !strings.Contains(summary, "Ongoing issues: 1") || !strings.Contains(summary, "Resolved issues: 1") {
		t.Fatalf("summary counts wrong:\n%s", summary)
	}
	if strings.Contains(summary, "other patient") {
		t.Fatalf("summary leaked another patient's issue:\n%s", summary)
	}
	earlier := strings.Index(summary, "earlier concern")
	later := strings.Index(summary, "later concern")
	if earlier < 0 || later < 0 || earlier > later {
		t.Fatalf("summary not in chronological order:\n%s", summary)
	}
	if !strings.Contains(summary, "Update (2025-06-01 12:00:00): fever down") {
		t.Fatalf("summary missing nested update:\n%s", summary)
	}
	if !strings.Contains(summary, "Resolved on: 2025-06-01 18:00:00") {
		t.Fatalf("summary missing resolution date:\n%s", summary)
	}
}

func TestSummarizeNoIssues(t *testing.T) {
	tr := newTestTracker(t)
	summary := tr.Summarize("Torin")
	if !strings.Contains(summary, "No health issues recorded for this patient.") {
		t.Fatalf("empty summary = %q", summary)
	}
}
