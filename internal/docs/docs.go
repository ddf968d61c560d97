// Package docs renders caregiver documents into the documents directory.
// Files are plain text, named {kind}_{subject}_{timestamp}.txt so repeated
// requests never overwrite earlier exports.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilenameTimeLayout stamps generated document names.
const FilenameTimeLayout = "20060102_150405"

// Event is one dated line in a doctor summary.
type Event struct {
	Date        string
	Description string
}

// Task is one entry in a generated schedule.
type Task struct {
	Time        string
	Description string
}

// Writer renders documents into a single directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// MedicalSummary writes an already-rendered health summary for a patient and
// returns the document filename.
func (w *Writer) MedicalSummary(patient, summary string, now time.Time) (string, error) {
	name := fmt.Sprintf("medical_summary_%s_%s.txt", patient, now.Format(FilenameTimeLayout))
	return w.write(name, summary)
}

// DoctorSummary writes a since-last-visit event list for a person.
func (w *Writer) DoctorSummary(person string, events []Event, lastVisitDate string, now time.Time) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Doctor Summary for %s\n", person)
	fmt.Fprintf(&b, "Since last visit on %s:\n\n", lastVisitDate)
	for _, ev := range events {
		fmt.Fprintf(&b, "- %s: %s\n", ev.Date, ev.Description)
	}
	name := fmt.Sprintf("doctor_summary_%s_%s.txt", person, now.Format(FilenameTimeLayout))
	return w.write(name, b.String())
}

// Schedule writes a task list for a period such as "today" or "this week".
func (w *Writer) Schedule(tasks []Task, period string, now time.Time) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Schedule\n\n", capitalize(period))
	for _, task := range tasks {
		fmt.Fprintf(&b, "- %s: %s\n", task.Time, task.Description)
	}
	name := fmt.Sprintf("schedule_%s_%s.txt", period, now.Format(FilenameTimeLayout))
	return w.write(name, b.String())
}

// DialogueExport writes the most recent user/assistant exchange.
func (w *Writer) DialogueExport(user, reply string, now time.Time) (string, error) {
	content := fmt.Sprintf("User: %s\n\nMoira: %s\n", user, reply)
	name := fmt.Sprintf("dialogue_%s.txt", now.Format(FilenameTimeLayout))
	return w.write(name, content)
}

func (w *Writer) write(name, content string) (string, error) {
	if err := os.WriteFile(filepath.Join(w.dir, name), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write document %s: %w", name, err)
	}
	return name, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
