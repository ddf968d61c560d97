package companion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mcallaghan/moira/internal/docs"
)

var (
	medicalSummaryPattern = regexp.MustCompile(`medical summary for ([a-zA-Z0-9_\- ]+)`)
	doctorSummaryPattern  = regexp.MustCompile(`doctor summary for ([a-zA-Z0-9_\- ]+)`)
	schedulePattern       = regexp.MustCompile(`schedule for ([a-zA-Z0-9_\- ]+)`)
)

// documentRequest recognizes explicit document asks and renders the file. The
// returned response links the download path; handled is false when the
// message is not a document request.
func (c *Companion) documentRequest(ctx context.Context, text string) (response string, handled bool, err error) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "medical summary for"):
		person := "Unknown"
		if m := medicalSummaryPattern.FindStringSubmatch(lower); m != nil {
			person = strings.TrimSpace(m[1])
		}
		name, err := c.deps.Documents.MedicalSummary(person, c.deps.Tracker.Summarize(person), c.now())
		if err != nil {
			return "", false, err
		}
		c.documentRendered("medical_summary")
		return fmt.Sprintf("Medical summary generated for %s. You can download it here: /documents/%s", person, name), true, nil

	case strings.Contains(lower, "doctor summary"):
		person := "Unknown"
		if m := doctorSummaryPattern.FindStringSubmatch(lower); m != nil {
			person = strings.TrimSpace(m[1])
		}
		turns, err := c.deps.Memory.Recent(ctx, 0)
		if err != nil {
			return "", false, fmt.Errorf("load memory for doctor summary: %w", err)
		}
		events := make([]docs.Event, 0, len(turns))
		for _, t := range turns {
			events = append(events, docs.Event{Date: t.Timestamp, Description: t.User + " / " + t.Assistant})
		}
		name, err := c.deps.Documents.DoctorSummary(person, events, "N/A", c.now())
		if err != nil {
			return "", false, err
		}
		c.documentRendered("doctor_summary")
		return fmt.Sprintf("Doctor summary generated for %s. You can download it here: /documents/%s", person, name), true, nil

	case strings.Contains(lower, "schedule"):
		period := "today"
		if m := schedulePattern.FindStringSubmatch(lower); m != nil {
			period = strings.TrimSpace(m[1])
		}
		turns, err := c.deps.Memory.Recent(ctx, 5)
		if err != nil {
			return "", false, fmt.Errorf("load memory for schedule: %w", err)
		}
		tasks := make([]docs.Task, 0, len(turns))
		for _, t := range turns {
			tasks = append(tasks, docs.Task{Time: t.Timestamp, Description: t.User})
		}
		name, err := c.deps.Documents.Schedule(tasks, period, c.now())
		if err != nil {
			return "", false, err
		}
		c.documentRendered("schedule")
		return fmt.Sprintf("%s schedule generated. You can download it here: /documents/%s", capitalize(period), name), true, nil

	case strings.Contains(lower, "export this conversation") || strings.Contains(lower, "export this dialogue"):
		turns, err := c.deps.Memory.Recent(ctx, 1)
		if err != nil {
			return "", false, fmt.Errorf("load memory for dialogue export: %w", err)
		}
		if len(turns) == 0 {
			return "", false, nil
		}
		last := turns[len(turns)-1]
		name, err := c.deps.Documents.DialogueExport(last.User, last.Assistant, c.now())
		if err != nil {
			return "", false, err
		}
		c.documentRendered("dialogue")
		return fmt.Sprintf("Dialogue export generated. You can download it here: /documents/%s", name), true, nil
	}

	return "", false, nil
}

func (c *Companion) documentRendered(kind string) {
	if m := c.deps.Metrics; m != nil {
		m.DocumentsRendered.WithLabelValues(kind).Inc()
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
