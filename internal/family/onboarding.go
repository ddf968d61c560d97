package family

import (
	"fmt"
	"strings"
)

// Question binds one onboarding prompt to a profile field.
type Question struct {
	Field  string
	Prompt string
}

// Questions is the fixed onboarding sequence. Answers fill profile fields in
// this order; there is no backward navigation.
var Questions = []Question{
	{"name", "What is the family member's full name?"},
	{"pronouns", "What pronouns do they use? (e.g., she/her, he/him, they/them)"},
	{"birthday", "What is their birthday? (YYYY-MM-DD or just the year if you prefer)"},
	{"diagnoses", "List any diagnoses (comma separated, or type 'none')."},
	{"preferences", "List any strong preferences (comma separated, or type 'none')."},
	{"triggers", "List any known triggers (comma separated, or type 'none')."},
	{"favorite_things", "List some favorite things (comma separated, or type 'none')."},
	{"notes", "Any additional notes or important info?"},
}

// Onboarding walks one session through the question sequence, accumulating a
// draft profile. The caller persists the profile when Answer reports done; an
// abandoned session is simply dropped and nothing is saved.
type Onboarding struct {
	step  int
	draft Profile
}

func NewOnboarding() *Onboarding {
	return &Onboarding{draft: Profile{
		Diagnoses:      []string{},
		Preferences:    []string{},
		Triggers:       []string{},
		FavoriteThings: []string{},
	}}
}

// FirstQuestion returns the opening prompt.
func (o *Onboarding) FirstQuestion() string {
	return Questions[0].Prompt
}

// Step reports the zero-based index of the question currently awaiting an
// answer.
func (o *Onboarding) Step() int { return o.step }

// Answer records the reply to the current question. When questions remain,
// reply is the next prompt and done is false. On the final answer, reply is
// the completion message, done is true, and profile holds the finished
// member sheet.
func (o *Onboarding) Answer(text string) (reply string, done bool, profile Profile) {
	q := Questions[o.step]
	switch q.Field {
	case "name":
		o.draft.Name = strings.TrimSpace(text)
	case "pronouns":
		o.draft.Pronouns = strings.TrimSpace(text)
	case "birthday":
		o.draft.Birthday = strings.TrimSpace(text)
	case "diagnoses":
		o.draft.Diagnoses = parseList(text)
	case "preferences":
		o.draft.Preferences = parseList(text)
	case "triggers":
		o.draft.Triggers = parseList(text)
	case "favorite_things":
		o.draft.FavoriteThings = parseList(text)
	case "notes":
		o.draft.Notes = strings.TrimSpace(text)
	}

	o.step++
	if o.step < len(Questions) {
		return Questions[o.step].Prompt, false, Profile{}
	}
	return fmt.Sprintf("Family member '%s' added!", o.draft.Name), true, o.draft
}

// parseList splits a comma-separated answer into trimmed non-empty entries.
// The literal "none" (any case) yields an empty list.
func parseList(text string) []string {
	if strings.EqualFold(strings.TrimSpace(text), "none") {
		return []string{}
	}
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
