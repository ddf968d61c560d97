// Package companion orchestrates a chat turn: onboarding flows, health
// concern detection, document requests, log recall, and finally the dialogue
// generator, with optional speech synthesis on the way out.
package companion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mcallaghan/moira/internal/brain"
	"github.com/mcallaghan/moira/internal/docs"
	"github.com/mcallaghan/moira/internal/family"
	"github.com/mcallaghan/moira/internal/health"
	"github.com/mcallaghan/moira/internal/memory"
	"github.com/mcallaghan/moira/internal/observability"
	"github.com/mcallaghan/moira/internal/research"
	"github.com/mcallaghan/moira/internal/session"
	"github.com/mcallaghan/moira/internal/store"
	"github.com/mcallaghan/moira/internal/voice"
)

// ErrEmptyMessage is returned when a chat turn arrives with no text.
var ErrEmptyMessage = errors.New("no message provided")

var onboardingTriggers = map[string]bool{
	"add family member":         true,
	"add a family member":       true,
	"new family member":         true,
	"add someone to the family": true,
}

const onboardingOutro = "\nYou can add another family member or ask me about your family anytime!"

// Reply is the outcome of one chat turn.
type Reply struct {
	SessionID string
	Text      string
	AudioFile string
}

// Config holds the tunables of the orchestrator.
type Config struct {
	ContextWindow int
}

// Deps wires the companion to the rest of the service. Synthesizer, Audio and
// Metrics may be nil.
type Deps struct {
	Sessions    *session.Manager
	Registry    *family.Registry
	Tracker     *health.Tracker
	Memory      memory.Store
	DailyLog    *memory.DailyLog
	Research    *research.Library
	Generator   brain.Generator
	Synthesizer voice.Synthesizer
	Audio       *voice.AudioStore
	Documents   *docs.Writer
	Metrics     *observability.Metrics
}

type Companion struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

func New(cfg Config, deps Deps) *Companion {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 5
	}
	return &Companion{cfg: cfg, deps: deps, now: time.Now}
}

// HandleMessage runs one full chat turn and records it in conversation memory
// and the daily log. Synthesis failures degrade to a text-only reply.
func (c *Companion) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	start := c.now()
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyMessage
	}

	s := c.deps.Sessions.GetOrCreate(sessionID)

	response, err := c.respond(ctx, s.ID, text)
	if err != nil {
		return Reply{}, err
	}

	reply := Reply{SessionID: s.ID, Text: response}
	if c.deps.Synthesizer != nil && c.deps.Audio != nil {
		audio, err := c.deps.Synthesizer.Synthesize(ctx, response)
		if err != nil {
			log.Printf("companion: speech synthesis failed, replying text-only: %v", err)
			c.providerError("voice", "synthesize")
		} else if name, err := c.deps.Audio.Write(audio, c.now()); err != nil {
			log.Printf("companion: audio write failed, replying text-only: %v", err)
		} else {
			reply.AudioFile = name
		}
	}

	turn := memory.Turn{
		Timestamp: c.now().Format(store.TimeLayout),
		User:      text,
		Assistant: response,
	}
	if err := c.deps.Memory.AppendTurn(ctx, turn); err != nil {
		return Reply{}, fmt.Errorf("record turn: %w", err)
	}
	c.deps.DailyLog.Append(turn)

	if m := c.deps.Metrics; m != nil {
		m.ChatTurns.Inc()
		m.ObserveReplyLatency(c.now().Sub(start))
	}
	return reply, nil
}

func (c *Companion) respond(ctx context.Context, sessionID, text string) (string, error) {
	if c.deps.Sessions.InOnboarding(sessionID) {
		return c.answerOnboarding(sessionID, text)
	}
	if onboardingTriggers[strings.ToLower(strings.TrimSpace(text))] {
		question, err := c.deps.Sessions.BeginOnboarding(sessionID)
		if err != nil {
			return "", err
		}
		if m := c.deps.Metrics; m != nil {
			m.ActiveOnboarding.Inc()
		}
		return question, nil
	}

	var notice string
	if det, ok := c.deps.Tracker.Detect(text); ok {
		if _, err := c.deps.Tracker.Open(det.Patient, det.Description); err != nil {
			return "", fmt.Errorf("open health issue: %w", err)
		}
		if m := c.deps.Metrics; m != nil {
			m.HealthOpened.Inc()
		}
		notice = fmt.Sprintf("Health concern detected for %s (keywords: %s). I've logged this in the health buffer.\n\n",
			det.Patient, strings.Join(det.Keywords, ", "))
	}

	response, handled, err := c.documentRequest(ctx, text)
	if err != nil {
		return "", err
	}
	if !handled {
		response, handled = c.logRecall(text)
	}
	if !handled {
		response, err = c.generate(ctx, text)
		if err != nil {
			return "", err
		}
	}
	return notice + response, nil
}

func (c *Companion) answerOnboarding(sessionID, text string) (string, error) {
	reply, done, profile, err := c.deps.Sessions.AnswerOnboarding(sessionID, text)
	if err != nil {
		return "", err
	}
	if !done {
		return reply, nil
	}
	if err := c.deps.Registry.Save(profile); err != nil {
		return "", fmt.Errorf("save family profile: %w", err)
	}
	if m := c.deps.Metrics; m != nil {
		m.ActiveOnboarding.Dec()
	}
	return reply + onboardingOutro, nil
}

// logRecall answers "remember what we talked about ..." questions from the
// archived daily logs.
func (c *Companion) logRecall(text string) (string, bool) {
	date, ok := c.deps.DailyLog.ResolveDate(text, c.now())
	if !ok {
		return "", false
	}
	content, err := c.deps.DailyLog.Retrieve(date)
	if err != nil {
		if errors.Is(err, memory.ErrNoLog) {
			return fmt.Sprintf("I'm sorry, I couldn't find any logs for %s.", date), true
		}
		log.Printf("companion: read daily log %s: %v", date, err)
		return fmt.Sprintf("I'm sorry, I couldn't find any logs for %s.", date), true
	}
	return fmt.Sprintf("Here is what we talked about on %s (summary or full log):\n\n%s", date, content), true
}

func (c *Companion) generate(ctx context.Context, text string) (string, error) {
	history, err := c.deps.Memory.Recent(ctx, c.cfg.ContextWindow)
	if err != nil {
		return "", fmt.Errorf("load conversation context: %w", err)
	}
	exchanges := make([]brain.Exchange, 0, len(history))
	for _, t := range history {
		exchanges = append(exchanges, brain.Exchange{User: t.User, Assistant: t.Assistant})
	}

	var snippets []string
	if c.deps.Research != nil {
		snippets = c.deps.Research.Snippets()
	}

	response, err := c.deps.Generator.Reply(ctx, brain.Request{
		SystemPrompt:    Persona,
		ResearchContext: snippets,
		History:         exchanges,
		UserText:        text,
	})
	if err != nil {
		c.providerError("brain", "reply")
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return response, nil
}

func (c *Companion) providerError(provider, code string) {
	if m := c.deps.Metrics; m != nil {
		m.ProviderErrors.WithLabelValues(provider, code).Inc()
	}
}
