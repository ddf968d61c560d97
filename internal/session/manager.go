// Package session tracks per-visitor chat sessions and the onboarding state
// scoped to them.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcallaghan/moira/internal/family"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrNotOnboarding = errors.New("session is not onboarding")
)

// Session is one visitor's conversation context. Onboarding, when non-nil,
// holds the in-progress member flow; it is dropped unpersisted if the
// session ends or expires first.
type Session struct {
	ID             string    `json:"session_id"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	onboarding *family.Onboarding
}

type Manager struct {
	mu                sync.Mutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create() *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

// GetOrCreate resolves an existing active session or mints a fresh one when
// the ID is unknown, expired, or empty.
func (m *Manager) GetOrCreate(sessionID string) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok && s.Status == StatusActive {
		s.LastActivityAt = time.Now().UTC()
		out := clone(s)
		m.mu.Unlock()
		return out
	}
	m.mu.Unlock()
	return m.Create()
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.onboarding = nil
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

// BeginOnboarding starts the member flow on a session and returns the first
// question. Restarting replaces any half-finished flow.
func (m *Manager) BeginOnboarding(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	s.onboarding = family.NewOnboarding()
	s.LastActivityAt = time.Now().UTC()
	return s.onboarding.FirstQuestion(), nil
}

// InOnboarding reports whether the session has a flow mid-progress.
func (m *Manager) InOnboarding(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return ok && s.onboarding != nil
}

// AnswerOnboarding feeds one answer to the session's flow. On completion the
// session leaves onboarding and the finished profile is returned for the
// caller to persist.
func (m *Manager) AnswerOnboarding(sessionID, text string) (reply string, done bool, profile family.Profile, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false, family.Profile{}, ErrNotFound
	}
	if s.onboarding == nil {
		return "", false, family.Profile{}, ErrNotOnboarding
	}
	s.LastActivityAt = time.Now().UTC()
	reply, done, profile = s.onboarding.Answer(text)
	if done {
		s.onboarding = nil
	}
	return reply, done, profile, nil
}

// OnboardingCount reports how many sessions are mid-flow.
func (m *Manager) OnboardingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.sessions {
		if s.onboarding != nil {
			count++
		}
	}
	return count
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

// StartJanitor expires inactive sessions in the background. An expired
// session abandons any in-progress onboarding without persisting it.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			delete(m.sessions, id)
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.onboarding = nil
		s.LastActivityAt = now
		expired = append(expired, clone(s))
		delete(m.sessions, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	c.onboarding = nil
	return &c
}
