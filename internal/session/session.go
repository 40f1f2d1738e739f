package session

import (
	"context"
	"sync"
	"time"

	"github.com/stanley20008love/lark-proxyss/internal/llm"
)

const (
	DefaultTTL  = 24 * time.Hour
	MaxMessages = 20 // ten rounds
)

type entry struct {
	messages  []llm.Message
	updatedAt time.Time
}

// Manager keeps per-chat conversation history in memory. A history idle
// for longer than the TTL is dropped on the next read.
type Manager struct {
	mu    sync.Mutex
	store map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		store: make(map[string]entry),
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (s *Manager) GetHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history(sessionID), nil
}

// history returns a copy of the live messages for sessionID. s.mu must be
// held.
func (s *Manager) history(sessionID string) []llm.Message {
	e, ok := s.store[sessionID]
	if !ok {
		return []llm.Message{}
	}
	if s.now().Sub(e.updatedAt) > s.ttl {
		delete(s.store, sessionID)
		return []llm.Message{}
	}
	out := make([]llm.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Append adds msgs to the history, keeping the newest MaxMessages.
func (s *Manager) Append(ctx context.Context, sessionID string, msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.history(sessionID), msgs...)
	if len(history) > MaxMessages {
		history = history[len(history)-MaxMessages:]
	}
	s.store[sessionID] = entry{messages: history, updatedAt: s.now()}
}

func (s *Manager) Clear(ctx context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.store, sessionID)
	s.mu.Unlock()
}
