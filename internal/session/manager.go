package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager layers session lifecycle rules over a Repository.
type Manager struct {
	repo       Repository
	ttl        time.Duration
	maxHistory int
	now        func() time.Time
	logger     *zap.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithTTL sets how long saved sessions live.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithMaxHistory caps the stored history length.
func WithMaxHistory(n int) ManagerOption {
	return func(m *Manager) { m.maxHistory = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over repo.
func NewManager(repo Repository, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		repo:       repo,
		ttl:        DefaultTTL,
		maxHistory: MaxHistory,
		now:        time.Now,
		logger:     logger,
	}
	for _, o := range opts {
		o(m)
	}
	if m.maxHistory <= 0 {
		m.maxHistory = MaxHistory
	}
	return m
}

// GetOrCreate loads the user's session, creating and saving a fresh one
// when none exists. The bool is true when the session is new.
func (m *Manager) GetOrCreate(ctx context.Context, userID int64) (*Session, bool, error) {
	s, err := m.repo.Get(ctx, userID)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("load session: %w", err)
	}

	s = New(userID, m.now())
	if err := m.repo.Save(ctx, s, m.ttl); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	m.logger.Debug("session created", zap.Int64("user_id", userID), zap.String("session_id", s.ID))
	return s, true, nil
}

// AddMessage appends an entry to the history, drops the oldest entries
// beyond the cap and saves the session.
func (m *Manager) AddMessage(ctx context.Context, s *Session, role Role, content string) error {
	s.History = append(s.History, Message{Role: role, Content: content, At: m.now()})
	if over := len(s.History) - m.maxHistory; over > 0 {
		s.History = append(s.History[:0:0], s.History[over:]...)
	}
	return m.Update(ctx, s)
}

// Update stamps and saves the session, refreshing its TTL.
func (m *Manager) Update(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.now()
	if err := m.repo.Save(ctx, s, m.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Reset discards the user's session.
func (m *Manager) Reset(ctx context.Context, userID int64) error {
	if err := m.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// Cleanup removes sessions idle for longer than maxAge.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := m.repo.Cleanup(ctx, maxAge)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	if n > 0 {
		m.logger.Info("expired sessions removed", zap.Int("count", n))
	}
	return n, nil
}
