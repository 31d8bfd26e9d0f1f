package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryRepository is a Repository held in process memory. Entries expire
// lazily on read and eagerly on Cleanup.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	now     func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[int64]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the user's session, or ErrNotFound when it is
// missing or expired.
func (r *MemoryRepository) Get(_ context.Context, userID int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt) {
		delete(r.entries, userID)
		return nil, ErrNotFound
	}
	return clone(e.session), nil
}

// Save stores a copy of s. A ttl of zero or less never expires.
func (r *MemoryRepository) Save(_ context.Context, s *Session, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := memoryEntry{session: clone(s)}
	if ttl > 0 {
		e.expiresAt = r.now().Add(ttl)
	}
	r.entries[s.UserID] = e
	return nil
}

// Delete removes the user's session. Deleting a missing session is a no-op.
func (r *MemoryRepository) Delete(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
	return nil
}

// Cleanup drops expired sessions and, when maxAge is positive, sessions
// not updated within maxAge. It returns how many were removed.
func (r *MemoryRepository) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, e := range r.entries {
		expired := !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
		stale := maxAge > 0 && now.Sub(e.session.UpdatedAt) > maxAge
		if expired || stale {
			delete(r.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired or not.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// clone copies the session so callers cannot mutate stored state.
func clone(s *Session) *Session {
	c := *s
	c.History = append([]Message(nil), s.History...)
	if s.Placement != nil {
		p := *s.Placement
		p.Questions = append(p.Questions[:0:0], s.Placement.Questions...)
		p.Answers = append(p.Answers[:0:0], s.Placement.Answers...)
		c.Placement = &p
	}
	return &c
}
