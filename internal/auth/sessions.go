package auth

import (
	"context"
	"sync"
	"time"
)

// SessionStore remembers the id of the refresh token currently valid for a
// user. Saving a new id invalidates the previous one.
type SessionStore interface {
	SaveRefresh(ctx context.Context, userID, tokenID string, ttl time.Duration) error
	CurrentRefresh(ctx context.Context, userID string) (string, error) // "" when none
	DeleteRefresh(ctx context.Context, userID string) error
}

type MemorySessions struct {
	mu   sync.Mutex
	byID map[string]memSession
	now  func() time.Time
}

type memSession struct {
	tokenID   string
	expiresAt time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{byID: map[string]memSession{}, now: time.Now}
}

func (m *MemorySessions) SaveRefresh(_ context.Context, userID, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	m.byID[userID] = memSession{tokenID: tokenID, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemorySessions) CurrentRefresh(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[userID]
	if !ok {
		return "", nil
	}
	if m.now().After(s.expiresAt) {
		delete(m.byID, userID)
		return "", nil
	}
	return s.tokenID, nil
}

func (m *MemorySessions) DeleteRefresh(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.byID, userID)
	m.mu.Unlock()
	return nil
}
