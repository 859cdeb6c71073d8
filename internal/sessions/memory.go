package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/relay/pkg/models"
)

// MemoryStore is an in-memory Store for tests and ephemeral local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*models.Session{}}
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, key string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.getOrCreateLocked(key)
	return cloneSession(session), nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, key string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return cloneHistory(session.History), nil
}

func (m *MemoryStore) GetSummary(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[key]
	if !ok {
		return "", nil
	}
	return session.Summary, nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, key string, role models.Role, content string) error {
	return m.AddFullMessage(ctx, key, models.Message{Role: role, Content: content})
}

func (m *MemoryStore) AddFullMessage(ctx context.Context, key string, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.getOrCreateLocked(key)
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	session.History = append(session.History, msg)
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) TruncateHistory(ctx context.Context, key string, keepLastN int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[key]
	if !ok || keepLastN < 0 {
		return nil
	}
	if len(session.History) > keepLastN {
		tail := session.History[len(session.History)-keepLastN:]
		session.History = append([]models.Message(nil), tail...)
		session.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) SetSummary(ctx context.Context, key string, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.getOrCreateLocked(key)
	session.Summary = summary
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Save(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[key]; ok {
		session.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) getOrCreateLocked(key string) *models.Session {
	session, ok := m.sessions[key]
	if !ok {
		session = &models.Session{Key: key, UpdatedAt: time.Now()}
		m.sessions[key] = session
	}
	return session
}

func cloneSession(s *models.Session) *models.Session {
	clone := *s
	clone.History = cloneHistory(s.History)
	return &clone
}

func cloneHistory(history []models.Message) []models.Message {
	if history == nil {
		return nil
	}
	return append([]models.Message(nil), history...)
}
