package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignite/crm-import/internal/domain"
)

// MemoryStore keeps sessions in process. Sessions are stored as JSON so a
// caller never shares pointers with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	files    map[string]string
	progress map[string]domain.UploadProgress
	locks    map[string]chan struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		files:    make(map[string]string),
		progress: make(map[string]domain.UploadProgress),
		locks:    make(map[string]chan struct{}),
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	m.mu.Lock()
	m.sessions[s.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	data, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.files, id)
	delete(m.progress, id)
	return nil
}

func (m *MemoryStore) SaveFile(_ context.Context, id, text string) error {
	m.mu.Lock()
	m.files[id] = text
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) LoadFile(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.files[id]
	if !ok {
		return "", ErrNoFile
	}
	return text, nil
}

func (m *MemoryStore) SaveProgress(_ context.Context, id string, p domain.UploadProgress) error {
	m.mu.Lock()
	m.progress[id] = p
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) LoadProgress(_ context.Context, id string) (domain.UploadProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.progress[id]; ok {
		return p, nil
	}
	return domain.UploadProgress{State: domain.UploadIdle}, nil
}

// Lock takes a per-session lock local to this process.
func (m *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	m.mu.Lock()
	ch, ok := m.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[id] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrLocked, ctx.Err())
	}
}
