package lead

import (
	"context"
	"sync"

	"github.com/google/uuid"

	qerrors "lawnquote/pkg/errors"
)

// MemoryStore keeps leads in process. Used when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	leads map[uuid.UUID]Lead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leads: make(map[uuid.UUID]Lead)}
}

func (m *MemoryStore) SaveLead(_ context.Context, l *Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[l.ID] = *l
	return nil
}

func (m *MemoryStore) GetLead(_ context.Context, id uuid.UUID) (*Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, qerrors.NewNotFoundError("lead", id.String())
	}
	return &l, nil
}

// Len returns the number of stored leads.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leads)
}
