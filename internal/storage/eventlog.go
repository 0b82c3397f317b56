package storage

import (
	"sync"

	"github.com/example/service-matching/internal/models"
)

// EventLog persists engagement lifecycle events on behalf of the
// external job ledger. The matching engine never reads it back.
type EventLog interface {
	Append(ev models.EngagementEvent) error
}

type MemoryLog struct {
	mu     sync.RWMutex
	events []models.EngagementEvent
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Append(ev models.EngagementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryLog) Events() []models.EngagementEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.EngagementEvent, len(m.events))
	copy(out, m.events)
	return out
}
