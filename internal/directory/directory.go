package directory

import (
	"context"
	"sort"
	"sync"
)

// Directory tracks which responders are currently available per service
// category. The matching coordinator reads it at the start of a round
// and the handshake removes the winner on acceptance.
type Directory interface {
	ListAvailable(ctx context.Context, category string) ([]string, error)
	MarkAvailable(ctx context.Context, responderID, category string) error
	MarkUnavailable(ctx context.Context, responderID, category string) error
}

// Memory is the in-process Directory used for local runs and tests.
type Memory struct {
	mu         sync.RWMutex
	categories map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{categories: make(map[string]map[string]struct{})}
}

func (m *Memory) ListAvailable(ctx context.Context, category string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.categories[category]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) MarkAvailable(ctx context.Context, responderID, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.categories[category]
	if !ok {
		set = make(map[string]struct{})
		m.categories[category] = set
	}
	set[responderID] = struct{}{}
	return nil
}

func (m *Memory) MarkUnavailable(ctx context.Context, responderID, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.categories[category]; ok {
		delete(set, responderID)
	}
	return nil
}
