package store

import "sync"

// MemoryStore is a process-local Store, used by tests and `memory.type: memory`.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]History
	snapshots map[string]map[string]string
	states    map[string]SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]History),
		snapshots: make(map[string]map[string]string),
		states:    make(map[string]SessionState),
	}
}

func (m *MemoryStore) SaveStep(sessionID string, rec StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.records[sessionID]
	if !ok {
		h = make(History)
		m.records[sessionID] = h
	}
	h[rec.Step] = rec
	return nil
}

func (m *MemoryStore) History(sessionID string) (History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(History, len(m.records[sessionID]))
	for k, v := range m.records[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveSnapshot(sessionID, source, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots[sessionID] == nil {
		m.snapshots[sessionID] = make(map[string]string)
	}
	m.snapshots[sessionID][source] = data
	return nil
}

func (m *MemoryStore) Snapshot(sessionID, source string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.snapshots[sessionID][source]
	return data, ok, nil
}

func (m *MemoryStore) SetState(sessionID string, state SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = state
	return nil
}

func (m *MemoryStore) State(sessionID string) (SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[sessionID]
	if !ok {
		return SessionState{Status: StatusNotStarted}, nil
	}
	return state, nil
}

func (m *MemoryStore) Reset(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sessionID)
	delete(m.snapshots, sessionID)
	delete(m.states, sessionID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
