package session

import (
	"context"
	"encoding/json"
	"sync"
)

// memoryStore is an in-process Store used in tests and single-node setups.
type memoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore returns an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{states: map[string][]byte{}}
}

func (m *memoryStore) Load(_ context.Context, userID string) (*State, error) {
	m.mu.RLock()
	data, ok := m.states[userID]
	m.mu.RUnlock()
	if !ok {
		return &State{UserID: userID}, nil
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return &State{UserID: userID}, nil
	}
	return &state, nil
}

func (m *memoryStore) Save(_ context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.states[state.UserID] = data
	m.mu.Unlock()
	return nil
}
