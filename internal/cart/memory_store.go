package cart

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs without Redis.
type MemoryStore struct {
	mu       sync.Mutex
	carts    map[string]Cart
	removals map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[string]Cart{}, removals: map[string]int{}}
}

func (s *MemoryStore) Current(_ context.Context, clientID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.carts[clientID]
	return Cart{Lines: c.Snapshot()}, nil
}

func (s *MemoryStore) Replace(_ context.Context, clientID string, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[clientID] = Cart{Lines: c.Snapshot()}
	return nil
}

func (s *MemoryStore) RemoveOrdered(_ context.Context, clientID string, ordered []Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	left := s.carts[clientID].Without(ordered)
	if left.IsEmpty() {
		delete(s.carts, clientID)
	} else {
		s.carts[clientID] = left
	}
	s.removals[clientID]++
	return nil
}

// Removals reports how many orders were taken out of the client's cart.
func (s *MemoryStore) Removals(clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removals[clientID]
}
