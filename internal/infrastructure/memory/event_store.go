package memory

import (
	"context"
	"sync"

	domain "github.com/bizshop/storefront/internal/domain/payment"
)

// ProcessedEventStore remembers applied gateway payment ids. Insert acts as
// the idempotency gate for webhook replays.
type ProcessedEventStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewProcessedEventStore() *ProcessedEventStore {
	return &ProcessedEventStore{
		seen: make(map[string]struct{}),
	}
}

func (s *ProcessedEventStore) Insert(ctx context.Context, paymentID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[paymentID]; ok {
		return domain.ErrEventProcessed
	}
	s.seen[paymentID] = struct{}{}
	return nil
}

func (s *ProcessedEventStore) Delete(ctx context.Context, paymentID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.seen, paymentID)
	return nil
}
