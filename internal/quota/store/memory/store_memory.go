// Package memory provides an in-memory CounterStore for tests and
// development. Counts do not survive a restart; production deployments use
// the sqlite, postgres or redis backends.
package memory

import (
	"context"
	"sort"
	"sync"

	"cardmill/internal/quota/models"
	"cardmill/pkg/domain"
)

// Store is an in-memory CounterStore.
type Store struct {
	mu     sync.RWMutex
	counts map[domain.Date]int
}

// New creates an empty in-memory counter store.
func New() *Store {
	return &Store{
		counts: make(map[domain.Date]int),
	}
}

func (s *Store) Get(_ context.Context, date domain.Date) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[date], nil
}

func (s *Store) Set(_ context.Context, date domain.Date, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[date] = count
	return nil
}

func (s *Store) SumUpTo(_ context.Context, date domain.Date) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for d, c := range s.counts {
		if !d.After(date) {
			total += c
		}
	}
	return total, nil
}

func (s *Store) List(_ context.Context) ([]models.CounterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.CounterRecord, 0, len(s.counts))
	for d, c := range s.counts {
		records = append(records, models.CounterRecord{Date: d, Count: c})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}
