// Package ports defines the quota module's store interface, implemented by
// the memory, sqlite, postgres and redis backends.
package ports

import (
	"context"

	"cardmill/internal/quota/models"
	"cardmill/pkg/domain"
)

// CounterStore persists one integer usage counter per calendar date. Every
// Set must be durable before it returns: the gate's correctness depends on
// counts surviving a crash between two requests. Any I/O fault surfaces as a
// storage_unavailable coded error.
type CounterStore interface {
	// Get returns the persisted count for date, or 0 when no record exists.
	Get(ctx context.Context, date domain.Date) (int, error)

	// Set upserts the record for date to count. Idempotent for equal values.
	Set(ctx context.Context, date domain.Date, count int) error

	// SumUpTo returns the sum of counts across all records with date' <= date.
	SumUpTo(ctx context.Context, date domain.Date) (int, error)

	// List returns all counter records in date order.
	List(ctx context.Context) ([]models.CounterRecord, error)
}
