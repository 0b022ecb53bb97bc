package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmill/pkg/domain"
)

func TestStore_GetMissingReturnsZero(t *testing.T) {
	store := New()
	ctx := context.Background()

	count, err := store.Get(ctx, domain.MustParseDate("2023-12-27"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_SetIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()
	date := domain.MustParseDate("2023-12-27")

	require.NoError(t, store.Set(ctx, date, 5))
	require.NoError(t, store.Set(ctx, date, 5))

	count, err := store.Get(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestStore_SumUpTo(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))
	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-25"), 10))
	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-28"), 3))

	sum, err := store.SumUpTo(ctx, domain.MustParseDate("2023-12-26"))
	require.NoError(t, err)
	assert.Equal(t, 82, sum)

	// Boundary date is inclusive.
	sum, err = store.SumUpTo(ctx, domain.MustParseDate("2023-12-28"))
	require.NoError(t, err)
	assert.Equal(t, 85, sum)

	sum, err = store.SumUpTo(ctx, domain.MustParseDate("2023-12-01"))
	require.NoError(t, err)
	assert.Equal(t, 0, sum)
}

func TestStore_ListSortedByDate(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-28"), 3))
	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.MustParseDate("2023-12-19"), records[0].Date)
	assert.Equal(t, domain.MustParseDate("2023-12-28"), records[1].Date)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := New()
	ctx := context.Background()
	date := domain.MustParseDate("2023-12-27")

	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			_ = store.Set(ctx, date, n)
			_, _ = store.Get(ctx, date)
			_, _ = store.SumUpTo(ctx, date)
		}(i)
	}
	wg.Wait()

	// No exact final value is guaranteed here; the race detector verifies
	// the store itself is safe. Serialized increments are the gate's job.
	count, err := store.Get(ctx, date)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 0)
	assert.Less(t, count, goroutines)
}
