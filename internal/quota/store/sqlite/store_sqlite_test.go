package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmill/internal/platform/database"
	"cardmill/pkg/domain"
	dErrors "cardmill/pkg/domain-errors"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()

	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := New(db)
	require.NoError(t, err)
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "usage.db"))
	ctx := context.Background()
	date := domain.MustParseDate("2023-12-27")

	count, err := store.Get(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "missing record reads as zero")

	require.NoError(t, store.Set(ctx, date, 1))
	require.NoError(t, store.Set(ctx, date, 2))

	count, err = store.Get(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_SumUpTo(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "usage.db"))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))
	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-25"), 40))
	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-28"), 5))

	sum, err := store.SumUpTo(ctx, domain.MustParseDate("2023-12-25"))
	require.NoError(t, err)
	assert.Equal(t, 112, sum)

	sum, err = store.SumUpTo(ctx, domain.MustParseDate("2023-12-01"))
	require.NoError(t, err)
	assert.Equal(t, 0, sum, "empty range sums to zero, not NULL")
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "usage.db"))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-28"), 5))
	require.NoError(t, store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.MustParseDate("2023-12-19"), records[0].Date)
	assert.Equal(t, 72, records[0].Count)
}

// Counts must survive reopening the database file: the quota gate's restart
// durability depends on it.
func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	ctx := context.Background()
	date := domain.MustParseDate("2023-12-27")

	store := newTestStore(t, path)
	require.NoError(t, store.Set(ctx, date, 3))

	reopened := newTestStore(t, path)
	count, err := reopened.Get(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_ClosedDBSurfacesStorageUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	ctx := context.Background()

	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	store, err := New(db)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = store.Get(ctx, domain.MustParseDate("2023-12-27"))
	assert.True(t, dErrors.Has(err, dErrors.CodeStorageUnavailable))

	err = store.Set(ctx, domain.MustParseDate("2023-12-27"), 1)
	assert.True(t, dErrors.Has(err, dErrors.CodeStorageUnavailable))
}
