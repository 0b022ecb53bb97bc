package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmill/internal/audit"
	"cardmill/internal/audit/store/memory"
)

func TestListRecentReturnsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	base := time.Date(2023, time.December, 27, 10, 0, 0, 0, time.UTC)
	for i, action := range []audit.Action{
		audit.ActionGenerationGranted,
		audit.ActionGenerationDenied,
		audit.ActionQuotaReset,
	} {
		require.NoError(t, store.Append(ctx, audit.Event{
			ID:        uuid.New(),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Action:    action,
		}))
	}

	events, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionQuotaReset, events[0].Action)
	assert.Equal(t, audit.ActionGenerationDenied, events[1].Action)
}

func TestListRecentEmptyStore(t *testing.T) {
	events, err := memory.New().ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
