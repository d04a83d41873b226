package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestTimelineRepository_OrdersByOccurredStable(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()
	at := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	for _, event := range []domain.TimelineEvent{
		{OrderID: "o-1", Type: domain.TimelineOrderStatusChanged, Reason: "Shipped", Occurred: at.Add(2 * time.Minute)},
		{OrderID: "o-1", Type: domain.TimelineOrderPlaced, Occurred: at},
		{OrderID: "o-1", Type: domain.TimelineOrderStatusChanged, Reason: "Confirmed", Occurred: at},
		{OrderID: "o-2", Type: domain.TimelineOrderPlaced, Occurred: at},
	} {
		require.NoError(t, repo.Append(ctx, event))
	}

	got, err := repo.List(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.TimelineOrderPlaced, got[0].Type)
	assert.Equal(t, "Confirmed", got[1].Reason, "equal timestamps keep append order")
	assert.Equal(t, "Shipped", got[2].Reason)

	got[0].Reason = "mutated"
	again, err := repo.List(ctx, "o-1")
	require.NoError(t, err)
	assert.Empty(t, again[0].Reason, "List returns a copy")
}

func TestTimelineRepository_UnknownOrderAndDefaultTime(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()

	empty, err := repo.List(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, repo.Append(ctx, domain.TimelineEvent{OrderID: "o-1", Type: domain.TimelineOrderPlaced}))
	got, err := repo.List(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Occurred.IsZero())
}
