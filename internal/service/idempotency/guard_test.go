package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestRequestHash(t *testing.T) {
	a := RequestHash("POST /api/orders", []byte(`{"a":1}`))
	b := RequestHash("POST /api/orders", []byte(`{"a":1}`))
	c := RequestHash("POST /api/orders", []byte(`{"a":2}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestGuard_ReplaysStoredResponse(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)

	resp, err := guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)
	require.Nil(t, resp)

	guard.Finish(ctx, "k1", http.StatusCreated, []byte(`{"id":"o1"}`))

	resp, err = guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"id":"o1"}`, string(resp.Body))
}

func TestGuard_ReplaysStoredFailure(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)

	_, err := guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)
	guard.Finish(ctx, "k1", http.StatusBadRequest, []byte(`{"message":"no items"}`))

	resp, err := guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestGuard_ServerErrorReleasesKey(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	guard := NewGuard(repo, time.Hour, nil)

	_, err := guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)
	guard.Finish(ctx, "k1", http.StatusInternalServerError, []byte(`{"message":"Something went wrong"}`))

	_, err = repo.Get(ctx, "k1")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	resp, err := guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Nil(t, resp, "retry after 5xx must run the request again")
}

func TestGuard_ReleaseFreesProcessingKey(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)

	_, err := guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)
	guard.Release(ctx, "k1")
	guard.Release(ctx, "k1")

	resp, err := guard.Begin(ctx, "k1", "other")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestGuard_Conflicts(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)

	_, err := guard.Begin(ctx, "k1", "h1")
	require.NoError(t, err)

	_, err = guard.Begin(ctx, "k1", "h1")
	require.ErrorIs(t, err, domain.ErrIdempotencyInProgress)

	_, err = guard.Begin(ctx, "k1", "other")
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestGuard_RejectsEmptyKey(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)

	_, err := guard.Begin(context.Background(), " ", "h1")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
}
