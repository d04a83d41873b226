package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newIdempotencyRepoAt(now *time.Time) *IdempotencyRepository {
	repo := NewIdempotencyRepository()
	repo.now = func() time.Time { return *now }
	return repo
}

func TestIdempotencyRepository_Claim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(&now)

	rec, err := repo.CreateProcessing(ctx, " u-1:k1 ", "h1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "u-1:k1", rec.Key, "key is trimmed")
	assert.Equal(t, domain.IdempotencyStatusProcessing, rec.Status)
	assert.Equal(t, now, rec.CreatedAt)

	_, err = repo.CreateProcessing(ctx, "u-1:k1", "h1", now.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	existing, err := repo.CreateProcessing(ctx, "u-1:k1", "h2", now.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	assert.Equal(t, "h1", existing.RequestHash, "conflict returns the stored record")

	_, err = repo.CreateProcessing(ctx, "", "h1", time.Time{})
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(ctx, "k", " ", time.Time{})
	assert.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
}

func TestIdempotencyRepository_DefaultTTLAndReclaim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(&now)

	rec, err := repo.CreateProcessing(ctx, "k", "old", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, now.Add(defaultIdempotencyTTL), rec.TTLAt)

	now = rec.TTLAt
	rec, err = repo.CreateProcessing(ctx, "k", "new", now.Add(time.Minute))
	require.NoError(t, err, "expired key is claimable before cleanup")
	assert.Equal(t, "new", rec.RequestHash)
}

func TestIdempotencyRepository_FinishStoresResponse(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(&now)

	_, err := repo.CreateProcessing(ctx, "ok", "h", now.Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.CreateProcessing(ctx, "bad", "h", now.Add(time.Hour))
	require.NoError(t, err)

	body := []byte(`{"_id":"o-1"}`)
	now = now.Add(time.Second)
	require.NoError(t, repo.MarkDone(ctx, "ok", body, 201))
	require.NoError(t, repo.MarkFailed(ctx, "bad", []byte(`{"message":"x"}`), 400))
	body[0] = '['

	done, err := repo.Get(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, done.Status)
	assert.Equal(t, 201, done.HTTPStatus)
	assert.JSONEq(t, `{"_id":"o-1"}`, string(done.ResponseBody), "stored body is a copy")
	assert.Equal(t, now, done.UpdatedAt)

	failed, err := repo.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusFailed, failed.Status)

	assert.ErrorIs(t, repo.MarkDone(ctx, "missing", nil, 200), domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyRepository_DeleteReleasesKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(&now)

	_, err := repo.CreateProcessing(ctx, "k", "h", now.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, " k "))
	require.NoError(t, repo.Delete(ctx, "k"), "missing key is not an error")
	require.ErrorIs(t, repo.Delete(ctx, ""), domain.ErrIdempotencyKeyRequired)

	rec, err := repo.CreateProcessing(ctx, "k", "other", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusProcessing, rec.Status)
}

func TestIdempotencyRepository_DeleteExpiredOldestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(&now)

	for key, ttl := range map[string]time.Duration{
		"old":    -3 * time.Hour,
		"older":  -5 * time.Hour,
		"recent": -time.Minute,
		"alive":  time.Hour,
	} {
		_, err := repo.CreateProcessing(ctx, key, "h", now.Add(ttl))
		require.NoError(t, err)
	}

	removed, err := repo.DeleteExpired(ctx, now, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = repo.Get(ctx, "older")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "recent")
	assert.NoError(t, err, "batch limit leaves the newest expired key")

	removed, err = repo.DeleteExpired(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = repo.Get(ctx, "alive")
	assert.NoError(t, err)
}
