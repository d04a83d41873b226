package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestCleanupWorker_DeleteExpired_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := repo.CreateProcessing(ctx, fmt.Sprintf("old-%d", i), "hash", now.Add(-time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing(ctx, "fresh", "hash", now.Add(time.Hour))
	require.NoError(t, err)

	worker := NewCleanupWorker(repo, WithBatchSize(2), WithCleanupMetrics(metrics.NewCleanupMetrics(prometheus.NewRegistry())))
	deleted, err := worker.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	_, err = repo.Get(ctx, "fresh")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "old-0")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	repo := &scriptedRepo{results: []int{2, 2, 1}}

	worker := NewCleanupWorker(repo, WithBatchSize(2))
	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())

	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.calls())
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	repo := &scriptedRepo{results: []int{10}, errs: []error{nil, errors.New("boom")}}

	worker := NewCleanupWorker(repo, WithBatchSize(10))
	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())

	require.Error(t, err)
	assert.Equal(t, 10, deleted, "already deleted batches are reported")
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	repo := &scriptedRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

// scriptedRepo возвращает заранее заданные результаты DeleteExpired.
type scriptedRepo struct {
	domain.IdempotencyRepository

	mu      sync.Mutex
	results []int
	errs    []error
	count   int
}

func (s *scriptedRepo) DeleteExpired(context.Context, time.Time, int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	n := s.results[0]
	s.results = s.results[1:]
	return n, nil
}

func (s *scriptedRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
