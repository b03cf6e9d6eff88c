package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"microconfig-service/internal/model"
)

func TestRequestRepositoryLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRequestRepository(10, zaptest.NewLogger(t))

	record := model.NewRequestRecord(model.RequestKindRead, "Radio>Channel", "Channel", []string{"1", "2"})
	require.NoError(t, repo.Create(ctx, record))
	assert.Error(t, repo.Create(ctx, record), "duplicate id")

	record.Complete(model.RequestStatusSuccess, []string{"Channel: 7"}, nil, record.QueuedAt.Add(40*time.Millisecond))
	require.NoError(t, repo.Update(ctx, record))

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusSuccess, got.Status)
	assert.Equal(t, []string{"Channel: 7"}, got.Lines)
	require.NotNil(t, got.DurationMs)
	assert.Equal(t, int64(40), *got.DurationMs)

	got.Lines[0] = "mutated"
	again, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Channel: 7", again.Lines[0], "records are copied out")
}

func TestRequestRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo := NewRequestRepository(10, zaptest.NewLogger(t))
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrRequestNotFound))

	err = repo.Update(context.Background(), model.NewRequestRecord(model.RequestKindWrite, "", "write", nil))
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRequestRepositoryEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRequestRepository(2, zaptest.NewLogger(t))

	first := model.NewRequestRecord(model.RequestKindRead, "a", "a", []string{"1"})
	second := model.NewRequestRecord(model.RequestKindRead, "b", "b", []string{"2"})
	third := model.NewRequestRecord(model.RequestKindRead, "c", "c", []string{"3"})
	for _, r := range []*model.RequestRecord{first, second, third} {
		require.NoError(t, repo.Create(ctx, r))
	}

	_, err := repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	list, total, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"c", "b"}, []string{list[0].Path, list[1].Path})
}

func TestRequestRepositoryListFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRequestRepository(100, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		r := model.NewRequestRecord(model.RequestKindRead, "Radio>Channel", "Channel", []string{"1"})
		r.Complete(model.RequestStatusSuccess, nil, nil, r.QueuedAt)
		require.NoError(t, repo.Create(ctx, r))
	}
	write := model.NewRequestRecord(model.RequestKindWrite, "", "write", []string{"1"})
	require.NoError(t, repo.Create(ctx, write))

	kind := model.RequestKindRead
	list, total, err := repo.List(ctx, &RequestFilter{Kind: &kind, Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, list, 2)

	status := model.RequestStatusQueued
	list, total, err = repo.List(ctx, &RequestFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, write.ID, list[0].ID)

	list, total, err = repo.List(ctx, &RequestFilter{Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Empty(t, list)

	stats, err := repo.GetRequestStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalRequests)
	assert.Equal(t, 5, stats.Successful)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 5, stats.ByKind[model.RequestKindRead])
}
