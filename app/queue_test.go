package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderQueue_FIFO(t *testing.T) {
	q := NewOrderQueue(8, NewMetrics())
	ctx := context.Background()

	ids := []uuid.UUID{uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(ctx, id))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range ids {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestOrderQueue_EnqueueBlocksWhenFull(t *testing.T) {
	q := NewOrderQueue(1, NewMetrics())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, uuid.Must(uuid.NewV7())))

	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(blockedCtx, uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Space frees up after a dequeue.
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, uuid.Must(uuid.NewV7())))
}

func TestOrderQueue_DequeueRespectsContext(t *testing.T) {
	q := NewOrderQueue(1, NewMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrderQueue_TryDequeue(t *testing.T) {
	q := NewOrderQueue(1, NewMetrics())

	_, ok := q.TryDequeue()
	assert.False(t, ok)

	id := uuid.Must(uuid.NewV7())
	require.NoError(t, q.Enqueue(context.Background(), id))
	got, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
