package notifyqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan int, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-timeout:
			t.Fatalf("timed out after %d/%d items", len(out), n)
		}
	}
	return out
}

func TestQueue_BufferedThenLive(t *testing.T) {
	q := New[int](16)
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Add(ctx, i))
	}
	assert.Equal(t, 3, q.Len())

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := q.Stream(sctx)
	require.NoError(t, err)

	go func() {
		for i := 3; i < 6; i++ {
			_ = q.Add(ctx, i)
		}
	}()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, collect(t, ch, 6))
}

func TestQueue_SecondConsumerRejected(t *testing.T) {
	q := New[int](4)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := q.Stream(ctx)
	require.NoError(t, err)

	_, err = q.Stream(context.Background())
	assert.ErrorIs(t, err, ErrConsumerAttached)
}

func TestQueue_DetachRebuffers(t *testing.T) {
	q := New[int](16)
	defer q.Close()
	ctx := context.Background()

	sctx, cancel := context.WithCancel(ctx)
	ch, err := q.Stream(sctx)
	require.NoError(t, err)

	require.NoError(t, q.Add(ctx, 1))
	assert.Equal(t, []int{1}, collect(t, ch, 1))

	cancel()
	for range ch {
	}

	require.NoError(t, q.Add(ctx, 2))
	require.NoError(t, q.Add(ctx, 3))
	assert.Equal(t, 2, q.Len())

	ch2, err := q.Stream(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, collect(t, ch2, 2))
}

func TestQueue_DropOldest(t *testing.T) {
	q := New[int](3)
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Add(ctx, i))
	}
	assert.Equal(t, uint64(2), q.Dropped())

	ch, err := q.Stream(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, collect(t, ch, 3))
}

// 接入与提交并发时，每个通知恰好投递一次
func TestQueue_AttachRaceNoLossNoDup(t *testing.T) {
	const n = 500
	q := New[int](n)
	defer q.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = q.Add(ctx, i)
		}
	}()

	ch, err := q.Stream(ctx)
	require.NoError(t, err)

	got := collect(t, ch, n)
	wg.Wait()

	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueue_Close(t *testing.T) {
	q := New[int](4)
	ch, err := q.Stream(context.Background())
	require.NoError(t, err)

	q.Close()
	q.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, q.Add(context.Background(), 1), ErrClosed)
	_, err = q.Stream(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, q.Len())
}
