package idempotency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-shopping-assistant-be/pkg/idempotency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGuard_FirstSeen(t *testing.T) {
	ctx := context.Background()

	t.Run("second delivery is a duplicate", func(t *testing.T) {
		g := idempotency.NewCacheGuard()
		first, err := g.FirstSeen(ctx, "msg_1", time.Minute)
		require.NoError(t, err)
		assert.True(t, first)

		again, err := g.FirstSeen(ctx, "msg_1", time.Minute)
		require.NoError(t, err)
		assert.False(t, again)

		other, err := g.FirstSeen(ctx, "msg_2", time.Minute)
		require.NoError(t, err)
		assert.True(t, other)
	})

	t.Run("key is forgotten after ttl", func(t *testing.T) {
		g := idempotency.NewCacheGuard()
		_, err := g.FirstSeen(ctx, "msg_1", 10*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
		again, err := g.FirstSeen(ctx, "msg_1", time.Minute)
		require.NoError(t, err)
		assert.True(t, again)
	})

	t.Run("concurrent callers see one winner", func(t *testing.T) {
		g := idempotency.NewCacheGuard()
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := g.FirstSeen(ctx, "same", time.Minute); ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})
}
