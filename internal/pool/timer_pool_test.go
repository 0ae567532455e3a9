package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	t.Run("reuse fires after new duration", func(t *testing.T) {
		require := require.New(t)

		timer := GetTimer(100 * time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		PutTimer(timer)

		begin := time.Now()
		timer = GetTimer(150 * time.Millisecond)
		defer PutTimer(timer)

		select {
		case fired := <-timer.C:
			require.GreaterOrEqual(fired.Sub(begin), 130*time.Millisecond)
		case <-time.After(time.Second):
			t.Fatal("timer did not fire")
		}
	})

	t.Run("concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	t.Run("elapsed", func(t *testing.T) {
		require := require.New(t)

		begin := time.Now()
		require.NoError(Sleep(context.Background(), 20*time.Millisecond))
		require.GreaterOrEqual(time.Since(begin), 20*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		require := require.New(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		begin := time.Now()
		require.ErrorIs(Sleep(ctx, time.Minute), context.Canceled)
		require.Less(time.Since(begin), time.Second)
	})

	t.Run("non-positive duration", func(t *testing.T) {
		require.NoError(t, Sleep(context.Background(), 0))
	})
}
