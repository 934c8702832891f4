package fetch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterPacesRequests(t *testing.T) {
	l := NewLimiter(20*time.Millisecond, 1000)

	start := time.Now()
	l.Wait(0) // first request is never delayed
	l.Wait(0)
	l.Wait(0)
	elapsed := time.Since(start)

	// Two paced gaps, each at least 0.8*base.
	require.GreaterOrEqual(t, elapsed, 32*time.Millisecond)
	require.Equal(t, 3, l.Requests())
}

func TestLimiterHintOverridesBase(t *testing.T) {
	l := NewLimiter(time.Hour, 1000)

	start := time.Now()
	l.Wait(10 * time.Millisecond)
	l.Wait(10 * time.Millisecond)
	elapsed := time.Since(start)

	require.Less(t, elapsed, time.Second)
}

func TestLimiterLongPause(t *testing.T) {
	l := NewLimiter(0, 2)
	l.SetLongPause(30*time.Millisecond, 40*time.Millisecond)

	start := time.Now()
	l.Wait(0)
	l.Wait(0) // second request triggers the long pause
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestLimiterConcurrentUse(t *testing.T) {
	l := NewLimiter(time.Millisecond, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Wait(0)
		}()
	}
	wg.Wait()

	require.Equal(t, 10, l.Requests())
}
