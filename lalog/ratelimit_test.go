package lalog

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRateLimitSpamReduction(t *testing.T) {
	// 23 shares no factor with the spam-reduction table
	limit := NewRateLimit(1, 23, DefaultLogger)
	require.Equal(t, int64(1), limit.UnitSecs)
	require.Equal(t, 23, limit.MaxCount)

	limit = NewRateLimit(1, 22, DefaultLogger)
	require.Equal(t, int64(11), limit.UnitSecs)
	require.Equal(t, 22*11, limit.MaxCount)

	limit = NewRateLimit(1, 21, DefaultLogger)
	require.Equal(t, int64(7), limit.UnitSecs)
	require.Equal(t, 21*7, limit.MaxCount)
}

func TestRateLimitPerActor(t *testing.T) {
	// A long interval keeps the counters from resetting mid-test.
	limit := NewRateLimit(600, 4, DefaultLogger)
	for actor := 0; actor < 3; actor++ {
		name := strconv.Itoa(actor)
		for hit := 0; hit < 4; hit++ {
			require.True(t, limit.Add(name, true), "actor %s hit %d", name, hit)
		}
		require.False(t, limit.Add(name, true))
		require.False(t, limit.Add(name, false))
	}
}

func TestRateLimitConcurrentActors(t *testing.T) {
	limit := NewRateLimit(3, 4, DefaultLogger)
	success := [3]int{}
	successMutex := new(sync.Mutex)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if limit.Add(strconv.Itoa(i), true) {
					successMutex.Lock()
					success[i]++
					successMutex.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()
	// The 100 attempts complete well within one interval, so each
	// actor lands exactly on the limit.
	for i := 0; i < 3; i++ {
		require.Equal(t, 4, success[i])
	}
}

func TestRateLimitResetsAfterInterval(t *testing.T) {
	limit := NewRateLimit(2, 3, DefaultLogger)
	for i := 0; i < 3; i++ {
		require.True(t, limit.Add("actor", true))
	}
	require.False(t, limit.Add("actor", true))
	time.Sleep(time.Duration(limit.UnitSecs)*time.Second + 100*time.Millisecond)
	require.True(t, limit.Add("actor", true))
}
