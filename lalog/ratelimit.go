package lalog

import (
	"sync"
	"time"
)

// RateLimit tracks the number of hits performed by each source
// ("actor") to determine whether a source has exceeded the specified
// rate limit. Instead of a rolling window, the tracking data is reset
// to empty at regular intervals.
type RateLimit struct {
	UnitSecs int64
	MaxCount int
	Logger   *Logger

	mutex         sync.Mutex
	lastTimestamp int64
	counter       map[string]int
	logged        map[string]struct{}
}

// NewRateLimit constructs a new rate limiter allowing maxCount hits per
// actor per unitSecs seconds.
func NewRateLimit(unitSecs int64, maxCount int, logger *Logger) *RateLimit {
	if unitSecs < 1 || maxCount < 1 {
		panic("rate limit UnitSecs and MaxCount must be greater than 0")
	}
	limit := &RateLimit{
		UnitSecs: unitSecs,
		MaxCount: maxCount,
		Logger:   logger,
		counter:  make(map[string]int),
		logged:   make(map[string]struct{}),
	}
	if limit.Logger == nil {
		limit.Logger = DefaultLogger
	}
	// Turn a per-second limit into an equivalent limit over several
	// seconds, which reduces log spamming from the limit-hit message.
	if limit.UnitSecs == 1 {
		for _, factor := range []int{11, 7, 5, 3, 2} {
			if limit.MaxCount%factor == 0 {
				limit.UnitSecs = int64(factor)
				limit.MaxCount *= factor
				break
			}
		}
	}
	return limit
}

// Add increases the actor's hit counter by one and returns true if the
// actor stays within the limit for the current interval; otherwise the
// counter is left saturated and Add returns false until the interval
// rolls over.
func (limit *RateLimit) Add(actor string, logIfLimitHit bool) bool {
	limit.mutex.Lock()
	defer limit.mutex.Unlock()
	if now := time.Now().Unix(); now-limit.lastTimestamp >= limit.UnitSecs {
		limit.counter = make(map[string]int)
		limit.logged = make(map[string]struct{})
		limit.lastTimestamp = now
	}
	count := limit.counter[actor]
	if count >= limit.MaxCount {
		if _, hasLogged := limit.logged[actor]; !hasLogged && logIfLimitHit {
			limit.Logger.Info("RateLimit", nil, "%s exceeded limit of %d hits per %d seconds", actor, limit.MaxCount, limit.UnitSecs)
			limit.logged[actor] = struct{}{}
		}
		return false
	}
	limit.counter[actor] = count + 1
	return true
}
