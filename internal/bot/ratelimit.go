package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterTTL is how long an idle user's bucket is kept.
const limiterTTL = 10 * time.Minute

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds one token bucket per Telegram user.
type limiterPool struct {
	mu        sync.Mutex
	m         map[int64]*limiterEntry
	limit     rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

func newLimiterPool(limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		m:     make(map[int64]*limiterEntry),
		limit: limit,
		burst: burst,
		now:   time.Now,
	}
}

// Allow reports whether userID may be served now.
func (p *limiterPool) Allow(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastPrune) > limiterTTL {
		for id, e := range p.m {
			if now.Sub(e.lastSeen) > limiterTTL {
				delete(p.m, id)
			}
		}
		p.lastPrune = now
	}

	e, ok := p.m[userID]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(p.limit, p.burst)}
		p.m[userID] = e
	}
	e.lastSeen = now
	return e.l.AllowN(now, 1)
}
