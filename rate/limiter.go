package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound requests per key so that bursts of
// store refreshes do not hammer the remote service.
type Limiter struct {
	Expiry   int
	Burst    int
	LimitRPS float64
	keys     map[string]*keyLimiter
	mu       sync.Mutex
}

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewLimiter(burst int, expiry int, limitRPS float64) *Limiter {
	keys := make(map[string]*keyLimiter)
	lm := &Limiter{
		Expiry:   expiry,
		LimitRPS: limitRPS,
		Burst:    burst,
		keys:     keys,
	}
	go lm.refresh()
	return lm
}

// Wait blocks until a request slot for the key is available or the
// context expires.
func (l *Limiter) Wait(ctx context.Context, id string) error {
	return l.get(id).Wait(ctx)
}

// Allow reports whether a request slot for the key is available right
// away, without blocking.
func (l *Limiter) Allow(id string) bool {
	return l.get(id).Allow()
}

func (l *Limiter) get(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.keys[id]
	if !ok {
		kl = &keyLimiter{
			limiter: rate.NewLimiter(rate.Limit(l.LimitRPS), l.Burst),
		}
		l.keys[id] = kl
	}
	kl.lastAccess = time.Now()
	return kl.limiter
}

func (l *Limiter) refresh() {
	for {
		time.Sleep(time.Minute)

		l.mu.Lock()
		for id, v := range l.keys {
			if time.Since(v.lastAccess) > time.Duration(l.Expiry)*time.Minute {
				delete(l.keys, id)
			}
		}
		l.mu.Unlock()
	}
}

func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
