package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// clientLimiter is a per-client token bucket refilled continuously at
// perMinute tokens per minute.
type clientLimiter struct {
	capacity  float64
	perMinute float64
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// sweepInterval bounds how often allow scans the map for idle clients.
const sweepInterval = time.Minute

type bucket struct {
	tokens float64
	last   time.Time
}

func newClientLimiter(perMinute int) *clientLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &clientLimiter{
		capacity:  float64(perMinute),
		perMinute: float64(perMinute),
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// middleware rejects clients that ran out of tokens with 429.
func (l *clientLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.last).Minutes() * l.perMinute
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets that have refilled to capacity. A full bucket behaves
// exactly like a new one, so dropping it changes no decision.
func (l *clientLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if b.tokens+now.Sub(b.last).Minutes()*l.perMinute >= l.capacity {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
