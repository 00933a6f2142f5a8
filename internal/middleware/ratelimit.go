package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit caps each caller to r events per second with the given burst.
// Keyed by the authenticated user when present, the client IP otherwise.
// It must run after the auth middleware to pick up the user key.
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	entries := make(map[string]*limiterEntry)

	// Prune idle entries so the map doesn't grow with every IP ever seen.
	go func() {
		for range time.Tick(time.Minute) {
			mu.Lock()
			for key, e := range entries {
				if time.Since(e.lastSeen) > 3*time.Minute {
					delete(entries, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := c.Get("userID"); ok {
			key = fmt.Sprintf("user:%d", userID.(uint))
		}

		mu.Lock()
		e, ok := entries[key]
		if !ok {
			e = &limiterEntry{limiter: rate.NewLimiter(r, burst)}
			entries[key] = e
		}
		e.lastSeen = time.Now()
		mu.Unlock()

		if !e.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests"})
			return
		}
		c.Next()
	}
}
