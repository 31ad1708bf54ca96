package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ksred/klear-bill/pkg/response"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestID"

	visitorTTL = 3 * time.Minute
)

// Limit caps requests per client for paths under Prefix.
type Limit struct {
	Prefix    string
	PerMinute int
	Burst     int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client and path prefix.
// Paths matching no prefix are not limited.
type RateLimiter struct {
	limits []Limit

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimiter(limits ...Limit) *RateLimiter {
	return &RateLimiter{
		limits:   limits,
		visitors: make(map[string]*visitor),
	}
}

// Start evicts idle clients every minute until ctx is done.
func (l *RateLimiter) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *RateLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

func (l *RateLimiter) limiter(path, clientIP string) *rate.Limiter {
	var matched *Limit
	for i := range l.limits {
		if strings.HasPrefix(path, l.limits[i].Prefix) {
			matched = &l.limits[i]
			break
		}
	}
	if matched == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := clientIP + ":" + matched.Prefix
	v, exists := l.visitors[key]
	if !exists {
		burst := matched.Burst
		if burst < 1 {
			burst = 1
		}
		v = &visitor{
			limiter: rate.NewLimiter(rate.Limit(float64(matched.PerMinute)/60.0), burst),
		}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Handler rejects clients over their limit with 429.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := l.limiter(c.Request.URL.Path, c.ClientIP())
		if limiter != nil && !limiter.Allow() {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			return
		}
		c.Next()
	}
}

// RequestLogger tags each request with an id and logs it when done.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}
