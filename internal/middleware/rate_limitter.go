package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultRequestRate = 50
	defaultBurstSize   = 100
	limiterIdleTTL     = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than limiterIdleTTL are evicted on the next lookup after a sweep is due.
type rateLimiter struct {
	bucket    map[string]*clientLimiter
	rate      rate.Limit
	burstSize int
	mutex     sync.Mutex
	nextSweep time.Time
	now       func() time.Time
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*clientLimiter),
		rate:      reqRate,
		burstSize: burstSize,
		now:       time.Now,
	}
}

// rateLimiterFromEnv reads RATE_LIMIT_RPS and RATE_LIMIT_BURST.
func rateLimiterFromEnv() *rateLimiter {
	reqRate := defaultRequestRate
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_RPS")); err == nil && v > 0 {
		reqRate = v
	}
	burst := defaultBurstSize
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil && v > 0 {
		burst = v
	}
	return newRateLimiter(rate.Limit(reqRate), burst)
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if now.After(r.nextSweep) {
		for key, entry := range r.bucket {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(r.bucket, key)
			}
		}
		r.nextSweep = now.Add(limiterIdleTTL)
	}

	entry, exist := r.bucket[ip]
	if !exist {
		entry = &clientLimiter{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = entry
	}
	entry.lastSeen = now

	return entry.limiter
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.bucket)
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()

	if !m.rateLimitter.limiterFor(clientIP).Allow() {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"client_ip":  clientIP,
			"path":       ctx.Path(),
		}).Warn("Rate limit exceeded")
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many requests",
			"code":  "RATE_LIMITED",
		})
	}

	return ctx.Next()
}
