package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"Aarogya/pkg/metrics"
	utils "Aarogya/pkg/utills"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the per-key maps; idle entries are pruned past it.
const maxTrackedKeys = 10000

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func userKey(c *gin.Context) string {
	return UserID(c) + "@" + clientIP(c)
}

// RateLimiter allows capacity requests per window for each principal+IP,
// refilling continuously.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	window   time.Duration
	capacity int
	now      func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(window time.Duration, capacity int) *RateLimiter {
	if window <= 0 {
		window = 10 * time.Second
	}
	if capacity <= 0 {
		capacity = 5
	}
	return &RateLimiter{limiters: map[string]*limiterEntry{}, window: window, capacity: capacity, now: time.Now}
}

// Allow reports whether key may make another request now.
func (r *RateLimiter) Allow(key string) bool {
	now := r.now()
	r.mu.Lock()
	e := r.limiters[key]
	if e == nil {
		if len(r.limiters) >= maxTrackedKeys {
			r.pruneNoLock(now)
		}
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(r.window/time.Duration(r.capacity)), r.capacity)}
		r.limiters[key] = e
	}
	e.lastSeen = now
	r.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// caller must hold r.mu
func (r *RateLimiter) pruneNoLock(now time.Time) {
	for k, e := range r.limiters {
		if now.Sub(e.lastSeen) > r.window {
			delete(r.limiters, k)
		}
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(userKey(c)) {
			metrics.RateLimitHits.WithLabelValues("rate").Inc()
			c.Header("Retry-After", strconv.Itoa(int(r.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "msg": "too many requests"})
			return
		}
		c.Next()
	}
}

// DuplicateGuard rejects the same prompt from the same principal within ttl.
type DuplicateGuard struct {
	mu   sync.Mutex
	last map[string]dupEntry
	ttl  time.Duration
	now  func() time.Time
}

type dupEntry struct {
	text string
	ts   time.Time
}

func NewDuplicateGuard(ttl time.Duration) *DuplicateGuard {
	return &DuplicateGuard{last: map[string]dupEntry{}, ttl: ttl, now: time.Now}
}

// Allow records text for uid and reports whether it is not a recent repeat.
func (d *DuplicateGuard) Allow(uid, text string) bool {
	if d == nil || d.ttl <= 0 {
		return true
	}
	now := d.now()
	text = utils.NormalizeText(text)
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.last[uid]; ok && e.text == text && now.Sub(e.ts) < d.ttl {
		metrics.RateLimitHits.WithLabelValues("duplicate").Inc()
		return false
	}
	if len(d.last) >= maxTrackedKeys {
		for k, e := range d.last {
			if now.Sub(e.ts) >= d.ttl {
				delete(d.last, k)
			}
		}
	}
	d.last[uid] = dupEntry{text: text, ts: now}
	return true
}

// Forget clears the record for uid so a failed send can be retried at once.
func (d *DuplicateGuard) Forget(uid string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	delete(d.last, uid)
	d.mu.Unlock()
}

// UserSlots caps how many pipelines one principal may run at once.
type UserSlots struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

func NewUserSlots(limit int) *UserSlots {
	if limit <= 0 {
		limit = 1
	}
	return &UserSlots{sems: map[string]chan struct{}{}, limit: limit}
}

// Acquire blocks until uid has a free slot or ctx is done.
func (u *UserSlots) Acquire(ctx context.Context, uid string) (release func(), err error) {
	u.mu.Lock()
	sem := u.sems[uid]
	if sem == nil {
		sem = make(chan struct{}, u.limit)
		u.sems[uid] = sem
	}
	u.mu.Unlock()
	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-sem }) }, nil
	case <-ctx.Done():
		metrics.RateLimitHits.WithLabelValues("concurrency").Inc()
		return nil, ctx.Err()
	}
}

// Middleware holds a slot for the rest of the chain; waiting requests give up
// when the client goes away.
func (u *UserSlots) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		release, err := u.Acquire(c.Request.Context(), UserID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "msg": "too many concurrent requests"})
			return
		}
		defer release()
		c.Next()
	}
}
