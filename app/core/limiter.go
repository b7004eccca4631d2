package core

import (
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow() bool
}

type LimitConfig struct {
	Limit int
	Every time.Duration
}

type LimitOption func(l *LimitConfig)

func WithLimit(limit int) LimitOption {
	return func(l *LimitConfig) {
		l.Limit = limit
	}
}

func WithRange(r time.Duration) LimitOption {
	return func(l *LimitConfig) {
		l.Every = r
	}
}

var limiters = cmap.New[*rate.Limiter]()

// UseLimiter returns the per-key token bucket, creating it on first use.
// Default budget is 60 requests per minute with burst headroom.
func (s *Core) UseLimiter(key string, opts ...LimitOption) Limiter {
	cfg := &LimitConfig{
		Limit: 60,
		Every: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	l, exist := limiters.Get(key)
	if !exist {
		limit := rate.Every(cfg.Every / time.Duration(cfg.Limit))
		l = rate.NewLimiter(limit, cfg.Limit*2)
		limiters.SetIfAbsent(key, l)
		l, _ = limiters.Get(key)
	}

	return l
}
