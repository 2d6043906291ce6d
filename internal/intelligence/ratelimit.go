package intelligence

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter throttles outbound provider traffic and backs off when a
// provider starts failing. Providers that answer reliably earn their rate
// back over successive windows.
type AdaptiveLimiter struct {
	limiter *rate.Limiter
	logger  *logrus.Logger

	mu           sync.Mutex
	baseRate     rate.Limit
	minRate      rate.Limit
	maxRate      rate.Limit
	requestCount int64
	successCount int64
	windowStart  time.Time
	window       time.Duration
}

func NewAdaptiveLimiter(baseRate rate.Limit, burst int, logger *logrus.Logger) *AdaptiveLimiter {
	if logger == nil {
		logger = logrus.New()
	}
	if baseRate <= 0 {
		baseRate = rate.Limit(1)
	}
	if burst <= 0 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(baseRate, burst),
		logger:      logger,
		baseRate:    baseRate,
		minRate:     baseRate / 10,
		maxRate:     baseRate * 4,
		windowStart: time.Now(),
		window:      time.Minute,
	}
}

func (l *AdaptiveLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	l.requestCount++
	l.mu.Unlock()
	return l.limiter.Wait(ctx)
}

func (l *AdaptiveLimiter) RecordSuccess() { l.record(true) }
func (l *AdaptiveLimiter) RecordFailure() { l.record(false) }

func (l *AdaptiveLimiter) record(success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		l.successCount++
	}
	if time.Since(l.windowStart) >= l.window {
		l.adjustLocked()
		l.requestCount = 0
		l.successCount = 0
		l.windowStart = time.Now()
	}
}

func (l *AdaptiveLimiter) adjustLocked() {
	if l.requestCount == 0 {
		return
	}
	successRate := float64(l.successCount) / float64(l.requestCount)
	current := l.limiter.Limit()
	next := current

	switch {
	case successRate >= 0.9:
		next = current * 1.1
	case successRate < 0.5:
		next = current * 0.5
	}

	if next < l.minRate {
		next = l.minRate
	}
	if next > l.maxRate {
		next = l.maxRate
	}
	if next != current {
		l.limiter.SetLimit(next)
		l.logger.Infof("Adjusted provider rate limit from %.2f to %.2f (success=%.2f)",
			float64(current), float64(next), successRate)
	}
}

func (l *AdaptiveLimiter) CurrentRate() rate.Limit {
	return l.limiter.Limit()
}
