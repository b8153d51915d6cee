package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/mailcenter/billing/internal/domain/settlement"
	"golang.org/x/time/rate"
)

// RateLimitedCapture throttles captures sent to the wrapped processor
type RateLimitedCapture struct {
	next        settlement.PaymentCapture
	limiter     *rate.Limiter
	waitTimeout time.Duration
}

// WithRateLimit wraps next with the configured limit. A zero rate returns
// next unchanged.
func WithRateLimit(next settlement.PaymentCapture, cfg GatewayConfig) settlement.PaymentCapture {
	if cfg.RatePerSecond <= 0 {
		return next
	}
	return &RateLimitedCapture{
		next:        next,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		waitTimeout: cfg.WaitTimeout,
	}
}

// Capture implements settlement.PaymentCapture
func (c *RateLimitedCapture) Capture(ctx context.Context, req settlement.CaptureRequest) (settlement.CaptureResult, error) {
	waitCtx := ctx
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}
	if err := c.limiter.Wait(waitCtx); err != nil {
		return settlement.CaptureResult{}, fmt.Errorf("capture throttled: %w", err)
	}
	return c.next.Capture(ctx, req)
}
