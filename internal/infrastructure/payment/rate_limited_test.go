package payment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCapture struct {
	calls atomic.Int32
}

func (c *countingCapture) Capture(context.Context, settlement.CaptureRequest) (settlement.CaptureResult, error) {
	c.calls.Add(1)
	return settlement.CaptureResult{Success: true, Reference: "ch_x"}, nil
}

func TestWithRateLimit_ZeroRateIsPassthrough(t *testing.T) {
	next := &countingCapture{}
	assert.Same(t, next, WithRateLimit(next, GatewayConfig{}))
}

func TestRateLimitedCapture_ThrottlesBeyondBurst(t *testing.T) {
	next := &countingCapture{}
	c := WithRateLimit(next, GatewayConfig{RatePerSecond: 0.5, Burst: 2, WaitTimeout: 30 * time.Millisecond})

	for i := 0; i < 2; i++ {
		res, err := c.Capture(context.Background(), captureRequest(settlement.MethodCard, "1"))
		require.NoError(t, err)
		assert.True(t, res.Success)
	}

	_, err := c.Capture(context.Background(), captureRequest(settlement.MethodCard, "1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture throttled")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestRateLimitedCapture_RespectsCallerContext(t *testing.T) {
	next := &countingCapture{}
	c := WithRateLimit(next, GatewayConfig{RatePerSecond: 0.1, Burst: 1})
	_, err := c.Capture(context.Background(), captureRequest(settlement.MethodCard, "1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Capture(ctx, captureRequest(settlement.MethodCard, "1"))
	assert.Error(t, err)
	assert.Equal(t, int32(1), next.calls.Load())
}
