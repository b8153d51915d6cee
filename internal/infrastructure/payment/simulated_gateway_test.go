package payment

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureRequest(method settlement.MethodType, amount string) settlement.CaptureRequest {
	return settlement.CaptureRequest{
		TenantID:       uuid.New(),
		CustomerID:     uuid.New(),
		MethodType:     method,
		Amount:         decimal.RequireFromString(amount),
		IdempotencyKey: "settle:" + uuid.NewString(),
	}
}

func TestSimulatedGateway_Capture(t *testing.T) {
	gw, err := NewSimulatedGateway(GatewayConfig{NodeID: 1}, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  settlement.MethodType
		amount  string
		success bool
		reason  string
	}{
		{"card", settlement.MethodCard, "3.50", true, ""},
		{"ach", settlement.MethodACH, "10", true, ""},
		{"cash", settlement.MethodCash, "3.50", false, DeclineMethodNotSupported},
		{"check", settlement.MethodCheck, "3.50", false, DeclineMethodNotSupported},
		{"zero amount", settlement.MethodCard, "0", false, DeclineInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := gw.Capture(context.Background(), captureRequest(tt.method, tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.reason, res.FailureReason)
			if tt.success {
				assert.True(t, strings.HasPrefix(res.Reference, "ch_"))
			}
		})
	}
}

func TestSimulatedGateway_UniqueReferences(t *testing.T) {
	gw, err := NewSimulatedGateway(GatewayConfig{NodeID: 7}, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	refs := make(map[string]struct{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gw.Capture(context.Background(), captureRequest(settlement.MethodCard, "1"))
			if err != nil {
				return
			}
			mu.Lock()
			refs[res.Reference] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, refs, 50)
}

func TestSimulatedGateway_DeclineAll(t *testing.T) {
	gw, err := NewSimulatedGateway(GatewayConfigFrom(config.BillingConfig{SimulatedDeclineAll: true}, 0), nil)
	require.NoError(t, err)

	res, err := gw.Capture(context.Background(), captureRequest(settlement.MethodCard, "3.50"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, DeclineCardDeclined, res.FailureReason)
}

func TestSimulatedGateway_CancelledContext(t *testing.T) {
	gw, err := NewSimulatedGateway(GatewayConfig{}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gw.Capture(ctx, captureRequest(settlement.MethodCard, "1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayConfig_Validate(t *testing.T) {
	assert.Error(t, GatewayConfig{NodeID: 1024}.Validate())
	assert.Error(t, GatewayConfig{RatePerSecond: -1}.Validate())
	assert.Error(t, GatewayConfig{RatePerSecond: 5}.Validate())
	assert.NoError(t, GatewayConfig{RatePerSecond: 5, Burst: 1, WaitTimeout: time.Second}.Validate())

	_, err := NewSimulatedGateway(GatewayConfig{NodeID: -1}, nil)
	assert.Error(t, err)
}
