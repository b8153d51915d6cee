package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newTestBillingMetrics(t *testing.T, provider telemetry.OutstandingBalanceProvider) (*telemetry.BillingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:           mp.Meter("billing-test"),
		Logger:          zap.NewNop(),
		BalanceProvider: provider,
	})
	require.NoError(t, err)
	return bm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumValue(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewBillingMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{})
	assert.Nil(t, bm)
	assert.EqualError(t, err, "NewBillingMetrics: meter cannot be nil")
}

func TestBillingMetrics_Record(t *testing.T) {
	bm, reader := newTestBillingMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	bm.RecordCharge(ctx, tenantID, "receiving", "action_price", decimal.RequireFromString("2.50"))
	bm.RecordCharge(ctx, tenantID, "storage", "tenant_default", decimal.RequireFromString("1.005"))
	bm.RecordSettlement(ctx, tenantID, "deferred", "pending")
	bm.RecordCapture(ctx, 120*time.Millisecond, true)
	bm.RecordInvoice(ctx, tenantID, "sent")
	bm.RecordAutoPay(ctx, tenantID, false)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumValue(t, data["mailbill_charges_recorded_total"]))
	assert.Equal(t, int64(351), sumValue(t, data["mailbill_charge_amount_total"]))
	assert.Equal(t, int64(1), sumValue(t, data["mailbill_settlements_total"]))
	assert.Equal(t, int64(1), sumValue(t, data["mailbill_invoice_transitions_total"]))
	assert.Equal(t, int64(1), sumValue(t, data["mailbill_autopay_invoices_total"]))

	hist, ok := data["mailbill_capture_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestBillingMetrics_NilIsNoop(t *testing.T) {
	var bm *telemetry.BillingMetrics
	assert.NotPanics(t, func() {
		bm.RecordCharge(context.Background(), uuid.New(), "receiving", "action_price", decimal.NewFromInt(1))
		bm.RecordSettlement(context.Background(), uuid.New(), "immediate", "paid")
		bm.RecordCapture(context.Background(), time.Second, false)
		bm.StartPeriodicCollection(context.Background(), time.Second)
		bm.Stop()
	})
}

type fixedBalances map[uuid.UUID]decimal.Decimal

func (f fixedBalances) OutstandingByTenant(context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	return f, nil
}

func TestBillingMetrics_PeriodicCollection(t *testing.T) {
	tenantID := uuid.New()
	bm, reader := newTestBillingMetrics(t, fixedBalances{tenantID: decimal.RequireFromString("42.10")})

	bm.StartPeriodicCollection(context.Background(), time.Hour)
	defer bm.Stop()

	assert.Eventually(t, func() bool {
		gauge, ok := collect(t, reader)["mailbill_outstanding_balance"].(metricdata.Gauge[int64])
		return ok && len(gauge.DataPoints) == 1 && gauge.DataPoints[0].Value == 4210
	}, time.Second, 10*time.Millisecond)
}
