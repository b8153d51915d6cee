package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChargeService struct {
	recorded   ledger.ChargeInput
	recordRes  *billing.RecordChargeResult
	recordErr  error
	filter     ledger.ChargeFilter
	page       shared.Paginated[ledger.ChargeEntry]
	entry      *ledger.ChargeEntry
	getErr     error
	reason     string
	checkIn    billing.PackageCheckIn
	checkout   billing.PackageCheckout
	shipment   billing.ShipmentCreated
	mailAction billing.MailAction
	storageFor *uuid.UUID
	storageDay time.Time
}

func (f *fakeChargeService) RecordCharge(_ context.Context, in ledger.ChargeInput) (*billing.RecordChargeResult, error) {
	f.recorded = in
	return f.recordRes, f.recordErr
}

func (f *fakeChargeService) ReverseCharge(_ context.Context, _, entryID uuid.UUID, reason string) (*billing.ReverseResult, error) {
	f.reason = reason
	if f.getErr != nil {
		return nil, f.getErr
	}
	original := sampleEntry(decimal.NewFromInt(5))
	original.ID = entryID
	original.Status = ledger.ChargeStatusVoid
	reversal := sampleEntry(decimal.NewFromInt(-5))
	reversal.ReversalOf = &original.ID
	return &billing.ReverseResult{Original: original, Reversal: reversal}, nil
}

func (f *fakeChargeService) GetCharge(_ context.Context, _, _ uuid.UUID) (*ledger.ChargeEntry, error) {
	return f.entry, f.getErr
}

func (f *fakeChargeService) ListCharges(_ context.Context, _ uuid.UUID, filter ledger.ChargeFilter) (shared.Paginated[ledger.ChargeEntry], error) {
	f.filter = filter
	return f.page, nil
}

func (f *fakeChargeService) OnPackageCheckIn(_ context.Context, ev billing.PackageCheckIn) (*billing.RecordChargeResult, error) {
	f.checkIn = ev
	return f.recordRes, f.recordErr
}

func (f *fakeChargeService) OnPackageCheckout(_ context.Context, ev billing.PackageCheckout) *billing.CheckoutResult {
	f.checkout = ev
	return &billing.CheckoutResult{
		Charges: []*billing.RecordChargeResult{f.recordRes},
		Errors:  []billing.BatchError{{Subject: "package 2", Message: "catalog unavailable"}},
	}
}

func (f *fakeChargeService) OnShipmentCreated(_ context.Context, ev billing.ShipmentCreated) (*billing.RecordChargeResult, error) {
	f.shipment = ev
	return f.recordRes, f.recordErr
}

func (f *fakeChargeService) OnMailAction(_ context.Context, ev billing.MailAction) (*billing.RecordChargeResult, error) {
	f.mailAction = ev
	return f.recordRes, f.recordErr
}

func (f *fakeChargeService) GenerateDailyStorageCharges(_ context.Context, tenantID *uuid.UUID, day time.Time) (*billing.StorageRunResult, error) {
	f.storageFor = tenantID
	f.storageDay = day
	return &billing.StorageRunResult{Day: day.Format(DateLayout), Created: 2, Skipped: 1}, nil
}

func sampleEntry(total decimal.Decimal) *ledger.ChargeEntry {
	e := &ledger.ChargeEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(testTenantID),
		CustomerID:          uuid.New(),
		ServiceType:         ledger.ServiceScanning,
		Description:         "Mail scan",
		Quantity:            1,
		UnitRate:            total,
		Total:               total,
		PriceSource:         pricing.SourceActionPrice,
		Status:              ledger.ChargeStatusPosted,
	}
	return e
}

func sampleRecordResult() *billing.RecordChargeResult {
	return &billing.RecordChargeResult{
		Entry: sampleEntry(decimal.RequireFromString("2.50")),
		Price: pricing.ResolvedPrice{
			UnitRate: decimal.RequireFromString("2.50"),
			Total:    decimal.RequireFromString("2.50"),
			Source:   pricing.SourceActionPrice,
		},
		Settlement: &billing.SettleResult{Mode: settlement.ModeDeferred, Status: settlement.RecordStatusPending},
	}
}

func chargeRouter(svc *fakeChargeService, now time.Time) *gin.Engine {
	h := NewChargeHandler(svc)
	h.now = func() time.Time { return now }
	return newTestEngine(func(r gin.IRoutes) {
		r.POST("/charges", h.RecordCharge)
		r.GET("/charges", h.ListCharges)
		r.GET("/charges/:id", h.GetCharge)
		r.POST("/charges/:id/reverse", h.ReverseCharge)
		r.POST("/events/package-checkin", h.PackageCheckIn)
		r.POST("/events/package-checkout", h.PackageCheckout)
		r.POST("/events/shipment-created", h.ShipmentCreated)
		r.POST("/events/mail-action", h.MailAction)
		r.POST("/storage/run", h.RunStorage)
	})
}

func TestChargeHandler_RecordCharge(t *testing.T) {
	svc := &fakeChargeService{recordRes: sampleRecordResult()}
	r := chargeRouter(svc, time.Now())
	customerID := uuid.New()

	w := doRequest(t, r, http.MethodPost, "/charges", map[string]any{
		"customer_id":  customerID,
		"service_type": "scanning",
		"quantity":     3,
		"mailbox_id":   "PMB-104",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, testTenantID, svc.recorded.TenantID)
	assert.Equal(t, customerID, svc.recorded.CustomerID)
	assert.Equal(t, ledger.ServiceScanning, svc.recorded.ServiceType)
	assert.Equal(t, 3, svc.recorded.Quantity)
	require.NotNil(t, svc.recorded.CreatedByID)
	assert.Equal(t, testActorID, *svc.recorded.CreatedByID)

	var resp RecordChargeResponse
	decodeData(t, w, &resp)
	assert.True(t, resp.Charged)
	require.NotNil(t, resp.Charge)
	assert.Equal(t, "2.5", resp.Charge.Total.String())
	assert.Equal(t, settlement.ModeDeferred, resp.Settlement.Mode)
}

func TestChargeHandler_RecordCharge_FreeEvent(t *testing.T) {
	svc := &fakeChargeService{}
	r := chargeRouter(svc, time.Now())

	w := doRequest(t, r, http.MethodPost, "/charges", map[string]any{
		"customer_id":  uuid.New(),
		"service_type": "pickup",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp RecordChargeResponse
	decodeData(t, w, &resp)
	assert.False(t, resp.Charged)
	assert.Nil(t, resp.Charge)
}

func TestChargeHandler_RecordCharge_Validation(t *testing.T) {
	r := chargeRouter(&fakeChargeService{}, time.Now())

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"unknown service", map[string]any{"customer_id": uuid.New(), "service_type": "teleport"}, "service_type"},
		{"missing customer", map[string]any{"service_type": "scanning"}, "customer_id"},
		{"negative quantity", map[string]any{"customer_id": uuid.New(), "service_type": "scanning", "quantity": -2}, "quantity"},
		{"malformed json", "{", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodPost, "/charges", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, "ERR_VALIDATION", info.Code)
			require.NotEmpty(t, info.Details)
			assert.Equal(t, tt.field, info.Details[0].Field)
		})
	}
}

func TestChargeHandler_RecordCharge_DomainError(t *testing.T) {
	svc := &fakeChargeService{recordErr: shared.NewDomainError("INVALID_CUSTOMER", "Customer not found")}
	r := chargeRouter(svc, time.Now())

	w := doRequest(t, r, http.MethodPost, "/charges", map[string]any{
		"customer_id":  uuid.New(),
		"service_type": "custom",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_CUSTOMER", decodeError(t, w).Code)
}

func TestChargeHandler_ListCharges(t *testing.T) {
	entries := []ledger.ChargeEntry{*sampleEntry(decimal.NewFromInt(3)), *sampleEntry(decimal.NewFromInt(4))}
	svc := &fakeChargeService{page: shared.NewPaginated(entries, 12, 2, 2)}
	r := chargeRouter(svc, time.Now())
	customerID := uuid.New()

	w := doRequest(t, r, http.MethodGet,
		"/charges?page=2&page_size=2&customer_id="+customerID.String()+
			"&status=posted&status=pending&service_type=storage&from=2026-10-01&to=2026-10-15", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var items []ChargeResponse
	meta := decodeData(t, w, &items)
	assert.Len(t, items, 2)
	require.NotNil(t, meta)
	assert.Equal(t, int64(12), meta.Total)
	assert.Equal(t, 6, meta.TotalPages)

	f := svc.filter
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 2, f.PageSize)
	require.NotNil(t, f.CustomerID)
	assert.Equal(t, customerID, *f.CustomerID)
	assert.Equal(t, ledger.ServiceStorage, f.ServiceType)
	assert.Equal(t, []ledger.ChargeStatus{ledger.ChargeStatusPosted, ledger.ChargeStatusPending}, f.Statuses)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *f.From)
	// to is inclusive, so the bound is the start of the next day
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), *f.To)
}

func TestChargeHandler_ListCharges_BadQuery(t *testing.T) {
	r := chargeRouter(&fakeChargeService{}, time.Now())

	for _, q := range []string{"status=archived", "customer_id=abc", "page_size=500"} {
		w := doRequest(t, r, http.MethodGet, "/charges?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w := doRequest(t, r, http.MethodGet, "/charges?from=10/01/2026", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ERR_BAD_REQUEST", decodeError(t, w).Code)
}

func TestChargeHandler_GetCharge(t *testing.T) {
	entry := sampleEntry(decimal.NewFromInt(7))
	svc := &fakeChargeService{entry: entry}
	r := chargeRouter(svc, time.Now())

	w := doRequest(t, r, http.MethodGet, "/charges/"+entry.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got ChargeResponse
	decodeData(t, w, &got)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "scanning", got.ServiceType)

	w = doRequest(t, r, http.MethodGet, "/charges/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.getErr = shared.ErrNotFound
	w = doRequest(t, r, http.MethodGet, "/charges/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChargeHandler_ReverseCharge(t *testing.T) {
	svc := &fakeChargeService{}
	r := chargeRouter(svc, time.Now())
	id := uuid.New()

	w := doRequest(t, r, http.MethodPost, "/charges/"+id.String()+"/reverse", map[string]any{"reason": "Scanned wrong piece"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Scanned wrong piece", svc.reason)
	var resp ReverseChargeResponse
	decodeData(t, w, &resp)
	assert.Equal(t, id, resp.Original.ID)
	assert.Equal(t, "void", resp.Original.Status)
	require.NotNil(t, resp.Reversal.ReversalOf)
	assert.Equal(t, id, *resp.Reversal.ReversalOf)

	w = doRequest(t, r, http.MethodPost, "/charges/"+id.String()+"/reverse", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChargeHandler_Events(t *testing.T) {
	svc := &fakeChargeService{recordRes: sampleRecordResult()}
	r := chargeRouter(svc, time.Now())
	customerID := uuid.New()

	t.Run("check-in takes tenant from auth", func(t *testing.T) {
		w := doRequest(t, r, http.MethodPost, "/events/package-checkin", map[string]any{
			"tenant_id":   uuid.New(),
			"customer_id": customerID,
			"package_id":  uuid.New(),
			"carrier":     "UPS",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, testTenantID, svc.checkIn.TenantID)
		assert.Equal(t, "UPS", svc.checkIn.Carrier)
	})

	t.Run("checkout reports per-package errors", func(t *testing.T) {
		w := doRequest(t, r, http.MethodPost, "/events/package-checkout", map[string]any{
			"customer_id": customerID,
			"packages": []map[string]any{
				{"id": uuid.New(), "checked_in_at": "2026-09-20T10:00:00Z", "storage_fee": "1.00", "billable_days": 4},
			},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Len(t, svc.checkout.Packages, 1)
		assert.Equal(t, 4, svc.checkout.Packages[0].BillableDays)

		var resp CheckoutResponse
		decodeData(t, w, &resp)
		assert.Len(t, resp.Charges, 1)
		assert.Len(t, resp.Errors, 1)
	})

	t.Run("checkout requires packages", func(t *testing.T) {
		w := doRequest(t, r, http.MethodPost, "/events/package-checkout", map[string]any{"customer_id": customerID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("shipment", func(t *testing.T) {
		w := doRequest(t, r, http.MethodPost, "/events/shipment-created", map[string]any{
			"customer_id":    customerID,
			"shipment_id":    uuid.New(),
			"retail_price":   "18.40",
			"wholesale_cost": "12.10",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "18.4", svc.shipment.RetailPrice.String())
	})

	t.Run("mail action must be known", func(t *testing.T) {
		w := doRequest(t, r, http.MethodPost, "/events/mail-action", map[string]any{
			"customer_id":   customerID,
			"mail_piece_id": uuid.New(),
			"action":        "shred",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(t, r, http.MethodPost, "/events/mail-action", map[string]any{
			"customer_id":   customerID,
			"mail_piece_id": uuid.New(),
			"action":        "scan",
			"page_count":    6,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, 6, svc.mailAction.PageCount)
		require.NotNil(t, svc.mailAction.CreatedByID)
		assert.Equal(t, testActorID, *svc.mailAction.CreatedByID)
	})
}

func TestChargeHandler_RunStorage(t *testing.T) {
	svc := &fakeChargeService{}
	now := time.Date(2026, 10, 17, 14, 30, 0, 0, time.UTC)
	r := chargeRouter(svc, now)

	w := doRequest(t, r, http.MethodPost, "/storage/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, svc.storageFor)
	assert.Equal(t, testTenantID, *svc.storageFor)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), svc.storageDay)

	w = doRequest(t, r, http.MethodPost, "/storage/run", map[string]any{"day": "2026-10-15"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), svc.storageDay)

	var res billing.StorageRunResult
	decodeData(t, w, &res)
	assert.Equal(t, "2026-10-15", res.Day)
	assert.Equal(t, 2, res.Created)

	w = doRequest(t, r, http.MethodPost, "/storage/run", map[string]any{"day": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
