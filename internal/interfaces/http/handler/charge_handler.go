package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/interfaces/http/dto"
	"github.com/mailcenter/billing/internal/interfaces/http/middleware"
)

// ChargeService records and reads charge entries
type ChargeService interface {
	RecordCharge(ctx context.Context, in ledger.ChargeInput) (*billing.RecordChargeResult, error)
	ReverseCharge(ctx context.Context, tenantID, entryID uuid.UUID, reason string) (*billing.ReverseResult, error)
	GetCharge(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.ChargeEntry, error)
	ListCharges(ctx context.Context, tenantID uuid.UUID, filter ledger.ChargeFilter) (shared.Paginated[ledger.ChargeEntry], error)
	OnPackageCheckIn(ctx context.Context, ev billing.PackageCheckIn) (*billing.RecordChargeResult, error)
	OnPackageCheckout(ctx context.Context, ev billing.PackageCheckout) *billing.CheckoutResult
	OnShipmentCreated(ctx context.Context, ev billing.ShipmentCreated) (*billing.RecordChargeResult, error)
	OnMailAction(ctx context.Context, ev billing.MailAction) (*billing.RecordChargeResult, error)
	GenerateDailyStorageCharges(ctx context.Context, tenantID *uuid.UUID, day time.Time) (*billing.StorageRunResult, error)
}

// ChargeHandler exposes the charge ledger and the operational event hooks
type ChargeHandler struct {
	BaseHandler
	charges ChargeService
	now     func() time.Time
}

// NewChargeHandler creates a new ChargeHandler
func NewChargeHandler(charges ChargeService) *ChargeHandler {
	return &ChargeHandler{charges: charges, now: time.Now}
}

// RecordCharge godoc
//
//	@ID				recordCharge
//	@Summary		Record a charge
//	@Description	Price a billable event, write it to the ledger and settle it per the customer's terms. A free event returns charged=false.
//	@Tags			charges
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecordChargeRequest	true	"Billable event"
//	@Success		201		{object}	dto.Response{data=RecordChargeResponse}
//	@Success		200		{object}	dto.Response{data=RecordChargeResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		422		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/charges [post]
func (h *ChargeHandler) RecordCharge(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req RecordChargeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.charges.RecordCharge(c.Request.Context(), req.toInput(tenantID, middleware.GetActorID(c)))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondCharge(c, res)
}

// ListCharges godoc
//
//	@ID				listCharges
//	@Summary		List charges
//	@Tags			charges
//	@Produce		json
//	@Param			customer_id		query		string		false	"Customer ID"
//	@Param			service_type	query		string		false	"Service type"
//	@Param			status			query		[]string	false	"Charge status"	collectionFormat(multi)
//	@Param			from			query		string		false	"From date (YYYY-MM-DD)"
//	@Param			to				query		string		false	"To date (YYYY-MM-DD), inclusive"
//	@Param			page			query		int			false	"Page"
//	@Param			page_size		query		int			false	"Page size"
//	@Success		200				{object}	dto.Response{data=[]ChargeResponse}
//	@Failure		400				{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/charges [get]
func (h *ChargeHandler) ListCharges(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q ListChargesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	filter := ledger.ChargeFilter{
		Filter:      dto.ListRequest{Page: q.Page, PageSize: q.PageSize, OrderBy: q.OrderBy, OrderDir: q.OrderDir}.ToFilter(),
		ServiceType: ledger.ServiceType(q.ServiceType),
	}
	filter.CustomerID, _ = parseOptionalUUID(q.CustomerID)
	for _, s := range q.Status {
		filter.Statuses = append(filter.Statuses, ledger.ChargeStatus(s))
	}
	from, err := parseDate(q.From)
	if err != nil {
		h.BadRequest(c, "Invalid from date, expected YYYY-MM-DD")
		return
	}
	to, err := parseDate(q.To)
	if err != nil {
		h.BadRequest(c, "Invalid to date, expected YYYY-MM-DD")
		return
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		to = &end
	}
	filter.From, filter.To = from, to

	page, err := h.charges.ListCharges(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page, ToChargeResponses)
}

// GetCharge godoc
//
//	@ID			getCharge
//	@Summary	Get a charge
//	@Tags		charges
//	@Produce	json
//	@Param		id	path		string	true	"Charge entry ID"
//	@Success	200	{object}	dto.Response{data=ChargeResponse}
//	@Failure	404	{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/charges/{id} [get]
func (h *ChargeHandler) GetCharge(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.charges.GetCharge(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToChargeResponse(entry))
}

// ReverseCharge godoc
//
//	@ID				reverseCharge
//	@Summary		Reverse a charge
//	@Description	Void an unsettled charge and write the offsetting entry
//	@Tags			charges
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Charge entry ID"
//	@Param			request	body		ReverseChargeRequest	true	"Reason"
//	@Success		200		{object}	dto.Response{data=ReverseChargeResponse}
//	@Failure		404		{object}	dto.ErrorResponse
//	@Failure		422		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/charges/{id}/reverse [post]
func (h *ChargeHandler) ReverseCharge(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req ReverseChargeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.charges.ReverseCharge(c.Request.Context(), tenantID, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReverseChargeResponse{
		Original: ToChargeResponse(res.Original),
		Reversal: ToChargeResponse(res.Reversal),
	})
}

// PackageCheckIn godoc
//
//	@ID			packageCheckIn
//	@Summary	Bill a package check-in
//	@Tags		events
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billing.PackageCheckIn	true	"Check-in event"
//	@Success	201		{object}	dto.Response{data=RecordChargeResponse}
//	@Failure	400		{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/events/package-checkin [post]
func (h *ChargeHandler) PackageCheckIn(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var ev billing.PackageCheckIn
	if !h.bindJSON(c, &ev) {
		return
	}
	ev.TenantID = tenantID
	if ev.CreatedByID == nil {
		ev.CreatedByID = middleware.GetActorID(c)
	}

	res, err := h.charges.OnPackageCheckIn(c.Request.Context(), ev)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondCharge(c, res)
}

// PackageCheckout godoc
//
//	@ID				packageCheckout
//	@Summary		Bill storage at package checkout
//	@Description	Packages are billed independently; failures are listed in errors.
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			request	body		billing.PackageCheckout	true	"Checkout event"
//	@Success		200		{object}	dto.Response{data=CheckoutResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/events/package-checkout [post]
func (h *ChargeHandler) PackageCheckout(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var ev billing.PackageCheckout
	if !h.bindJSON(c, &ev) {
		return
	}
	ev.TenantID = tenantID
	if ev.CreatedByID == nil {
		ev.CreatedByID = middleware.GetActorID(c)
	}

	res := h.charges.OnPackageCheckout(c.Request.Context(), ev)
	resp := CheckoutResponse{Charges: make([]RecordChargeResponse, 0, len(res.Charges)), Errors: res.Errors}
	for _, r := range res.Charges {
		resp.Charges = append(resp.Charges, ToRecordChargeResponse(r))
	}
	h.Success(c, resp)
}

// ShipmentCreated godoc
//
//	@ID			shipmentCreated
//	@Summary	Bill an outbound shipment
//	@Tags		events
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billing.ShipmentCreated	true	"Shipment event"
//	@Success	201		{object}	dto.Response{data=RecordChargeResponse}
//	@Failure	400		{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/events/shipment-created [post]
func (h *ChargeHandler) ShipmentCreated(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var ev billing.ShipmentCreated
	if !h.bindJSON(c, &ev) {
		return
	}
	ev.TenantID = tenantID
	if ev.CreatedByID == nil {
		ev.CreatedByID = middleware.GetActorID(c)
	}

	res, err := h.charges.OnShipmentCreated(c.Request.Context(), ev)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondCharge(c, res)
}

// MailAction godoc
//
//	@ID			mailAction
//	@Summary	Bill a scan, forward or discard
//	@Tags		events
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billing.MailAction	true	"Mail action event"
//	@Success	201		{object}	dto.Response{data=RecordChargeResponse}
//	@Failure	400		{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/events/mail-action [post]
func (h *ChargeHandler) MailAction(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var ev billing.MailAction
	if !h.bindJSON(c, &ev) {
		return
	}
	ev.TenantID = tenantID
	if ev.CreatedByID == nil {
		ev.CreatedByID = middleware.GetActorID(c)
	}

	res, err := h.charges.OnMailAction(c.Request.Context(), ev)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondCharge(c, res)
}

// RunStorage godoc
//
//	@ID				runStorageCharges
//	@Summary		Run the daily storage sweep
//	@Description	Charge one storage day for every held package of the tenant past its free days. Defaults to today (UTC). Safe to repeat.
//	@Tags			charges
//	@Accept			json
//	@Produce		json
//	@Param			request	body		StorageRunRequest	false	"Day"
//	@Success		200		{object}	dto.Response{data=billing.StorageRunResult}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/storage/run [post]
func (h *ChargeHandler) RunStorage(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req StorageRunRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	day, err := parseDate(req.Day)
	if err != nil {
		h.BadRequest(c, "Invalid day, expected YYYY-MM-DD")
		return
	}
	if day == nil {
		today := h.now().UTC().Truncate(24 * time.Hour)
		day = &today
	}

	res, err := h.charges.GenerateDailyStorageCharges(c.Request.Context(), &tenantID, *day)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// respondCharge answers 201 for a written charge and 200 for a free event
func (h *ChargeHandler) respondCharge(c *gin.Context, res *billing.RecordChargeResult) {
	resp := ToRecordChargeResponse(res)
	if resp.Charged {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}
