package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/interfaces/http/dto"
)

// InvoiceService generates invoices and drives them to paid or void
type InvoiceService interface {
	GenerateForCustomer(ctx context.Context, req billing.GenerateInvoiceRequest) (*billing.InvoiceResult, error)
	GenerateBatch(ctx context.Context, tenantID uuid.UUID, opts billing.BatchOptions) (*billing.BatchResult, error)
	RecordPayment(ctx context.Context, tenantID, invoiceID uuid.UUID, in billing.PaymentInput) (*invoicing.Invoice, error)
	SendInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, via invoicing.Channel) (*invoicing.Invoice, error)
	VoidInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.Invoice, error)
	MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (*billing.OverdueResult, error)
	Summary(ctx context.Context, tenantID uuid.UUID) (invoicing.Summary, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.Invoice, error)
	ListInvoices(ctx context.Context, tenantID uuid.UUID, filter invoicing.Filter) (shared.Paginated[invoicing.Invoice], error)
	GetOrCreateSchedule(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) (*invoicing.Schedule, error)
	UpdateSchedule(ctx context.Context, tenantID, scheduleID uuid.UUID, update invoicing.ScheduleUpdate) (*invoicing.Schedule, error)
}

// AutoPayRunner collects open invoices from auto-pay customers
type AutoPayRunner interface {
	Run(ctx context.Context, tenantID uuid.UUID, today time.Time) (*billing.AutoPayResult, error)
}

// InvoiceHandler exposes invoicing, schedules and auto-pay
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceService
	autopay  AutoPayRunner
	now      func() time.Time
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices InvoiceService, autopay AutoPayRunner) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, autopay: autopay, now: time.Now}
}

// Generate godoc
//
//	@ID				generateInvoice
//	@Summary		Generate an invoice for a customer
//	@Description	Consolidate the customer's pending deferred charges in the period. Returns generated=false when there is nothing to invoice.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GenerateInvoiceBody	true	"Customer and period"
//	@Success		201		{object}	dto.Response{data=GenerateInvoiceResponse}
//	@Success		200		{object}	dto.Response{data=GenerateInvoiceResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		409		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/invoices/generate [post]
func (h *InvoiceHandler) Generate(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var body GenerateInvoiceBody
	if !h.bindJSON(c, &body) {
		return
	}
	start, end, ok := h.period(c, body.PeriodStart, body.PeriodEnd)
	if !ok {
		return
	}

	res, err := h.invoices.GenerateForCustomer(c.Request.Context(), billing.GenerateInvoiceRequest{
		TenantID:    tenantID,
		CustomerID:  body.CustomerID,
		PeriodStart: start,
		PeriodEnd:   end,
		Notes:       body.Notes,
		AutoSend:    body.AutoSend,
		SendVia:     invoicing.Channel(body.SendVia),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if res == nil {
		h.Success(c, GenerateInvoiceResponse{Generated: false})
		return
	}
	inv := ToInvoiceResponse(res.Invoice)
	h.Created(c, GenerateInvoiceResponse{
		Generated:       true,
		Invoice:         &inv,
		RecordsInvoiced: res.RecordsInvoiced,
		ChargesInvoiced: res.ChargesInvoiced,
	})
}

// GenerateBatch godoc
//
//	@ID				generateInvoiceBatch
//	@Summary		Generate invoices for every customer
//	@Description	One invoice per customer holding pending deferred charges. Failing customers are listed in errors.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		BatchInvoiceBody	false	"Period and options"
//	@Success		200		{object}	dto.Response{data=BatchInvoiceResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/invoices/batch [post]
func (h *InvoiceHandler) GenerateBatch(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var body BatchInvoiceBody
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &body) {
		return
	}
	start, end, ok := h.period(c, body.PeriodStart, body.PeriodEnd)
	if !ok {
		return
	}

	res, err := h.invoices.GenerateBatch(c.Request.Context(), tenantID, billing.BatchOptions{
		PeriodStart:        start,
		PeriodEnd:          end,
		AutoSend:           body.AutoSend,
		SendVia:            invoicing.Channel(body.SendVia),
		ExcludeCustomerIDs: body.ExcludeCustomerIDs,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := BatchInvoiceResponse{
		Count:       res.Count,
		TotalAmount: res.TotalAmount,
		Invoices:    make([]InvoiceResponse, 0, len(res.Invoices)),
		Errors:      res.Errors,
	}
	for _, inv := range res.Invoices {
		resp.Invoices = append(resp.Invoices, ToInvoiceResponse(inv))
	}
	h.Success(c, resp)
}

// List godoc
//
//	@ID			listInvoices
//	@Summary	List invoices
//	@Tags		invoices
//	@Produce	json
//	@Param		customer_id	query		string		false	"Customer ID"
//	@Param		status		query		[]string	false	"Invoice status"	collectionFormat(multi)
//	@Param		page		query		int			false	"Page"
//	@Param		page_size	query		int			false	"Page size"
//	@Success	200			{object}	dto.Response{data=[]InvoiceResponse}
//	@Failure	400			{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q ListInvoicesQuery
	if !h.bindQuery(c, &q) {
		return
	}
	filter := invoicing.Filter{
		Filter: dto.ListRequest{Page: q.Page, PageSize: q.PageSize, OrderBy: q.OrderBy, OrderDir: q.OrderDir}.ToFilter(),
	}
	filter.CustomerID, _ = parseOptionalUUID(q.CustomerID)
	for _, s := range q.Status {
		filter.Statuses = append(filter.Statuses, invoicing.Status(s))
	}

	page, err := h.invoices.ListInvoices(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page, ToInvoiceResponses)
}

// Summary godoc
//
//	@ID			invoiceSummary
//	@Summary	Invoice totals by status
//	@Tags		invoices
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=invoicing.Summary}
//	@Security	BearerAuth
//	@Router		/billing/invoices/summary [get]
func (h *InvoiceHandler) Summary(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	summary, err := h.invoices.Summary(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Get godoc
//
//	@ID			getInvoice
//	@Summary	Get an invoice with its line items
//	@Tags		invoices
//	@Produce	json
//	@Param		id	path		string	true	"Invoice ID"
//	@Success	200	{object}	dto.Response{data=InvoiceResponse}
//	@Failure	404	{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetInvoice(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// RecordPayment godoc
//
//	@ID				recordInvoicePayment
//	@Summary		Record a payment against an invoice
//	@Description	Partial payments move the invoice to partially_paid. Paying in full settles its charges and reduces the account balance.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Invoice ID"
//	@Param			request	body		billing.PaymentInput	true	"Payment"
//	@Success		200		{object}	dto.Response{data=InvoiceResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		422		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var in billing.PaymentInput
	if !h.bindJSON(c, &in) {
		return
	}

	inv, err := h.invoices.RecordPayment(c.Request.Context(), tenantID, id, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// Send godoc
//
//	@ID			sendInvoice
//	@Summary	Send an invoice
//	@Tags		invoices
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Invoice ID"
//	@Param		request	body		SendInvoiceRequest	false	"Channel, email by default"
//	@Success	200		{object}	dto.Response{data=InvoiceResponse}
//	@Failure	422		{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/invoices/{id}/send [post]
func (h *InvoiceHandler) Send(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req SendInvoiceRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	via := invoicing.Channel(req.Via)
	if via == "" {
		via = invoicing.ChannelEmail
	}

	inv, err := h.invoices.SendInvoice(c.Request.Context(), tenantID, id, via)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// Void godoc
//
//	@ID				voidInvoice
//	@Summary		Void an invoice
//	@Description	Releases the invoice's records back to pending so they can be invoiced again
//	@Tags			invoices
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{object}	dto.Response{data=InvoiceResponse}
//	@Failure		422	{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/invoices/{id}/void [post]
func (h *InvoiceHandler) Void(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.VoidInvoice(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// MarkOverdue godoc
//
//	@ID			markInvoicesOverdue
//	@Summary	Flag sent invoices past their due date
//	@Tags		invoices
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=billing.OverdueResult}
//	@Security	BearerAuth
//	@Router		/billing/invoices/mark-overdue [post]
func (h *InvoiceHandler) MarkOverdue(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	res, err := h.invoices.MarkOverdue(c.Request.Context(), tenantID, h.now().UTC())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// GetTenantSchedule godoc
//
//	@ID				getTenantInvoiceSchedule
//	@Summary		Get the tenant's invoice schedule
//	@Description	Created monthly on the 1st when missing
//	@Tags			schedules
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=ScheduleResponse}
//	@Security		BearerAuth
//	@Router			/billing/schedules [get]
func (h *InvoiceHandler) GetTenantSchedule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	h.schedule(c, tenantID, nil)
}

// GetCustomerSchedule godoc
//
//	@ID			getCustomerInvoiceSchedule
//	@Summary	Get a customer's invoice schedule
//	@Tags		schedules
//	@Produce	json
//	@Param		customer_id	path		string	true	"Customer ID"
//	@Success	200			{object}	dto.Response{data=ScheduleResponse}
//	@Security	BearerAuth
//	@Router		/billing/schedules/customers/{customer_id} [get]
func (h *InvoiceHandler) GetCustomerSchedule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	customerID, ok := h.uuidParam(c, "customer_id")
	if !ok {
		return
	}
	h.schedule(c, tenantID, &customerID)
}

func (h *InvoiceHandler) schedule(c *gin.Context, tenantID uuid.UUID, customerID *uuid.UUID) {
	s, err := h.invoices.GetOrCreateSchedule(c.Request.Context(), tenantID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToScheduleResponse(s))
}

// UpdateSchedule godoc
//
//	@ID			updateInvoiceSchedule
//	@Summary	Update an invoice schedule
//	@Tags		schedules
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Schedule ID"
//	@Param		request	body		UpdateScheduleRequest	true	"Changes"
//	@Success	200		{object}	dto.Response{data=ScheduleResponse}
//	@Failure	400		{object}	dto.ErrorResponse
//	@Failure	404		{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/schedules/{id} [patch]
func (h *InvoiceHandler) UpdateSchedule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateScheduleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s, err := h.invoices.UpdateSchedule(c.Request.Context(), tenantID, id, req.toUpdate())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToScheduleResponse(s))
}

// RunAutoPay godoc
//
//	@ID				runAutoPay
//	@Summary		Collect open invoices from auto-pay customers
//	@Description	Charges each enrolled customer whose billing day is the given date (today by default)
//	@Tags			autopay
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RunDateRequest	false	"Business date"
//	@Success		200		{object}	dto.Response{data=billing.AutoPayResult}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/autopay/run [post]
func (h *InvoiceHandler) RunAutoPay(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req RunDateRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	day, err := parseDate(req.Date)
	if err != nil {
		h.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
		return
	}
	today := h.now().UTC()
	if day != nil {
		today = *day
	}

	res, err := h.autopay.Run(c.Request.Context(), tenantID, today)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// period parses optional period bounds. The end date is inclusive.
func (h *InvoiceHandler) period(c *gin.Context, rawStart, rawEnd string) (*time.Time, *time.Time, bool) {
	start, err := parseDate(rawStart)
	if err != nil {
		h.BadRequest(c, "Invalid period_start, expected YYYY-MM-DD")
		return nil, nil, false
	}
	end, err := parseDate(rawEnd)
	if err != nil {
		h.BadRequest(c, "Invalid period_end, expected YYYY-MM-DD")
		return nil, nil, false
	}
	if end != nil {
		e := end.Add(24*time.Hour - time.Nanosecond)
		end = &e
	}
	return start, end, true
}
