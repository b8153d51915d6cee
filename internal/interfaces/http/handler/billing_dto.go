package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Charges
// ============================================================================

// RecordChargeRequest records a manual or custom charge
//
//	@Description	Billable event to price and record
type RecordChargeRequest struct {
	CustomerID  uuid.UUID  `json:"customer_id" binding:"required"`
	MailboxID   string     `json:"mailbox_id" binding:"max=50"`
	ServiceType string     `json:"service_type" binding:"required,oneof=receiving storage forwarding scanning pickup disposal shipping custom" example:"scanning"`
	Description string     `json:"description" binding:"max=500"`
	Quantity    int        `json:"quantity" binding:"omitempty,min=1" example:"1"`
	PackageID   *uuid.UUID `json:"package_id,omitempty"`
	ShipmentID  *uuid.UUID `json:"shipment_id,omitempty"`
	MailPieceID *uuid.UUID `json:"mail_piece_id,omitempty"`
	Notes       string     `json:"notes" binding:"max=2000"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

func (r RecordChargeRequest) toInput(tenantID uuid.UUID, actorID *uuid.UUID) ledger.ChargeInput {
	in := ledger.ChargeInput{
		TenantID:    tenantID,
		CustomerID:  r.CustomerID,
		MailboxID:   r.MailboxID,
		ServiceType: ledger.ServiceType(r.ServiceType),
		Description: r.Description,
		Quantity:    r.Quantity,
		PackageID:   r.PackageID,
		ShipmentID:  r.ShipmentID,
		MailPieceID: r.MailPieceID,
		CreatedByID: actorID,
		Notes:       r.Notes,
	}
	if r.OccurredAt != nil {
		in.OccurredAt = *r.OccurredAt
	}
	return in
}

// ReverseChargeRequest gives the reason for a reversal
type ReverseChargeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ListChargesQuery filters the charge ledger
type ListChargesQuery struct {
	Page        int      `form:"page" binding:"omitempty,min=1"`
	PageSize    int      `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string   `form:"order_by" binding:"omitempty,oneof=created_at total service_type status"`
	OrderDir    string   `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	CustomerID  string   `form:"customer_id" binding:"omitempty,uuid"`
	ServiceType string   `form:"service_type" binding:"omitempty,oneof=receiving storage forwarding scanning pickup disposal shipping custom"`
	Status      []string `form:"status" binding:"omitempty,dive,oneof=pending posted invoiced paid void"`
	From        string   `form:"from"`
	To          string   `form:"to"`
}

// StorageRunRequest runs the storage sweep for one day
type StorageRunRequest struct {
	Day string `json:"day" example:"2026-10-16"`
}

// ChargeResponse is a charge entry
//
//	@Description	Charge ledger entry
type ChargeResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenant_id"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	MailboxID          string          `json:"mailbox_id,omitempty"`
	ServiceType        string          `json:"service_type" example:"receiving"`
	Description        string          `json:"description"`
	Quantity           int             `json:"quantity"`
	UnitRate           decimal.Decimal `json:"unit_rate"`
	CostBasis          decimal.Decimal `json:"cost_basis"`
	Markup             decimal.Decimal `json:"markup"`
	Total              decimal.Decimal `json:"total"`
	PriceSource        string          `json:"price_source"`
	Status             string          `json:"status" example:"posted"`
	PackageID          *uuid.UUID      `json:"package_id,omitempty"`
	ShipmentID         *uuid.UUID      `json:"shipment_id,omitempty"`
	MailPieceID        *uuid.UUID      `json:"mail_piece_id,omitempty"`
	SettlementRecordID *uuid.UUID      `json:"settlement_record_id,omitempty"`
	ReversalOf         *uuid.UUID      `json:"reversal_of,omitempty"`
	CreatedByID        *uuid.UUID      `json:"created_by_id,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ToChargeResponse converts a charge entry
func ToChargeResponse(e *ledger.ChargeEntry) ChargeResponse {
	return ChargeResponse{
		ID:                 e.ID,
		TenantID:           e.TenantID,
		CustomerID:         e.CustomerID,
		MailboxID:          e.MailboxID,
		ServiceType:        string(e.ServiceType),
		Description:        e.Description,
		Quantity:           e.Quantity,
		UnitRate:           e.UnitRate,
		CostBasis:          e.CostBasis,
		Markup:             e.Markup,
		Total:              e.Total,
		PriceSource:        string(e.PriceSource),
		Status:             string(e.Status),
		PackageID:          e.PackageID,
		ShipmentID:         e.ShipmentID,
		MailPieceID:        e.MailPieceID,
		SettlementRecordID: e.SettlementRecordID,
		ReversalOf:         e.ReversalOf,
		CreatedByID:        e.CreatedByID,
		Notes:              e.Notes,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// ToChargeResponses converts a page of charge entries
func ToChargeResponses(entries []ledger.ChargeEntry) []ChargeResponse {
	out := make([]ChargeResponse, len(entries))
	for i := range entries {
		out[i] = ToChargeResponse(&entries[i])
	}
	return out
}

// RecordChargeResponse reports a recorded charge and its settlement
type RecordChargeResponse struct {
	Charged       bool                  `json:"charged"`
	Charge        *ChargeResponse       `json:"charge,omitempty"`
	Price         pricing.ResolvedPrice `json:"price"`
	Settlement    *billing.SettleResult `json:"settlement,omitempty"`
	UsageRecordID *uuid.UUID            `json:"usage_record_id,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// ToRecordChargeResponse converts a recording result. A nil result means
// the event was free.
func ToRecordChargeResponse(res *billing.RecordChargeResult) RecordChargeResponse {
	if res == nil || res.Entry == nil {
		return RecordChargeResponse{Charged: false}
	}
	charge := ToChargeResponse(res.Entry)
	return RecordChargeResponse{
		Charged:       true,
		Charge:        &charge,
		Price:         res.Price,
		Settlement:    res.Settlement,
		UsageRecordID: res.UsageRecordID,
		Warnings:      res.Warnings,
	}
}

// ReverseChargeResponse is the voided charge and its offset
type ReverseChargeResponse struct {
	Original ChargeResponse `json:"original"`
	Reversal ChargeResponse `json:"reversal"`
}

// CheckoutResponse reports a package checkout
type CheckoutResponse struct {
	Charges []RecordChargeResponse `json:"charges"`
	Errors  []billing.BatchError   `json:"errors,omitempty"`
}

// ============================================================================
// Settlement
// ============================================================================

// SettleChargeRequest settles a recorded charge
type SettleChargeRequest struct {
	EntryID         uuid.UUID       `json:"entry_id" binding:"required"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
	Tax             decimal.Decimal `json:"tax"`
}

// SettlementRecordResponse is a settlement record
//
//	@Description	Payment outcome of a charge
type SettlementRecordResponse struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	Mode              string          `json:"mode" example:"immediate"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	Status            string          `json:"status" example:"paid"`
	PaymentMethodID   *uuid.UUID      `json:"payment_method_id,omitempty"`
	PaymentMethodType string          `json:"payment_method_type,omitempty"`
	PaymentRef        string          `json:"payment_ref,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	RetryCount        int             `json:"retry_count"`
	LastRetryAt       *time.Time      `json:"last_retry_at,omitempty"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	ChargeEntryID     *uuid.UUID      `json:"charge_entry_id,omitempty"`
	InvoiceID         *uuid.UUID      `json:"invoice_id,omitempty"`
	FallbackOf        *uuid.UUID      `json:"fallback_of,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToSettlementRecordResponse converts a settlement record
func ToSettlementRecordResponse(r *settlement.Record) SettlementRecordResponse {
	return SettlementRecordResponse{
		ID:                r.ID,
		CustomerID:        r.CustomerID,
		Mode:              string(r.Mode),
		Description:       r.Description,
		Amount:            r.Amount,
		Tax:               r.Tax,
		Total:             r.Total,
		Status:            string(r.Status),
		PaymentMethodID:   r.PaymentMethodID,
		PaymentMethodType: r.PaymentMethodType,
		PaymentRef:        r.PaymentRef,
		FailureReason:     r.FailureReason,
		RetryCount:        r.RetryCount,
		LastRetryAt:       r.LastRetryAt,
		DueDate:           r.DueDate,
		PaidAt:            r.PaidAt,
		ChargeEntryID:     r.ChargeEntryID,
		InvoiceID:         r.InvoiceID,
		FallbackOf:        r.FallbackOf,
		CreatedAt:         r.CreatedAt,
	}
}

// ============================================================================
// Invoices
// ============================================================================

// GenerateInvoiceBody requests an invoice for one customer
type GenerateInvoiceBody struct {
	CustomerID  uuid.UUID `json:"customer_id" binding:"required"`
	PeriodStart string    `json:"period_start" example:"2026-09-01"`
	PeriodEnd   string    `json:"period_end" example:"2026-09-30"`
	Notes       string    `json:"notes" binding:"max=2000"`
	AutoSend    bool      `json:"auto_send"`
	SendVia     string    `json:"send_via" binding:"omitempty,oneof=email in_app print"`
}

// BatchInvoiceBody requests invoices for every customer with pending records
type BatchInvoiceBody struct {
	PeriodStart        string      `json:"period_start"`
	PeriodEnd          string      `json:"period_end"`
	AutoSend           bool        `json:"auto_send"`
	SendVia            string      `json:"send_via" binding:"omitempty,oneof=email in_app print"`
	ExcludeCustomerIDs []uuid.UUID `json:"exclude_customer_ids"`
}

// SendInvoiceRequest picks the delivery channel
type SendInvoiceRequest struct {
	Via string `json:"via" binding:"omitempty,oneof=email in_app print"`
}

// ListInvoicesQuery filters invoices
type ListInvoicesQuery struct {
	Page       int      `form:"page" binding:"omitempty,min=1"`
	PageSize   int      `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string   `form:"order_by" binding:"omitempty,oneof=created_at due_date amount number status"`
	OrderDir   string   `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	CustomerID string   `form:"customer_id" binding:"omitempty,uuid"`
	Status     []string `form:"status" binding:"omitempty,dive,oneof=draft sent partially_paid paid overdue void"`
}

// UpdateScheduleRequest changes an invoice schedule. Absent fields are kept.
type UpdateScheduleRequest struct {
	Frequency  *string `json:"frequency" binding:"omitempty,oneof=weekly biweekly monthly on_demand"`
	DayOfWeek  *int    `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	DayOfMonth *int    `json:"day_of_month" binding:"omitempty,min=1,max=31"`
	IsActive   *bool   `json:"is_active"`
}

func (r UpdateScheduleRequest) toUpdate() invoicing.ScheduleUpdate {
	u := invoicing.ScheduleUpdate{
		DayOfWeek:  r.DayOfWeek,
		DayOfMonth: r.DayOfMonth,
		IsActive:   r.IsActive,
	}
	if r.Frequency != nil {
		f := invoicing.Frequency(*r.Frequency)
		u.Frequency = &f
	}
	return u
}

// RunDateRequest carries an optional business date for batch operations
type RunDateRequest struct {
	Date string `json:"date" example:"2026-10-16"`
}

// LineItemResponse is an invoice line
type LineItemResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Description        string          `json:"description"`
	ServiceType        string          `json:"service_type,omitempty"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Amount             decimal.Decimal `json:"amount"`
	SettlementRecordID *uuid.UUID      `json:"settlement_record_id,omitempty"`
	ChargeEntryID      *uuid.UUID      `json:"charge_entry_id,omitempty"`
}

// InvoiceResponse is an invoice with its lines
//
//	@Description	Customer invoice
type InvoiceResponse struct {
	ID              uuid.UUID          `json:"id"`
	Number          string             `json:"number" example:"INV-20261001-00001"`
	CustomerID      uuid.UUID          `json:"customer_id"`
	Type            string             `json:"type"`
	Amount          decimal.Decimal    `json:"amount"`
	Tax             decimal.Decimal    `json:"tax"`
	Total           decimal.Decimal    `json:"total"`
	AmountPaid      decimal.Decimal    `json:"amount_paid"`
	AmountDue       decimal.Decimal    `json:"amount_due"`
	Status          string             `json:"status" example:"sent"`
	DueDate         time.Time          `json:"due_date"`
	PeriodStart     *time.Time         `json:"period_start,omitempty"`
	PeriodEnd       *time.Time         `json:"period_end,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
	SentVia         string             `json:"sent_via,omitempty"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	PaymentMethodID *uuid.UUID         `json:"payment_method_id,omitempty"`
	PaymentRef      string             `json:"payment_ref,omitempty"`
	LineItems       []LineItemResponse `json:"line_items,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ToInvoiceResponse converts an invoice
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID,
		Number:          inv.Number,
		CustomerID:      inv.CustomerID,
		Type:            inv.Type,
		Amount:          inv.Amount,
		Tax:             inv.Tax,
		Total:           inv.Total(),
		AmountPaid:      inv.AmountPaid,
		AmountDue:       inv.AmountDue(),
		Status:          string(inv.Status),
		DueDate:         inv.DueDate,
		PeriodStart:     inv.PeriodStart,
		PeriodEnd:       inv.PeriodEnd,
		Notes:           inv.Notes,
		SentAt:          inv.SentAt,
		SentVia:         string(inv.SentVia),
		PaidAt:          inv.PaidAt,
		PaymentMethodID: inv.PaymentMethodID,
		PaymentRef:      inv.PaymentRef,
		CreatedAt:       inv.CreatedAt,
	}
	for _, li := range inv.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:                 li.ID,
			Description:        li.Description,
			ServiceType:        li.ServiceType,
			Quantity:           li.Quantity,
			UnitPrice:          li.UnitPrice,
			Amount:             li.Amount,
			SettlementRecordID: li.SettlementRecordID,
			ChargeEntryID:      li.ChargeEntryID,
		})
	}
	return resp
}

// ToInvoiceResponses converts a page of invoices
func ToInvoiceResponses(invoices []invoicing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceResponse(&invoices[i])
	}
	return out
}

// GenerateInvoiceResponse reports a generated invoice
type GenerateInvoiceResponse struct {
	Generated       bool             `json:"generated"`
	Invoice         *InvoiceResponse `json:"invoice,omitempty"`
	RecordsInvoiced int              `json:"records_invoiced"`
	ChargesInvoiced int64            `json:"charges_invoiced"`
}

// BatchInvoiceResponse reports a batch run
type BatchInvoiceResponse struct {
	Count       int                  `json:"count"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Invoices    []InvoiceResponse    `json:"invoices"`
	Errors      []billing.BatchError `json:"errors,omitempty"`
}

// ScheduleResponse is an invoice schedule
type ScheduleResponse struct {
	ID         uuid.UUID  `json:"id"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	Frequency  string     `json:"frequency" example:"monthly"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"`
	DayOfMonth *int       `json:"day_of_month,omitempty"`
	IsActive   bool       `json:"is_active"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
}

// ToScheduleResponse converts a schedule
func ToScheduleResponse(s *invoicing.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:         s.ID,
		CustomerID: s.CustomerID,
		Frequency:  string(s.Frequency),
		DayOfWeek:  s.DayOfWeek,
		DayOfMonth: s.DayOfMonth,
		IsActive:   s.IsActive,
		NextRunAt:  s.NextRunAt,
	}
}

// ============================================================================
// Pricing
// ============================================================================

// ResolvePriceBody asks for a customer's price of a service
type ResolvePriceBody struct {
	CustomerID  uuid.UUID `json:"customer_id" binding:"required"`
	ServiceType string    `json:"service_type" binding:"required,oneof=receiving storage forwarding scanning pickup disposal shipping custom"`
	Quantity    int       `json:"quantity" binding:"omitempty,min=1"`
}

// ActionRequest creates or updates a priced action
type ActionRequest struct {
	Key                 string           `json:"key" binding:"required,max=50" example:"scan_per_page"`
	Name                string           `json:"name" binding:"required,max=100"`
	Description         string           `json:"description" binding:"max=500"`
	Category            string           `json:"category" binding:"required,oneof=mail package shipping scanning notary general"`
	RetailPrice         decimal.Decimal  `json:"retail_price"`
	UnitLabel           string           `json:"unit_label" binding:"max=30"`
	HasTieredPricing    bool             `json:"has_tiered_pricing"`
	FirstUnitPrice      *decimal.Decimal `json:"first_unit_price,omitempty"`
	AdditionalUnitPrice *decimal.Decimal `json:"additional_unit_price,omitempty"`
	Cogs                decimal.Decimal  `json:"cogs"`
	CogsFirstUnit       *decimal.Decimal `json:"cogs_first_unit,omitempty"`
	CogsAdditionalUnit  *decimal.Decimal `json:"cogs_additional_unit,omitempty"`
	SortOrder           int              `json:"sort_order"`
}

func (r ActionRequest) toInput() pricing.ActionInput {
	return pricing.ActionInput{
		Key:                 r.Key,
		Name:                r.Name,
		Description:         r.Description,
		Category:            pricing.Category(r.Category),
		RetailPrice:         r.RetailPrice,
		UnitLabel:           r.UnitLabel,
		HasTieredPricing:    r.HasTieredPricing,
		FirstUnitPrice:      r.FirstUnitPrice,
		AdditionalUnitPrice: r.AdditionalUnitPrice,
		Cogs:                r.Cogs,
		CogsFirstUnit:       r.CogsFirstUnit,
		CogsAdditionalUnit:  r.CogsAdditionalUnit,
		SortOrder:           r.SortOrder,
	}
}

// OverrideRequest sets a segment or customer price
type OverrideRequest struct {
	TargetType          string           `json:"target_type" binding:"required,oneof=segment customer"`
	TargetValue         string           `json:"target_value" binding:"required,max=100"`
	TargetLabel         string           `json:"target_label" binding:"max=100"`
	RetailPrice         *decimal.Decimal `json:"retail_price,omitempty"`
	FirstUnitPrice      *decimal.Decimal `json:"first_unit_price,omitempty"`
	AdditionalUnitPrice *decimal.Decimal `json:"additional_unit_price,omitempty"`
	Cogs                *decimal.Decimal `json:"cogs,omitempty"`
	CogsFirstUnit       *decimal.Decimal `json:"cogs_first_unit,omitempty"`
	CogsAdditionalUnit  *decimal.Decimal `json:"cogs_additional_unit,omitempty"`
}

func (r OverrideRequest) toInput() pricing.OverrideInput {
	return pricing.OverrideInput{
		TargetType:          pricing.TargetType(r.TargetType),
		TargetValue:         r.TargetValue,
		TargetLabel:         r.TargetLabel,
		RetailPrice:         r.RetailPrice,
		FirstUnitPrice:      r.FirstUnitPrice,
		AdditionalUnitPrice: r.AdditionalUnitPrice,
		Cogs:                r.Cogs,
		CogsFirstUnit:       r.CogsFirstUnit,
		CogsAdditionalUnit:  r.CogsAdditionalUnit,
	}
}

// OverrideResponse is a price override
type OverrideResponse struct {
	ID                  uuid.UUID        `json:"id"`
	ActionID            uuid.UUID        `json:"action_id"`
	TargetType          string           `json:"target_type"`
	TargetValue         string           `json:"target_value"`
	TargetLabel         string           `json:"target_label,omitempty"`
	RetailPrice         *decimal.Decimal `json:"retail_price,omitempty"`
	FirstUnitPrice      *decimal.Decimal `json:"first_unit_price,omitempty"`
	AdditionalUnitPrice *decimal.Decimal `json:"additional_unit_price,omitempty"`
	Cogs                *decimal.Decimal `json:"cogs,omitempty"`
	CogsFirstUnit       *decimal.Decimal `json:"cogs_first_unit,omitempty"`
	CogsAdditionalUnit  *decimal.Decimal `json:"cogs_additional_unit,omitempty"`
}

// ToOverrideResponse converts an override
func ToOverrideResponse(o *pricing.PriceOverride) OverrideResponse {
	return OverrideResponse{
		ID:                  o.ID,
		ActionID:            o.ActionID,
		TargetType:          string(o.TargetType),
		TargetValue:         o.TargetValue,
		TargetLabel:         o.TargetLabel,
		RetailPrice:         o.RetailPrice,
		FirstUnitPrice:      o.FirstUnitPrice,
		AdditionalUnitPrice: o.AdditionalUnitPrice,
		Cogs:                o.Cogs,
		CogsFirstUnit:       o.CogsFirstUnit,
		CogsAdditionalUnit:  o.CogsAdditionalUnit,
	}
}

// ActionResponse is a priced action with its overrides
//
//	@Description	Tenant price catalog entry
type ActionResponse struct {
	ID                  uuid.UUID          `json:"id"`
	Key                 string             `json:"key"`
	Name                string             `json:"name"`
	Description         string             `json:"description,omitempty"`
	Category            string             `json:"category"`
	RetailPrice         decimal.Decimal    `json:"retail_price"`
	UnitLabel           string             `json:"unit_label,omitempty"`
	HasTieredPricing    bool               `json:"has_tiered_pricing"`
	FirstUnitPrice      *decimal.Decimal   `json:"first_unit_price,omitempty"`
	AdditionalUnitPrice *decimal.Decimal   `json:"additional_unit_price,omitempty"`
	Cogs                decimal.Decimal    `json:"cogs"`
	CogsFirstUnit       *decimal.Decimal   `json:"cogs_first_unit,omitempty"`
	CogsAdditionalUnit  *decimal.Decimal   `json:"cogs_additional_unit,omitempty"`
	IsActive            bool               `json:"is_active"`
	SortOrder           int                `json:"sort_order"`
	Overrides           []OverrideResponse `json:"overrides"`
}

// ToActionResponse converts a priced action
func ToActionResponse(a *pricing.PricedAction) ActionResponse {
	resp := ActionResponse{
		ID:                  a.ID,
		Key:                 string(a.Key),
		Name:                a.Name,
		Description:         a.Description,
		Category:            string(a.Category),
		RetailPrice:         a.RetailPrice,
		UnitLabel:           a.UnitLabel,
		HasTieredPricing:    a.HasTieredPricing,
		FirstUnitPrice:      a.FirstUnitPrice,
		AdditionalUnitPrice: a.AdditionalUnitPrice,
		Cogs:                a.Cogs,
		CogsFirstUnit:       a.CogsFirstUnit,
		CogsAdditionalUnit:  a.CogsAdditionalUnit,
		IsActive:            a.IsActive,
		SortOrder:           a.SortOrder,
		Overrides:           make([]OverrideResponse, 0, len(a.Overrides)),
	}
	for i := range a.Overrides {
		resp.Overrides = append(resp.Overrides, ToOverrideResponse(&a.Overrides[i]))
	}
	return resp
}
