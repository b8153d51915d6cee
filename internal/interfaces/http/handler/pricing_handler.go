package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
)

// PricingService resolves prices and edits the tenant catalog
type PricingService interface {
	ResolvePrice(ctx context.Context, req billing.ResolvePriceRequest) pricing.ResolvedPrice
	ListActions(ctx context.Context, tenantID uuid.UUID) ([]pricing.PricedAction, error)
	CreateAction(ctx context.Context, tenantID uuid.UUID, in pricing.ActionInput) (*pricing.PricedAction, error)
	UpdateAction(ctx context.Context, tenantID, actionID uuid.UUID, in pricing.ActionInput) (*pricing.PricedAction, error)
	DeactivateAction(ctx context.Context, tenantID, actionID uuid.UUID) error
	UpsertOverride(ctx context.Context, tenantID, actionID uuid.UUID, in pricing.OverrideInput) (*pricing.PriceOverride, error)
	DeleteOverride(ctx context.Context, tenantID, overrideID uuid.UUID) error
}

// PricingHandler exposes price resolution and the price catalog
type PricingHandler struct {
	BaseHandler
	pricing PricingService
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(pricing PricingService) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// Resolve godoc
//
//	@ID				resolvePrice
//	@Summary		Quote a service for a customer
//	@Description	Applies customer and segment overrides and tiered pricing. Never fails: missing catalog entries fall back to the tenant's default rates.
//	@Tags			pricing
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ResolvePriceBody	true	"Customer, service and quantity"
//	@Success		200		{object}	dto.Response{data=pricing.ResolvedPrice}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/prices/resolve [post]
func (h *PricingHandler) Resolve(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var body ResolvePriceBody
	if !h.bindJSON(c, &body) {
		return
	}
	quantity := body.Quantity
	if quantity == 0 {
		quantity = 1
	}
	price := h.pricing.ResolvePrice(c.Request.Context(), billing.ResolvePriceRequest{
		TenantID:    tenantID,
		CustomerID:  body.CustomerID,
		ServiceType: ledger.ServiceType(body.ServiceType),
		Quantity:    quantity,
	})
	h.Success(c, price)
}

// ListActions godoc
//
//	@ID			listPricedActions
//	@Summary	List the price catalog
//	@Tags		pricing
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=[]ActionResponse}
//	@Security	BearerAuth
//	@Router		/billing/actions [get]
func (h *PricingHandler) ListActions(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	actions, err := h.pricing.ListActions(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]ActionResponse, len(actions))
	for i := range actions {
		out[i] = ToActionResponse(&actions[i])
	}
	h.Success(c, out)
}

// CreateAction godoc
//
//	@ID			createPricedAction
//	@Summary	Add a priced action
//	@Tags		pricing
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ActionRequest	true	"Action"
//	@Success	201		{object}	dto.Response{data=ActionResponse}
//	@Failure	400		{object}	dto.ErrorResponse
//	@Failure	409		{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/actions [post]
func (h *PricingHandler) CreateAction(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req ActionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := h.pricing.CreateAction(c.Request.Context(), tenantID, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToActionResponse(action))
}

// UpdateAction godoc
//
//	@ID				updatePricedAction
//	@Summary		Update a priced action
//	@Description	The key cannot be changed
//	@Tags			pricing
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Action ID"
//	@Param			request	body		ActionRequest	true	"Action"
//	@Success		200		{object}	dto.Response{data=ActionResponse}
//	@Failure		404		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/actions/{id} [put]
func (h *PricingHandler) UpdateAction(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req ActionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := h.pricing.UpdateAction(c.Request.Context(), tenantID, id, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToActionResponse(action))
}

// DeactivateAction godoc
//
//	@ID				deactivatePricedAction
//	@Summary		Deactivate a priced action
//	@Description	Resolution falls back to the tenant's default rate afterwards
//	@Tags			pricing
//	@Param			id	path	string	true	"Action ID"
//	@Success		204
//	@Failure		404	{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/actions/{id} [delete]
func (h *PricingHandler) DeactivateAction(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.pricing.DeactivateAction(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// UpsertOverride godoc
//
//	@ID			upsertPriceOverride
//	@Summary	Set a segment or customer price for an action
//	@Tags		pricing
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Action ID"
//	@Param		request	body		OverrideRequest	true	"Override"
//	@Success	200		{object}	dto.Response{data=OverrideResponse}
//	@Failure	400		{object}	dto.ErrorResponse
//	@Failure	404		{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/actions/{id}/overrides [put]
func (h *PricingHandler) UpsertOverride(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	actionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req OverrideRequest
	if !h.bindJSON(c, &req) {
		return
	}
	override, err := h.pricing.UpsertOverride(c.Request.Context(), tenantID, actionID, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToOverrideResponse(override))
}

// DeleteOverride godoc
//
//	@ID			deletePriceOverride
//	@Summary	Remove a price override
//	@Tags		pricing
//	@Param		id	path	string	true	"Override ID"
//	@Success	204
//	@Failure	404	{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/overrides/{id} [delete]
func (h *PricingHandler) DeleteOverride(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.pricing.DeleteOverride(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
