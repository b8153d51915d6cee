package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/interfaces/http/dto"
)

// SettlementService settles charges and reports balances
type SettlementService interface {
	Settle(ctx context.Context, req billing.SettleRequest) (*billing.SettleResult, error)
	RetryFailed(ctx context.Context, tenantID, recordID uuid.UUID) (*billing.SettleResult, error)
	GetRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*settlement.Record, error)
	GetAccountBalance(ctx context.Context, tenantID, customerID uuid.UUID) (*settlement.BalanceSummary, error)
	ListOutstandingBalances(ctx context.Context, tenantID uuid.UUID) ([]settlement.BalanceSummary, error)
}

// RetryEnqueuer queues a failed payment retry for a worker
type RetryEnqueuer interface {
	EnqueueRetry(ctx context.Context, tenantID, recordID uuid.UUID) error
}

// RetryQueuedResponse acknowledges a queued retry
type RetryQueuedResponse struct {
	RecordID uuid.UUID `json:"record_id"`
	Queued   bool      `json:"queued"`
}

// SettlementHandler exposes settlement and account balances
type SettlementHandler struct {
	BaseHandler
	settlements SettlementService
	retries     RetryEnqueuer
}

// NewSettlementHandler creates a new SettlementHandler. retries may be nil,
// in which case asynchronous retries are refused.
func NewSettlementHandler(settlements SettlementService, retries RetryEnqueuer) *SettlementHandler {
	return &SettlementHandler{settlements: settlements, retries: retries}
}

// Settle godoc
//
//	@ID				settleCharge
//	@Summary		Settle a charge
//	@Description	Collect a recorded charge now or defer it to the next invoice, per the customer's terms. Settling twice returns the existing outcome.
//	@Tags			settlement
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SettleChargeRequest	true	"Charge to settle"
//	@Success		200		{object}	dto.Response{data=billing.SettleResult}
//	@Failure		404		{object}	dto.ErrorResponse
//	@Failure		409		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/settlements [post]
func (h *SettlementHandler) Settle(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req SettleChargeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.settlements.Settle(c.Request.Context(), billing.SettleRequest{
		TenantID:        tenantID,
		EntryID:         req.EntryID,
		PaymentMethodID: req.PaymentMethodID,
		Tax:             req.Tax,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// RetryFailed godoc
//
//	@ID				retryFailedPayment
//	@Summary		Retry a failed payment
//	@Description	Re-attempt capture of a failed immediate record. With async=true the retry is queued and 202 is returned.
//	@Tags			settlement
//	@Produce		json
//	@Param			id		path		string	true	"Settlement record ID"
//	@Param			async	query		bool	false	"Queue the retry"
//	@Success		200		{object}	dto.Response{data=billing.SettleResult}
//	@Success		202		{object}	dto.Response{data=RetryQueuedResponse}
//	@Failure		404		{object}	dto.ErrorResponse
//	@Failure		422		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/settlements/{id}/retry [post]
func (h *SettlementHandler) RetryFailed(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		h.enqueueRetry(c, tenantID, id)
		return
	}

	res, err := h.settlements.RetryFailed(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

func (h *SettlementHandler) enqueueRetry(c *gin.Context, tenantID, recordID uuid.UUID) {
	if h.retries == nil {
		h.BadRequest(c, "Asynchronous retries are not enabled")
		return
	}
	// Fail fast on records that cannot be retried instead of queueing them.
	record, err := h.settlements.GetRecord(c.Request.Context(), tenantID, recordID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := record.CheckRetryable(); err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.retries.EnqueueRetry(c.Request.Context(), tenantID, recordID); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(RetryQueuedResponse{RecordID: recordID, Queued: true}))
}

// GetRecord godoc
//
//	@ID			getSettlementRecord
//	@Summary	Get a settlement record
//	@Tags		settlement
//	@Produce	json
//	@Param		id	path		string	true	"Settlement record ID"
//	@Success	200	{object}	dto.Response{data=SettlementRecordResponse}
//	@Failure	404	{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/settlements/{id} [get]
func (h *SettlementHandler) GetRecord(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	record, err := h.settlements.GetRecord(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSettlementRecordResponse(record))
}

// GetBalance godoc
//
//	@ID			getAccountBalance
//	@Summary	Get a customer's account balance
//	@Tags		balances
//	@Produce	json
//	@Param		customer_id	path		string	true	"Customer ID"
//	@Success	200			{object}	dto.Response{data=settlement.BalanceSummary}
//	@Failure	404			{object}	dto.ErrorResponse
//	@Security	BearerAuth
//	@Router		/billing/balances/{customer_id} [get]
func (h *SettlementHandler) GetBalance(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	customerID, ok := h.uuidParam(c, "customer_id")
	if !ok {
		return
	}
	balance, err := h.settlements.GetAccountBalance(c.Request.Context(), tenantID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// ListOutstanding godoc
//
//	@ID				listOutstandingBalances
//	@Summary		List outstanding balances
//	@Description	Every customer of the tenant with a non-zero balance or pending deferred charges
//	@Tags			balances
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=[]settlement.BalanceSummary}
//	@Security		BearerAuth
//	@Router			/billing/balances [get]
func (h *SettlementHandler) ListOutstanding(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	balances, err := h.settlements.ListOutstandingBalances(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if balances == nil {
		balances = []settlement.BalanceSummary{}
	}
	h.Success(c, balances)
}
