package payment

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"go.uber.org/zap"
)

// Decline reasons returned by the simulated processor
const (
	DeclineCardDeclined       = "card_declined"
	DeclineMethodNotSupported = "payment_method_not_supported"
	DeclineInvalidAmount      = "invalid_amount"
)

// SimulatedGateway captures payments without contacting a processor.
// Cash and check instruments cannot be captured remotely and are declined.
type SimulatedGateway struct {
	node       *snowflake.Node
	declineAll bool
	logger     *zap.Logger
}

// NewSimulatedGateway creates a SimulatedGateway
func NewSimulatedGateway(cfg GatewayConfig, logger *zap.Logger) (*SimulatedGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create reference generator: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedGateway{node: node, declineAll: cfg.DeclineAll, logger: logger.Named("gateway")}, nil
}

// Capture implements settlement.PaymentCapture
func (g *SimulatedGateway) Capture(ctx context.Context, req settlement.CaptureRequest) (settlement.CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return settlement.CaptureResult{}, err
	}

	var reason string
	switch {
	case !req.Amount.IsPositive():
		reason = DeclineInvalidAmount
	case req.MethodType == settlement.MethodCash || req.MethodType == settlement.MethodCheck:
		reason = DeclineMethodNotSupported
	case g.declineAll:
		reason = DeclineCardDeclined
	}

	if reason != "" {
		g.logger.Info("Capture declined",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("reason", reason),
		)
		return settlement.CaptureResult{FailureReason: reason}, nil
	}

	ref := "ch_" + g.node.Generate().Base58()
	g.logger.Info("Capture approved",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("reference", ref),
	)
	return settlement.CaptureResult{Success: true, Reference: ref}, nil
}

var _ settlement.PaymentCapture = (*SimulatedGateway)(nil)
