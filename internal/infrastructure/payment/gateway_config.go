package payment

import (
	"errors"
	"time"

	"github.com/mailcenter/billing/internal/infrastructure/config"
)

// GatewayConfig configures the capture path
type GatewayConfig struct {
	// NodeID distinguishes processes minting payment references
	NodeID int64
	// RatePerSecond caps captures sent to the processor; zero disables the cap
	RatePerSecond float64
	Burst         int
	// WaitTimeout bounds how long a capture may queue for a rate-limit slot
	WaitTimeout time.Duration
	DeclineAll  bool
}

// GatewayConfigFrom builds a GatewayConfig from application config
func GatewayConfigFrom(cfg config.BillingConfig, nodeID int64) GatewayConfig {
	return GatewayConfig{
		NodeID:        nodeID,
		RatePerSecond: cfg.CaptureRatePerSec,
		Burst:         cfg.CaptureBurst,
		WaitTimeout:   cfg.CaptureTimeout,
		DeclineAll:    cfg.SimulatedDeclineAll,
	}
}

// Validate checks the config
func (c GatewayConfig) Validate() error {
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errors.New("payment node id must be between 0 and 1023")
	}
	if c.RatePerSecond < 0 {
		return errors.New("capture rate must not be negative")
	}
	if c.RatePerSecond > 0 && c.Burst <= 0 {
		return errors.New("capture burst must be positive when a rate is set")
	}
	return nil
}
