package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mailcenter/billing/internal/infrastructure/auth"
	"github.com/mailcenter/billing/internal/interfaces/http/handler"
	"github.com/mailcenter/billing/internal/interfaces/http/middleware"
)

// BillingHandlers are the handlers mounted under /billing
type BillingHandlers struct {
	Charges     *handler.ChargeHandler
	Settlements *handler.SettlementHandler
	Invoices    *handler.InvoiceHandler
	Pricing     *handler.PricingHandler
	System      *handler.SystemHandler
}

// NewBillingGroup builds the billing API. Reads need billing:read, money
// movements billing:write, and catalog edits and batch runs billing:admin.
func NewBillingGroup(h BillingHandlers, mw ...gin.HandlerFunc) *DomainGroup {
	read := middleware.RequirePermission(auth.PermBillingRead)
	write := middleware.RequirePermission(auth.PermBillingWrite)
	admin := middleware.RequirePermission(auth.PermBillingAdmin)

	billing := NewDomainGroup("billing", "/billing").Use(mw...)

	billing.Group("charges", "/charges").
		POST("", write, h.Charges.RecordCharge).
		GET("", read, h.Charges.ListCharges).
		GET("/:id", read, h.Charges.GetCharge).
		POST("/:id/reverse", write, h.Charges.ReverseCharge)

	billing.Group("events", "/events").
		POST("/package-checkin", write, h.Charges.PackageCheckIn).
		POST("/package-checkout", write, h.Charges.PackageCheckout).
		POST("/shipment-created", write, h.Charges.ShipmentCreated).
		POST("/mail-action", write, h.Charges.MailAction)

	billing.POST("/storage/run", admin, h.Charges.RunStorage)

	billing.Group("settlements", "/settlements").
		POST("", write, h.Settlements.Settle).
		GET("/:id", read, h.Settlements.GetRecord).
		POST("/:id/retry", write, h.Settlements.RetryFailed)

	billing.Group("balances", "/balances").
		GET("", read, h.Settlements.ListOutstanding).
		GET("/:customer_id", read, h.Settlements.GetBalance)

	billing.Group("invoices", "/invoices").
		GET("", read, h.Invoices.List).
		GET("/summary", read, h.Invoices.Summary).
		POST("/generate", write, h.Invoices.Generate).
		POST("/batch", admin, h.Invoices.GenerateBatch).
		POST("/mark-overdue", admin, h.Invoices.MarkOverdue).
		GET("/:id", read, h.Invoices.Get).
		POST("/:id/payments", write, h.Invoices.RecordPayment).
		POST("/:id/send", write, h.Invoices.Send).
		POST("/:id/void", write, h.Invoices.Void)

	billing.Group("schedules", "/schedules").
		GET("/tenant", read, h.Invoices.GetTenantSchedule).
		GET("/customers/:customer_id", read, h.Invoices.GetCustomerSchedule).
		PATCH("/:id", admin, h.Invoices.UpdateSchedule)

	billing.POST("/autopay/run", admin, h.Invoices.RunAutoPay)

	billing.POST("/prices/resolve", read, h.Pricing.Resolve)

	billing.Group("actions", "/actions").
		GET("", read, h.Pricing.ListActions).
		POST("", admin, h.Pricing.CreateAction).
		PUT("/:id", admin, h.Pricing.UpdateAction).
		DELETE("/:id", admin, h.Pricing.DeactivateAction).
		PUT("/:id/overrides", admin, h.Pricing.UpsertOverride)

	billing.DELETE("/overrides/:id", admin, h.Pricing.DeleteOverride)

	billing.POST("/jobs/:kind", admin, h.System.TriggerJob)

	return billing
}
