package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aq2208/gorder-settlement/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-settlement/internal/logging"
	"github.com/aq2208/gorder-settlement/internal/security"
)

// Handlers groups everything the router mounts. Webhook and Sandbox are
// optional; their routes are skipped when nil.
type Handlers struct {
	Checkout *CheckoutHandler
	Orders   *OrderHandler
	Invoices *InvoiceHandler
	Payments *PaymentHandler
	Token    *TokenHandler
	Authz    *middleware.Authz
	Webhook  *middleware.WebhookVerify
	Sandbox  *SandboxHandler
}

func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Debug("health check")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/token", h.Token.IssueToken)

	read := h.Authz.Require(security.PermOrdersRead)
	write := h.Authz.Require(security.PermOrdersWrite)
	admin := h.Authz.Require(security.PermOrdersAdmin)
	pay := h.Authz.Require(security.PermPaymentsWrite)

	{
		v1.POST("/checkout/quote", write, h.Checkout.Quote)
		v1.POST("/checkout/intents", write, pay, h.Checkout.CreateIntent)
		v1.POST("/checkout", write, h.Checkout.PlaceOrder)

		v1.GET("/orders/:number", read, h.Orders.GetOrder)
		v1.GET("/orders/:number/status", read, h.Orders.GetStatus)
		v1.POST("/orders/:number/confirm", admin, h.Orders.Confirm)
		v1.POST("/orders/:number/deny", admin, h.Orders.Deny)
		v1.POST("/orders/:number/cancel", admin, h.Orders.Cancel)
		v1.POST("/orders/:number/status", admin, h.Orders.Advance)
		v1.DELETE("/orders/:number", admin, h.Orders.Delete)
		v1.POST("/orders/:number/invoice", admin, h.Orders.GenerateInvoice)
		v1.POST("/orders/:number/invoice/resync", admin, h.Orders.ResyncInvoice)

		v1.GET("/invoices/:number", read, h.Invoices.GetInvoice)
		v1.POST("/invoices/:number/send", admin, h.Invoices.Send)
		v1.DELETE("/invoices/:number", admin, h.Invoices.Delete)

		v1.POST("/orders/:number/payments/quote", pay, h.Payments.Quote)
		v1.POST("/orders/:number/payments/intents", pay, h.Payments.CreateIntent)
		v1.POST("/payments/verify", pay, h.Payments.Verify)
		v1.POST("/payments/fail", pay, h.Payments.Fail)
	}
	if h.Webhook != nil {
		v1.POST("/payments/webhook", h.Webhook.Verify(), h.Payments.Webhook)
	}

	if h.Sandbox != nil {
		sb := r.Group("/_sandbox")
		sb.POST("/sign-payment", h.Sandbox.SignPayment)
		if h.Webhook != nil {
			sb.POST("/sign-webhook", h.Webhook.SignBody())
		}
	}
	return r
}
