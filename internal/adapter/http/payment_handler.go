package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type PaymentHandler struct {
	payments *usecase.Payments
}

func NewPaymentHandler(uc *usecase.Payments) *PaymentHandler {
	return &PaymentHandler{payments: uc}
}

func (h *PaymentHandler) parseQuote(c *gin.Context) (domain.PaymentType, domain.Money, bool) {
	var req paymentQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return "", 0, false
	}
	t, err := domain.ParsePaymentType(req.Type)
	if err != nil {
		writeError(c, err)
		return "", 0, false
	}
	custom, err := parseOptionalMoney(req.Amount)
	if err != nil {
		writeError(c, err)
		return "", 0, false
	}
	return t, custom, true
}

// POST /v1/orders/:number/payments/quote
func (h *PaymentHandler) Quote(c *gin.Context) {
	t, custom, ok := h.parseQuote(c)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	amt, err := h.payments.Quote(ctx, c.Param("number"), t, custom)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t, "amount": amt.String()})
}

// POST /v1/orders/:number/payments/intents
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	t, custom, ok := h.parseQuote(c)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	in, err := h.payments.CreateIntent(ctx, c.Param("number"), t, custom)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"intentRef":   in.IntentRef,
		"orderNumber": in.OrderNumber,
		"type":        in.Type,
		"amount":      in.Amount.String(),
		"currency":    in.Currency,
	})
}

// POST /v1/payments/verify. A replayed confirmation answers 200 with duplicate=true.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.payments.Verify(ctx, req.IntentRef, req.ConfirmationID, req.Signature)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVerify(res))
}

// POST /v1/payments/fail records a gateway failure or a customer abandon.
func (h *PaymentHandler) Fail(c *gin.Context) {
	var req failReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		p   *domain.Payment
		err error
	)
	if req.Cancelled {
		p, err = h.payments.Abandon(ctx, req.IntentRef, req.Reason)
	} else {
		p, err = h.payments.Fail(ctx, req.IntentRef, req.Code, req.Reason)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayment(p))
}

// POST /v1/payments/webhook; the body signature is checked by middleware.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var msg usecase.PaymentCallbackMsg
	if err := c.ShouldBindJSON(&msg); err != nil {
		badRequest(c, err)
		return
	}
	cb, err := msg.Callback()
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.payments.HandleCallback(ctx, cb); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Capturer is the sandbox processor's test hook.
type Capturer interface {
	Capture(intentRef string) (confirmationID, signature string, err error)
}

type SandboxHandler struct {
	cap Capturer
}

func NewSandboxHandler(cp Capturer) *SandboxHandler {
	return &SandboxHandler{cap: cp}
}

// POST /_sandbox/sign-payment plays the gateway's part of a successful capture.
func (h *SandboxHandler) SignPayment(c *gin.Context) {
	var req struct {
		IntentRef string `json:"intentRef" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	conf, sig, err := h.cap.Capture(req.IntentRef)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"intentRef": req.IntentRef, "confirmationId": conf, "signature": sig})
}
