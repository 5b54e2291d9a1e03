package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type CheckoutHandler struct {
	checkout *usecase.Checkout
}

func NewCheckoutHandler(uc *usecase.Checkout) *CheckoutHandler {
	return &CheckoutHandler{checkout: uc}
}

// POST /v1/checkout/quote
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req cartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	snap, err := h.checkout.Quote(ctx, toLines(req.Items))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSnapshot(snap))
}

// POST /v1/checkout/intents opens an advance-payment intent for a cart.
func (h *CheckoutHandler) CreateIntent(c *gin.Context) {
	var req checkoutIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := domain.ParseMoney(req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	in, err := h.checkout.CreateIntent(ctx, toLines(req.Items), amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"intentRef": in.IntentRef,
		"amount":    in.Amount.String(),
		"total":     in.Total.String(),
		"currency":  in.Currency,
	})
}

// POST /v1/checkout places the order. X-Idempotency-Key makes retries safe.
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in := usecase.PlaceOrderInput{
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"), // prevent duplicated requests
		Customer: domain.Customer{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		},
		Lines:        toLines(req.Items),
		Instructions: req.Instructions,
	}
	if req.ScheduledFor != nil {
		in.ScheduledFor = req.ScheduledFor.UTC()
	}
	if a := req.Advance; a != nil {
		in.Advance = &usecase.AdvanceProof{IntentRef: a.IntentRef, ConfirmationID: a.ConfirmationID, Signature: a.Signature}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.checkout.Execute(ctx, in)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := toOrder(out.Order)
	if out.NotifyErr != nil {
		resp.NotifyError = out.NotifyErr.Error()
	}
	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(status, resp)
}
