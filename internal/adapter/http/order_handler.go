package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type OrderHandler struct {
	orders   *usecase.Orders
	invoices *usecase.Invoices
}

func NewOrderHandler(orders *usecase.Orders, invoices *usecase.Invoices) *OrderHandler {
	return &OrderHandler{orders: orders, invoices: invoices}
}

// GET /v1/orders/:number
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.orders.Get(ctx, c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(v))
}

// GET /v1/orders/:number/status answers from the status cache when warm.
func (h *OrderHandler) GetStatus(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	number := c.Param("number")
	st, err := h.orders.Status(ctx, number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"number": number, "status": st})
}

// POST /v1/orders/:number/confirm
func (h *OrderHandler) Confirm(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.orders.Confirm(ctx, c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransition(res))
}

// POST /v1/orders/:number/deny
func (h *OrderHandler) Deny(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.orders.Deny(ctx, c.Param("number"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransition(res))
}

// POST /v1/orders/:number/cancel; the body is optional.
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req reasonReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.orders.Cancel(ctx, c.Param("number"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransition(res))
}

// POST /v1/orders/:number/status moves fulfilment forward.
func (h *OrderHandler) Advance(c *gin.Context) {
	var req advanceStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.orders.Advance(ctx, c.Param("number"), to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransition(res))
}

// DELETE /v1/orders/:number
func (h *OrderHandler) Delete(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.orders.Delete(ctx, c.Param("number")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/orders/:number/invoice
func (h *OrderHandler) GenerateInvoice(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.invoices.Generate(ctx, c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toView(v))
}

// POST /v1/orders/:number/invoice/resync
func (h *OrderHandler) ResyncInvoice(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.invoices.Resync(ctx, c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(v))
}
