package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type InvoiceHandler struct {
	invoices *usecase.Invoices
}

func NewInvoiceHandler(uc *usecase.Invoices) *InvoiceHandler {
	return &InvoiceHandler{invoices: uc}
}

// GET /v1/invoices/:number
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	inv, err := h.invoices.Snapshot(ctx, c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoice(inv))
}

// POST /v1/invoices/:number/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	inv, err := h.invoices.MarkSent(ctx, c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoice(inv))
}

// DELETE /v1/invoices/:number
func (h *InvoiceHandler) Delete(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.invoices.Delete(ctx, c.Param("number")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
