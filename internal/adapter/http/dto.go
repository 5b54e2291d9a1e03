package http

import (
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// Money crosses the wire as a fixed two-decimal string ("262.50").

type lineReq struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

type customerReq struct {
	Name    string `json:"name"`
	Phone   string `json:"phone" binding:"required"`
	Address string `json:"address"`
}

type advanceReq struct {
	IntentRef      string `json:"intentRef" binding:"required"`
	ConfirmationID string `json:"confirmationId" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

type cartReq struct {
	Items []lineReq `json:"items" binding:"required"`
}

type checkoutIntentReq struct {
	Items  []lineReq `json:"items" binding:"required"`
	Amount string    `json:"amount" binding:"required"`
}

type placeOrderReq struct {
	Items        []lineReq   `json:"items" binding:"required"`
	Customer     customerReq `json:"customer" binding:"required"`
	ScheduledFor *time.Time  `json:"scheduledFor"`
	Instructions string      `json:"instructions"`
	Advance      *advanceReq `json:"advance"`
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type advanceStatusReq struct {
	Status string `json:"status" binding:"required"`
}

type paymentQuoteReq struct {
	Type   string `json:"type" binding:"required"`
	Amount string `json:"amount"`
}

type verifyReq struct {
	IntentRef      string `json:"intentRef" binding:"required"`
	ConfirmationID string `json:"confirmationId" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

type failReq struct {
	IntentRef string `json:"intentRef" binding:"required"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
	Cancelled bool   `json:"cancelled"`
}

func toLines(in []lineReq) []usecase.CheckoutLine {
	out := make([]usecase.CheckoutLine, 0, len(in))
	for _, l := range in {
		out = append(out, usecase.CheckoutLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return out
}

// parseOptionalMoney treats "" as zero.
func parseOptionalMoney(s string) (domain.Money, error) {
	if s == "" {
		return 0, nil
	}
	return domain.ParseMoney(s)
}

type itemResp struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

func toItems(items []domain.OrderItem) []itemResp {
	out := make([]itemResp, 0, len(items))
	for _, it := range items {
		out = append(out, itemResp{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.String(),
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal.String(),
		})
	}
	return out
}

type snapshotResp struct {
	Items     []itemResp `json:"items"`
	Subtotal  string     `json:"subtotal"`
	TaxRate   string     `json:"taxRate"`
	TaxAmount string     `json:"taxAmount"`
	Total     string     `json:"total"`
}

func toSnapshot(s domain.CheckoutSnapshot) snapshotResp {
	return snapshotResp{
		Items:     toItems(s.Items),
		Subtotal:  s.Subtotal.String(),
		TaxRate:   s.Tax.Rate.String(),
		TaxAmount: s.TaxAmount.String(),
		Total:     s.Total.String(),
	}
}

type orderResp struct {
	Number           string          `json:"number"`
	Status           string          `json:"status"`
	Items            []itemResp      `json:"items"`
	Subtotal         string          `json:"subtotal"`
	TaxRate          string          `json:"taxRate"`
	TaxAmount        string          `json:"taxAmount"`
	TotalAmount      string          `json:"totalAmount"`
	AdvancePayment   string          `json:"advancePayment"`
	ReceivedAmount   string          `json:"receivedAmount"`
	RemainingAmount  string          `json:"remainingAmount"`
	OverpaidAmount   string          `json:"overpaidAmount,omitempty"`
	ScheduledFor     *time.Time      `json:"scheduledFor,omitempty"`
	Customer         domain.Customer `json:"customer"`
	Instructions     string          `json:"instructions,omitempty"`
	DenyReason       string          `json:"denyReason,omitempty"`
	InvoiceGenerated bool            `json:"invoiceGenerated"`
	InvoiceNumber    string          `json:"invoiceNumber,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	Invoice          *invoiceResp    `json:"invoice,omitempty"`
	NotifyError      string          `json:"notifyError,omitempty"`
}

func toOrder(o *domain.Order) orderResp {
	r := orderResp{
		Number:           o.Number,
		Status:           string(o.Status),
		Items:            toItems(o.Items),
		Subtotal:         o.Subtotal.String(),
		TaxRate:          o.TaxRate.String(),
		TaxAmount:        o.TaxAmount.String(),
		TotalAmount:      o.TotalAmount.String(),
		AdvancePayment:   o.AdvancePayment.String(),
		ReceivedAmount:   o.ReceivedAmount.String(),
		RemainingAmount:  o.RemainingAmount.String(),
		Customer:         o.Customer,
		Instructions:     o.Instructions,
		DenyReason:       o.DenyReason,
		InvoiceGenerated: o.InvoiceGenerated,
		InvoiceNumber:    o.InvoiceNumber,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.OverpaidAmount > 0 {
		r.OverpaidAmount = o.OverpaidAmount.String()
	}
	if !o.ScheduledFor.IsZero() {
		t := o.ScheduledFor
		r.ScheduledFor = &t
	}
	return r
}

func toView(v usecase.OrderView) orderResp {
	r := toOrder(v.Order)
	if v.Invoice != nil {
		inv := toInvoice(v.Invoice)
		r.Invoice = &inv
	}
	return r
}

func toTransition(res usecase.TransitionResult) orderResp {
	r := toOrder(res.Order)
	if res.NotifyErr != nil {
		r.NotifyError = res.NotifyErr.Error()
	}
	return r
}

type taxLineResp struct {
	Name   string `json:"name"`
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
}

type invoiceResp struct {
	Number         string          `json:"number"`
	OrderNumber    string          `json:"orderNumber"`
	Items          []itemResp      `json:"items"`
	Customer       domain.Customer `json:"customer"`
	Subtotal       string          `json:"subtotal"`
	TaxLines       []taxLineResp   `json:"taxLines"`
	TaxAmount      string          `json:"taxAmount"`
	TotalAmount    string          `json:"totalAmount"`
	ReceivedAmount string          `json:"receivedAmount"`
	Balance        string          `json:"balance"`
	PaymentStatus  string          `json:"paymentStatus"`
	Status         string          `json:"status"`
	IssuedAt       time.Time       `json:"issuedAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toInvoice(inv *domain.Invoice) invoiceResp {
	lines := make([]taxLineResp, 0, len(inv.TaxLines))
	for _, tl := range inv.TaxLines {
		lines = append(lines, taxLineResp{Name: tl.Name, Rate: tl.Rate.String(), Amount: tl.Amount.String()})
	}
	return invoiceResp{
		Number:         inv.Number,
		OrderNumber:    inv.OrderNumber,
		Items:          toItems(inv.Items),
		Customer:       inv.Customer,
		Subtotal:       inv.Subtotal.String(),
		TaxLines:       lines,
		TaxAmount:      inv.TaxAmount.String(),
		TotalAmount:    inv.TotalAmount.String(),
		ReceivedAmount: inv.ReceivedAmount.String(),
		Balance:        inv.Balance.String(),
		PaymentStatus:  string(inv.PaymentStatus),
		Status:         string(inv.Status),
		IssuedAt:       inv.IssuedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

type paymentResp struct {
	IntentRef      string     `json:"intentRef"`
	OrderNumber    string     `json:"orderNumber,omitempty"`
	Type           string     `json:"type"`
	Amount         string     `json:"amount"`
	Outcome        string     `json:"outcome"`
	ConfirmationID string     `json:"confirmationId,omitempty"`
	FailureCode    string     `json:"failureCode,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	SettledAt      *time.Time `json:"settledAt,omitempty"`
}

func toPayment(p *domain.Payment) paymentResp {
	r := paymentResp{
		IntentRef:      p.IntentRef,
		OrderNumber:    p.OrderNumber,
		Type:           string(p.Type),
		Amount:         p.Amount.String(),
		Outcome:        string(p.Outcome),
		ConfirmationID: p.ConfirmationID,
		FailureCode:    p.FailureCode,
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt,
	}
	if !p.SettledAt.IsZero() {
		t := p.SettledAt
		r.SettledAt = &t
	}
	return r
}

type verifyResp struct {
	Duplicate bool         `json:"duplicate"`
	Payment   paymentResp  `json:"payment"`
	Order     orderResp    `json:"order"`
	Invoice   *invoiceResp `json:"invoice,omitempty"`
}

func toVerify(res usecase.VerifyResult) verifyResp {
	r := verifyResp{Duplicate: res.Duplicate, Payment: toPayment(res.Payment), Order: toOrder(res.Order)}
	if res.Invoice != nil {
		inv := toInvoice(res.Invoice)
		r.Invoice = &inv
	}
	return r
}
