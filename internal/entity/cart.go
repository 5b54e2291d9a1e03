package domain

import (
	"fmt"
	"time"
)

// CatalogItem is the catalog's current view of a menu item.
type CatalogItem struct {
	ID        string
	Name      string
	Price     Money
	Available bool
}

type CartLine struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// Cart is the mutable pre-checkout selection. It belongs to one session and
// is persisted, if at all, by whoever holds it.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// AddItem bumps the quantity of an existing line or appends one at quantity 1.
// Catalog data is copied; the cart never points back at the catalog.
func (c *Cart) AddItem(it CatalogItem) {
	for i := range c.Lines {
		if c.Lines[i].ItemID == it.ID {
			c.Lines[i].Quantity++
			return
		}
	}
	c.Lines = append(c.Lines, CartLine{ItemID: it.ID, Name: it.Name, UnitPrice: it.Price, Quantity: 1})
}

// SetQuantity removes the line when q < 1, otherwise replaces its quantity.
// Unknown items are ignored.
func (c *Cart) SetQuantity(itemID string, q int) {
	for i := range c.Lines {
		if c.Lines[i].ItemID != itemID {
			continue
		}
		if q < 1 {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
		c.Lines[i].Quantity = q
		return
	}
}

func (c Cart) Quantity(itemID string) int {
	for _, l := range c.Lines {
		if l.ItemID == itemID {
			return l.Quantity
		}
	}
	return 0
}

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 1000

func (c Cart) Total() (Money, error) {
	var sum Money
	for _, l := range c.Lines {
		line, err := l.UnitPrice.Times(l.Quantity)
		if err != nil {
			return 0, fmt.Errorf("item %s: %w", l.ItemID, err)
		}
		if sum, err = sum.Plus(line); err != nil {
			return 0, err
		}
	}
	return sum, nil
}

// CheckoutSnapshot is the frozen result of a checkout: the order items plus
// the tax computed on their subtotal.
type CheckoutSnapshot struct {
	Items      []OrderItem
	Subtotal   Money
	Tax        TaxPolicy
	TaxAmount  Money
	Total      Money
	CapturedAt time.Time
}

func (c Cart) SnapshotForCheckout(tax TaxPolicy, now time.Time) (CheckoutSnapshot, error) {
	if len(c.Lines) == 0 {
		return CheckoutSnapshot{}, ErrEmptyCart
	}
	items := make([]OrderItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity < 1 || l.Quantity > MaxLineQuantity {
			return CheckoutSnapshot{}, fmt.Errorf("%w: item %s has quantity %d, want 1..%d", ErrValidation, l.ItemID, l.Quantity, MaxLineQuantity)
		}
		if l.UnitPrice < 0 {
			return CheckoutSnapshot{}, fmt.Errorf("%w: item %s has negative price", ErrInvalidAmount, l.ItemID)
		}
		it, err := NewOrderItem(l.ItemID, l.Name, l.UnitPrice, l.Quantity)
		if err != nil {
			return CheckoutSnapshot{}, err
		}
		items = append(items, it)
	}
	sub, err := c.Total()
	if err != nil {
		return CheckoutSnapshot{}, err
	}
	taxAmt := tax.Tax(sub)
	total, err := sub.Plus(taxAmt)
	if err != nil {
		return CheckoutSnapshot{}, err
	}
	return CheckoutSnapshot{
		Items:      items,
		Subtotal:   sub,
		Tax:        tax,
		TaxAmount:  taxAmt,
		Total:      total,
		CapturedAt: now,
	}, nil
}
