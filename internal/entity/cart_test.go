package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	paneer  = CatalogItem{ID: "paneer-tikka", Name: "Paneer Tikka", Price: 10000, Available: true}
	biryani = CatalogItem{ID: "biryani", Name: "Veg Biryani", Price: 15000, Available: true}
)

func TestCart_AddAndSetQuantity(t *testing.T) {
	var c Cart
	c.AddItem(paneer)
	c.AddItem(biryani)
	c.AddItem(paneer)
	require.Len(t, c.Lines, 2)
	assert.Equal(t, 2, c.Quantity(paneer.ID))
	total, err := c.Total()
	require.NoError(t, err)
	assert.Equal(t, Money(35000), total)

	c.SetQuantity(paneer.ID, 5)
	assert.Equal(t, 5, c.Quantity(paneer.ID))

	c.SetQuantity("unknown", 3)
	assert.Len(t, c.Lines, 2)

	c.SetQuantity(paneer.ID, 0)
	assert.Equal(t, 0, c.Quantity(paneer.ID))
	assert.Len(t, c.Lines, 1)
}

func TestCart_SnapshotRejectsOverflow(t *testing.T) {
	c := Cart{Lines: []CartLine{
		{ItemID: "a", UnitPrice: Money(math.MaxInt64 / 2), Quantity: 1},
		{ItemID: "b", UnitPrice: Money(math.MaxInt64 / 2), Quantity: 1},
		{ItemID: "c", UnitPrice: 10, Quantity: 1},
	}}
	_, err := c.SnapshotForCheckout(TaxPolicy{Rate: DefaultTaxRate}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidAmount)

	big := Cart{Lines: []CartLine{{ItemID: "a", UnitPrice: 100000, Quantity: MaxLineQuantity + 1}}}
	_, err = big.SnapshotForCheckout(TaxPolicy{}, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCart_CopiesCatalogPrice(t *testing.T) {
	var c Cart
	item := paneer
	c.AddItem(item)
	item.Price = 1
	assert.Equal(t, Money(10000), c.Lines[0].UnitPrice)
}

func TestCart_Snapshot(t *testing.T) {
	var c Cart
	c.AddItem(paneer)
	c.AddItem(biryani)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := c.SnapshotForCheckout(TaxPolicy{Rate: DefaultTaxRate}, now)
	require.NoError(t, err)
	assert.Equal(t, "250.00", s.Subtotal.String())
	assert.Equal(t, "12.50", s.TaxAmount.String())
	assert.Equal(t, "262.50", s.Total.String())
	assert.Equal(t, now, s.CapturedAt)
	require.Len(t, s.Items, 2)
	assert.Equal(t, Money(15000), s.Items[1].Subtotal)
}

func TestCart_EmptySnapshot(t *testing.T) {
	_, err := Cart{}.SnapshotForCheckout(TaxPolicy{Rate: DefaultTaxRate}, time.Now())
	assert.ErrorIs(t, err, ErrEmptyCart)
}
