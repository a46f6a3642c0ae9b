// Package cart holds the shopping cart model and the money arithmetic shared
// by the discount strategies.
package cart

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Item is a single cart line.
type Item struct {
	ProductID int64
	Quantity  int64
	Price     decimal.Decimal
	// TotalDiscount is derived: it is only filled in on Updated carts.
	TotalDiscount decimal.Decimal
}

// LineTotal returns price * quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Cart is the transient cart supplied by the caller.
type Cart struct {
	Items []Item
}

// Updated is the result of applying a coupon to a cart. It is computed fresh
// per request and never stored.
type Updated struct {
	Items         []Item
	TotalPrice    decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalPrice    decimal.Decimal
}

// Total returns the sum of price * quantity over all items.
func Total(c Cart) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// RoundMoney rounds to 2 decimal places.
func RoundMoney(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// PercentageOf returns amount * pct / 100.
func PercentageOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// Find returns the index of the first item with the given product id, or -1.
func Find(c Cart, productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the cart with every TotalDiscount reset.
func Clone(c Cart) Cart {
	items := make([]Item, len(c.Items))
	for i, item := range c.Items {
		item.TotalDiscount = decimal.Zero
		items[i] = item
	}
	return Cart{Items: items}
}

// Build assembles an Updated cart from items whose TotalDiscount is already
// set and the cart-level discount.
func Build(items []Item, discount decimal.Decimal) Updated {
	total := RoundMoney(Total(Cart{Items: items}))
	discount = RoundMoney(discount)
	return Updated{
		Items:         items,
		TotalPrice:    total,
		TotalDiscount: discount,
		FinalPrice:    RoundMoney(total.Sub(discount)),
	}
}
