package discount

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// BxGy frees units of the get products for every bundle of buy products in
// the cart. Free units go to the cheapest eligible lines first.
var BxGy = newStrategy(rules[coupon.BxGyDetails]{
	applicable: func(d coupon.BxGyDetails, c cart.Cart) bool {
		if Applications(d, c) == 0 {
			return false
		}
		get := productSet(d.GetProducts)
		for _, item := range c.Items {
			if get[item.ProductID] && item.Quantity > 0 {
				return true
			}
		}
		return false
	},
	discount: func(d coupon.BxGyDetails, c cart.Cart) decimal.Decimal {
		sum := decimal.Zero
		for _, a := range Allocate(d, c) {
			sum = sum.Add(a.Amount)
		}
		return sum
	},
	attribute: func(d coupon.BxGyDetails, items []cart.Item, discount decimal.Decimal) {
		allocs := Allocate(d, cart.Cart{Items: items})
		for i, share := range splitCents(allocs, discount) {
			idx := allocs[i].Index
			items[idx].TotalDiscount = items[idx].TotalDiscount.Add(share)
		}
	},
})

// Allocation is the number of units freed on one cart line.
type Allocation struct {
	Index  int
	Units  int64
	Amount decimal.Decimal
}

// Applications returns how many bundles the cart qualifies for, capped by the
// repetition limit. Buy quantities are pooled across all listed buy products.
func Applications(d coupon.BxGyDetails, c cart.Cart) int64 {
	required := totalQuantity(d.BuyProducts)
	if required <= 0 {
		return 0
	}
	buy := productSet(d.BuyProducts)
	var have int64
	for _, item := range c.Items {
		if buy[item.ProductID] {
			have = addSat(have, item.Quantity)
		}
	}
	times := have / required
	if d.RepetitionLimit != nil && *d.RepetitionLimit < times {
		times = *d.RepetitionLimit
	}
	return times
}

// Allocate distributes the free units over the get-eligible lines, cheapest
// unit price first. Lines with equal prices keep their cart order.
func Allocate(d coupon.BxGyDetails, c cart.Cart) []Allocation {
	remaining := mulSat(totalQuantity(d.GetProducts), Applications(d, c))
	if remaining <= 0 {
		return nil
	}

	get := productSet(d.GetProducts)
	var eligible []int
	for i, item := range c.Items {
		if get[item.ProductID] && item.Quantity > 0 {
			eligible = append(eligible, i)
		}
	}
	sort.SliceStable(eligible, func(a, b int) bool {
		return c.Items[eligible[a]].Price.LessThan(c.Items[eligible[b]].Price)
	})

	var allocs []Allocation
	for _, i := range eligible {
		if remaining == 0 {
			break
		}
		item := c.Items[i]
		units := min(item.Quantity, remaining)
		remaining -= units
		allocs = append(allocs, Allocation{
			Index:  i,
			Units:  units,
			Amount: item.Price.Mul(decimal.NewFromInt(units)),
		})
	}
	return allocs
}

func productSet(products []coupon.ProductQuantity) map[int64]bool {
	set := make(map[int64]bool, len(products))
	for _, p := range products {
		set[p.ProductID] = true
	}
	return set
}

func totalQuantity(products []coupon.ProductQuantity) int64 {
	var n int64
	for _, p := range products {
		n = addSat(n, p.Quantity)
	}
	return n
}

// splitCents rounds allocation amounts down to the cent and hands the cents
// left over from total to the lines with the largest truncated fractions.
// Shares are never negative and sum to total.
func splitCents(allocs []Allocation, total decimal.Decimal) []decimal.Decimal {
	if len(allocs) == 0 {
		return nil
	}
	cent := decimal.New(1, -2)
	shares := make([]decimal.Decimal, len(allocs))
	order := make([]int, len(allocs))
	left := total
	for i, a := range allocs {
		shares[i] = a.Amount.RoundFloor(2)
		left = left.Sub(shares[i])
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		fa := allocs[order[a]].Amount.Sub(shares[order[a]])
		fb := allocs[order[b]].Amount.Sub(shares[order[b]])
		return fa.GreaterThan(fb)
	})
	for i := 0; left.GreaterThanOrEqual(cent); i = (i + 1) % len(order) {
		shares[order[i]] = shares[order[i]].Add(cent)
		left = left.Sub(cent)
	}
	return shares
}

// addSat adds non-negative quantities, saturating at math.MaxInt64.
func addSat(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// mulSat multiplies non-negative quantities, saturating at math.MaxInt64.
func mulSat(a, b int64) int64 {
	if a > 0 && b > math.MaxInt64/a {
		return math.MaxInt64
	}
	return a * b
}
