package pricing

import "github.com/shopspring/decimal"

// Pack constants. The remainder rates are published prices, not derived.
var (
	// BaseUnitPrice is the single jersey reference price; anything above it is surcharge.
	BaseUnitPrice = decimal.New(1990, -2)
	// MegaPackPrice is charged for every full group of five units.
	MegaPackPrice = decimal.New(8590, -2)
	// PopularPackPrice is charged when three units remain after mega packs.
	PopularPackPrice = decimal.New(5690, -2)
	// SingleShipping applies to carts holding exactly one unit.
	SingleShipping = decimal.New(190, -2)
)

const (
	megaPackSize    = 5
	popularPackSize = 3
)

// Line is a resolved cart line for pricing.
type Line struct {
	ProductID int
	Qty       int
	UnitPrice decimal.Decimal
}

// Result is the computed cart breakdown. Amounts are unrounded.
type Result struct {
	TotalQty   int
	Surcharge  decimal.Decimal
	BundleBase decimal.Decimal
	Subtotal   decimal.Decimal
	Shipping   decimal.Decimal
	Total      decimal.Decimal
	Badge      Badge
}

// Compute prices the whole cart as packs of five and three, adding the per
// unit surcharge of every jersey priced above BaseUnitPrice.
func Compute(lines []Line) Result {
	totalQty := 0
	surcharge := decimal.Zero
	for _, ln := range lines {
		if ln.Qty <= 0 {
			continue
		}
		totalQty += ln.Qty
		if extra := ln.UnitPrice.Sub(BaseUnitPrice); extra.IsPositive() {
			surcharge = surcharge.Add(extra.Mul(decimal.NewFromInt(int64(ln.Qty))))
		}
	}
	if totalQty == 0 {
		return Result{
			Surcharge:  decimal.Zero,
			BundleBase: decimal.Zero,
			Subtotal:   decimal.Zero,
			Shipping:   decimal.Zero,
			Total:      decimal.Zero,
		}
	}

	base := BundleBase(totalQty)
	subtotal := base.Add(surcharge)
	shipping := decimal.Zero
	if totalQty == 1 {
		shipping = SingleShipping
	}
	return Result{
		TotalQty:   totalQty,
		Surcharge:  surcharge,
		BundleBase: base,
		Subtotal:   subtotal,
		Shipping:   shipping,
		Total:      subtotal.Add(shipping),
		Badge:      SelectBadge(totalQty),
	}
}

// BundleBase returns the pack price for qty units before surcharges.
func BundleBase(qty int) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	cycles := qty / megaPackSize
	base := MegaPackPrice.Mul(decimal.NewFromInt(int64(cycles)))
	return base.Add(remainderPrice(qty % megaPackSize))
}

func remainderPrice(remainder int) decimal.Decimal {
	switch remainder {
	case 1:
		return BaseUnitPrice
	case 2:
		return BaseUnitPrice.Mul(decimal.NewFromInt(2))
	case 3:
		return PopularPackPrice
	case 4:
		return PopularPackPrice.Add(BaseUnitPrice)
	default:
		return decimal.Zero
	}
}
