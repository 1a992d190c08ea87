package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders amount with two decimals and an optional currency symbol.
// This is the only place amounts are rounded.
func FormatAmount(amount decimal.Decimal, symbol string) string {
	fixed := amount.StringFixed(2)
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return fixed
	}
	return fixed + " " + symbol
}

// Summary is the display form of a Result.
type Summary struct {
	TotalQty       int    `json:"totalQty"`
	Subtotal       string `json:"subtotal"`
	Shipping       string `json:"shipping"`
	Total          string `json:"total"`
	Surcharge      string `json:"surcharge"`
	FreeShipping   bool   `json:"freeShipping"`
	Badge          *Badge `json:"badge,omitempty"`
	BadgeLabel     string `json:"badgeLabel,omitempty"`
	BadgeIntensity int    `json:"badgeIntensity,omitempty"`
	Display        struct {
		Subtotal string `json:"subtotal"`
		Shipping string `json:"shipping"`
		Total    string `json:"total"`
	} `json:"display"`
}

// Summarize converts a Result into its display payload.
func Summarize(res Result, symbol string) Summary {
	out := Summary{
		TotalQty:     res.TotalQty,
		Subtotal:     res.Subtotal.StringFixed(2),
		Shipping:     res.Shipping.StringFixed(2),
		Total:        res.Total.StringFixed(2),
		Surcharge:    res.Surcharge.StringFixed(2),
		FreeShipping: res.TotalQty > 1,
	}
	if res.Badge.Active() {
		badge := res.Badge
		out.Badge = &badge
		out.BadgeLabel = badge.Label()
		out.BadgeIntensity = badge.Intensity()
	}
	out.Display.Subtotal = FormatAmount(res.Subtotal, symbol)
	out.Display.Shipping = FormatAmount(res.Shipping, symbol)
	out.Display.Total = FormatAmount(res.Total, symbol)
	return out
}
