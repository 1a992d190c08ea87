package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier classifies a product for list and sale price purposes.
type Tier string

// Known pricing tiers.
const (
	TierDefault Tier = "default"
	TierRetro   Tier = "retro"
	TierKids    Tier = "kids"
	TierNBA     Tier = "nba"
)

// Tags matched by the legacy classifier.
const (
	nbaTag   = "nba"
	retroTag = "retro"
)

// childMarkers are lower-cased name fragments identifying kids' sizes.
var childMarkers = []string{"kids", "niño", "nino"}

// ParseTier normalises a stored tier value.
func ParseTier(value string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(value))) {
	case TierDefault:
		return TierDefault, nil
	case TierRetro:
		return TierRetro, nil
	case TierKids:
		return TierKids, nil
	case TierNBA:
		return TierNBA, nil
	default:
		return "", fmt.Errorf("unknown pricing tier %q", value)
	}
}

// Attributes carries the product fields the legacy classifier inspects.
type Attributes struct {
	Name     string
	Category string
	League   string
	Kids     bool
	Retro    bool
	NBA      bool
}

// Reason names the rule that produced a legacy classification.
type Reason string

// Classification reasons, in rule order.
const (
	ReasonNBATag      Reason = "category or league tagged nba"
	ReasonNBAFlag     Reason = "nba flag"
	ReasonRetroSuffix Reason = "name ends with R"
	ReasonRetroLeague Reason = "league tagged retro"
	ReasonRetroFlag   Reason = "retro flag"
	ReasonKidsName    Reason = "name marks a kids jersey"
	ReasonKidsFlag    Reason = "kids flag"
	ReasonFallback    Reason = "no rule matched"
)

// ClassifyLegacy derives a tier from name and tag heuristics. The first
// matching rule wins: nba, then retro, then kids, then default. It exists to
// migrate catalogs that do not carry an explicit tier yet.
func ClassifyLegacy(a Attributes) (Tier, Reason) {
	category := strings.ToLower(strings.TrimSpace(a.Category))
	league := strings.ToLower(strings.TrimSpace(a.League))

	if category == nbaTag || league == nbaTag {
		return TierNBA, ReasonNBATag
	}
	if a.NBA {
		return TierNBA, ReasonNBAFlag
	}

	if strings.HasSuffix(strings.TrimSpace(a.Name), "R") {
		return TierRetro, ReasonRetroSuffix
	}
	if league == retroTag {
		return TierRetro, ReasonRetroLeague
	}
	if a.Retro {
		return TierRetro, ReasonRetroFlag
	}

	name := strings.ToLower(a.Name)
	for _, marker := range childMarkers {
		if strings.Contains(name, marker) {
			return TierKids, ReasonKidsName
		}
	}
	if a.Kids {
		return TierKids, ReasonKidsFlag
	}

	return TierDefault, ReasonFallback
}

// Sale is the derived list/sale price pair for a product.
type Sale struct {
	Old    decimal.Decimal
	New    decimal.Decimal
	OnSale bool
}

var (
	priceNBAOld     = decimal.New(3000, -2)
	priceNBANew     = decimal.New(2490, -2)
	priceRetroOld   = decimal.New(3000, -2)
	priceRetroNew   = decimal.New(2490, -2)
	priceKidsOld    = decimal.New(2700, -2)
	priceKidsNew    = decimal.New(2190, -2)
	priceDefaultOld = decimal.New(2500, -2)
	priceDefaultNew = decimal.New(1990, -2)
)

// SpecialPrice returns the sale prices for a tier. Every tier is on sale.
func SpecialPrice(t Tier) Sale {
	switch t {
	case TierNBA:
		return Sale{Old: priceNBAOld, New: priceNBANew, OnSale: true}
	case TierRetro:
		return Sale{Old: priceRetroOld, New: priceRetroNew, OnSale: true}
	case TierKids:
		return Sale{Old: priceKidsOld, New: priceKidsNew, OnSale: true}
	default:
		return Sale{Old: priceDefaultOld, New: priceDefaultNew, OnSale: true}
	}
}
