package pricing

import "strconv"

// BadgeKind identifies a promotional pack badge.
type BadgeKind string

// Badge kinds.
const (
	BadgeNone    BadgeKind = ""
	BadgeMega    BadgeKind = "MEGA"
	BadgePopular BadgeKind = "POPULAR"
)

const maxBadgeIntensity = 4

// Badge is the pack indicator shown next to cart totals.
type Badge struct {
	Kind       BadgeKind `json:"kind"`
	Multiplier int       `json:"multiplier"`
}

// SelectBadge picks the pack badge for a unit count. Multiples of five win
// over multiples of three.
func SelectBadge(totalQty int) Badge {
	if totalQty <= 0 {
		return Badge{}
	}
	if totalQty%megaPackSize == 0 {
		return Badge{Kind: BadgeMega, Multiplier: totalQty / megaPackSize}
	}
	if totalQty%popularPackSize == 0 {
		return Badge{Kind: BadgePopular, Multiplier: totalQty / popularPackSize}
	}
	return Badge{}
}

// Active reports whether a badge should be displayed.
func (b Badge) Active() bool {
	return b.Kind != BadgeNone && b.Multiplier > 0
}

// Label renders the badge text, omitting the multiplier when it is one.
func (b Badge) Label() string {
	if !b.Active() {
		return ""
	}
	var label string
	switch b.Kind {
	case BadgeMega:
		label = "MEGAPACK"
	case BadgePopular:
		label = "PACK POPULAR"
	default:
		return ""
	}
	if b.Multiplier == 1 {
		return label
	}
	return label + " x" + strconv.Itoa(b.Multiplier)
}

// Intensity is the multiplier clamped for presentation scaling.
func (b Badge) Intensity() int {
	if !b.Active() {
		return 0
	}
	if b.Multiplier > maxBadgeIntensity {
		return maxBadgeIntensity
	}
	return b.Multiplier
}
