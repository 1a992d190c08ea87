package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jersey/internal/pricing"
)

// ErrNotFound indicates that a product id is not part of the catalog.
var ErrNotFound = errors.New("product not found")

// ErrInvalidInput indicates a malformed catalog record.
var ErrInvalidInput = errors.New("invalid catalog record")

// TierSource records how a product's pricing tier was obtained.
type TierSource string

const (
	// TierExplicit means the record carried a pricingTier attribute.
	TierExplicit TierSource = "explicit"
	// TierHeuristic means the tier was derived from name and tag rules.
	TierHeuristic TierSource = "heuristic"
)

// Record is the raw shape products are published in.
type Record struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	League      string          `json:"league"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Kids        bool            `json:"kids,omitempty"`
	Retro       bool            `json:"retro,omitempty"`
	NBA         bool            `json:"nba,omitempty"`
	PricingTier string          `json:"pricingTier,omitempty"`
}

// Product is an ingested catalog entry. Products are never mutated after load.
type Product struct {
	ID         int
	Name       string
	Category   string
	League     string
	BasePrice  decimal.Decimal
	Image      string
	Kids       bool
	Retro      bool
	NBA        bool
	Tier       pricing.Tier
	TierSource TierSource
}

// Sale derives the list and sale prices for the product.
func (p Product) Sale() pricing.Sale {
	return pricing.SpecialPrice(p.Tier)
}

// Classification is the outcome of resolving a record's tier.
type Classification struct {
	Tier   pricing.Tier
	Source TierSource
	Reason pricing.Reason
}

// Classify resolves the pricing tier of a record, preferring the explicit
// attribute over the legacy heuristics.
func Classify(rec Record) (Classification, error) {
	if strings.TrimSpace(rec.PricingTier) != "" {
		tier, err := pricing.ParseTier(rec.PricingTier)
		if err != nil {
			return Classification{}, fmt.Errorf("product %d: %v: %w", rec.ID, err, ErrInvalidInput)
		}
		return Classification{Tier: tier, Source: TierExplicit}, nil
	}
	tier, reason := pricing.ClassifyLegacy(pricing.Attributes{
		Name:     rec.Name,
		Category: rec.Category,
		League:   rec.League,
		Kids:     rec.Kids,
		Retro:    rec.Retro,
		NBA:      rec.NBA,
	})
	return Classification{Tier: tier, Source: TierHeuristic, Reason: reason}, nil
}

// Ingest validates raw records and fixes each product's pricing tier.
// Heuristic classifications are logged so they can be reviewed and pinned.
func Ingest(records []Record, logger zerolog.Logger) ([]Product, error) {
	products := make([]Product, 0, len(records))
	seen := make(map[int]struct{}, len(records))
	heuristic := 0
	for _, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			return nil, fmt.Errorf("product %d: name is required: %w", rec.ID, ErrInvalidInput)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("product %d: duplicate id: %w", rec.ID, ErrInvalidInput)
		}
		if rec.Price.IsNegative() {
			return nil, fmt.Errorf("product %d: negative price: %w", rec.ID, ErrInvalidInput)
		}
		seen[rec.ID] = struct{}{}

		class, err := Classify(rec)
		if err != nil {
			return nil, err
		}
		if class.Source == TierHeuristic {
			heuristic++
			logger.Warn().
				Int("product_id", rec.ID).
				Str("name", name).
				Str("tier", string(class.Tier)).
				Str("reason", string(class.Reason)).
				Msg("pricing tier derived from legacy rules")
		}
		products = append(products, Product{
			ID:         rec.ID,
			Name:       name,
			Category:   strings.TrimSpace(rec.Category),
			League:     strings.TrimSpace(rec.League),
			BasePrice:  rec.Price,
			Image:      strings.TrimSpace(rec.Image),
			Kids:       rec.Kids,
			Retro:      rec.Retro,
			NBA:        rec.NBA,
			Tier:       class.Tier,
			TierSource: class.Source,
		})
	}
	logger.Info().Int("products", len(products)).Int("heuristic_tiers", heuristic).Msg("catalog ingested")
	return products, nil
}
