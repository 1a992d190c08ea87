package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-jersey/internal/pricing"
)

// Pin is a tier that PinTiers fixed from the legacy rules.
type Pin struct {
	ID     int            `json:"id"`
	Name   string         `json:"name"`
	Tier   pricing.Tier   `json:"tier"`
	Reason pricing.Reason `json:"reason"`
}

// PinTiers returns a copy of records in which every record carries an
// explicit pricingTier, plus the list of records that needed one. Explicit
// tiers are left untouched and must be valid.
func PinTiers(records []Record) ([]Record, []Pin, error) {
	out := make([]Record, len(records))
	var pins []Pin
	for i, rec := range records {
		class, err := Classify(rec)
		if err != nil {
			return nil, nil, err
		}
		if class.Source == TierHeuristic {
			rec.PricingTier = string(class.Tier)
			pins = append(pins, Pin{ID: rec.ID, Name: rec.Name, Tier: class.Tier, Reason: class.Reason})
		}
		out[i] = rec
	}
	return out, pins, nil
}

// Execer is the subset of pgxpool.Pool used to write pins back.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const pinJerseyTier = `UPDATE jerseys SET pricing_tier = $1
WHERE id = $2 AND COALESCE(pricing_tier, '') = ''`

// ApplyPins stores pinned tiers in the jerseys table. Rows that gained an
// explicit tier in the meantime are not overwritten.
func ApplyPins(ctx context.Context, db Execer, pins []Pin) (int64, error) {
	if db == nil {
		return 0, errors.New("catalog database not configured")
	}
	var updated int64
	for _, pin := range pins {
		tag, err := db.Exec(ctx, pinJerseyTier, string(pin.Tier), pin.ID)
		if err != nil {
			return updated, fmt.Errorf("pin jersey %d: %w", pin.ID, err)
		}
		updated += tag.RowsAffected()
	}
	return updated, nil
}
