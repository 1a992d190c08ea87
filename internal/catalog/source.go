package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:embed data/jerseys.json
var embedded embed.FS

// Source yields raw catalog records.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// EmbeddedSource reads the catalog compiled into the binary.
type EmbeddedSource struct{}

// Records implements Source.
func (EmbeddedSource) Records(context.Context) ([]Record, error) {
	data, err := embedded.ReadFile("data/jerseys.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded catalog: %w", err)
	}
	return decodeRecords(data)
}

// FileSource reads a JSON array of records from disk.
type FileSource struct {
	Path string
}

// Records implements Source.
func (s FileSource) Records(context.Context) ([]Record, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, errors.New("catalog file path is required")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return decodeRecords(data)
}

func decodeRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return records, nil
}

// Querier is the subset of pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the jerseys table.
type PostgresSource struct {
	DB Querier
}

const selectJerseys = `SELECT id, name, category, league, price::text, COALESCE(image, ''),
	kids, retro, nba, COALESCE(pricing_tier, '')
FROM jerseys
ORDER BY position, id`

// Records implements Source.
func (s PostgresSource) Records(ctx context.Context) ([]Record, error) {
	if s.DB == nil {
		return nil, errors.New("catalog database not configured")
	}
	rows, err := s.DB.Query(ctx, selectJerseys)
	if err != nil {
		return nil, fmt.Errorf("query jerseys: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec   Record
			price string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Category, &rec.League, &price, &rec.Image,
			&rec.Kids, &rec.Retro, &rec.NBA, &rec.PricingTier); err != nil {
			return nil, fmt.Errorf("scan jersey: %w", err)
		}
		rec.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("jersey %d price: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jerseys: %w", err)
	}
	return records, nil
}
