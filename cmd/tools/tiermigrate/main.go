// Command tiermigrate pins an explicit pricingTier on every catalog record
// whose tier is still derived from the legacy name and tag rules.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jersey/internal/catalog"
)

func main() {
	_ = godotenv.Load()

	source := flag.String("source", envOr("CATALOG_SOURCE", "embedded"), "catalog source: embedded, file or postgres")
	in := flag.String("in", os.Getenv("CATALOG_PATH"), "input JSON path for -source=file")
	out := flag.String("out", "", "write the pinned catalog JSON here (default stdout)")
	apply := flag.Bool("apply", false, "with -source=postgres, write pinned tiers back to the jerseys table")
	flag.Parse()

	// stdout carries the catalog JSON
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var (
		src  catalog.Source
		pool *pgxpool.Pool
	)
	switch *source {
	case "embedded":
		src = catalog.EmbeddedSource{}
	case "file":
		if *in == "" {
			logger.Fatal().Msg("-in is required for -source=file")
		}
		src = catalog.FileSource{Path: *in}
	case "postgres":
		var err error
		pool, err = pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		src = catalog.PostgresSource{DB: pool}
	default:
		logger.Fatal().Str("source", *source).Msg("unknown catalog source")
	}

	records, err := src.Records(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("read catalog")
	}
	pinned, pins, err := catalog.PinTiers(records)
	if err != nil {
		logger.Fatal().Err(err).Msg("classify catalog")
	}
	for _, pin := range pins {
		logger.Info().
			Int("product_id", pin.ID).
			Str("name", pin.Name).
			Str("tier", string(pin.Tier)).
			Str("reason", string(pin.Reason)).
			Msg("tier pinned")
	}
	logger.Info().Int("records", len(records)).Int("pinned", len(pins)).Msg("classification done")

	if *apply {
		if pool == nil {
			logger.Fatal().Msg("-apply needs -source=postgres")
		}
		n, err := catalog.ApplyPins(ctx, pool, pins)
		if err != nil {
			logger.Fatal().Err(err).Int64("updated", n).Msg("apply pins")
		}
		logger.Info().Int64("updated", n).Msg("pins applied")
		return
	}

	if err := writeJSON(*out, pinned, logger); err != nil {
		logger.Fatal().Err(err).Msg("write catalog")
	}
}

func writeJSON(path string, records []catalog.Record, logger zerolog.Logger) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Error().Err(err).Msg("close output")
			}
		}()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
