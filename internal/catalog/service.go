package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jersey/internal/common"
	"github.com/noah-isme/backend-jersey/internal/obs"
	"github.com/noah-isme/backend-jersey/internal/pricing"
)

// Service answers catalog queries from an ingested Catalog.
type Service struct {
	catalog      *Catalog
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Catalog      *Catalog
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Filter
	Page  int
	Limit int
}

// ProductView is the public product payload with derived prices.
type ProductView struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	League    string       `json:"league"`
	Image     string       `json:"image,omitempty"`
	Tier      pricing.Tier `json:"tier"`
	BasePrice string       `json:"basePrice"`
	OldPrice  string       `json:"oldPrice"`
	Price     string       `json:"price"`
	OnSale    bool         `json:"onSale"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductView
	Total int
	Page  int
	Limit int
}

// Load reads every record from src and builds a Catalog.
func Load(ctx context.Context, src Source, logger zerolog.Logger) (*Catalog, error) {
	if src == nil {
		return nil, errors.New("catalog: source is required")
	}
	records, err := src.Records(ctx)
	if err != nil {
		return nil, err
	}
	products, err := Ingest(records, logger)
	if err != nil {
		return nil, err
	}
	counts := map[[2]string]int{}
	for _, p := range products {
		counts[[2]string{string(p.Tier), string(p.TierSource)}]++
	}
	for k, n := range counts {
		obs.SetCatalogProducts(k[0], k[1], n)
	}
	return New(products), nil
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog: catalog is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 24
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		catalog:      cfg.Catalog,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// Catalog exposes the underlying product set.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.League = strings.TrimSpace(values.Get("league"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("tier")); v != "" {
		tier, err := pricing.ParseTier(v)
		if err != nil {
			return params, badRequest("tier", "tier must be one of default, retro, kids, nba", err)
		}
		params.Tier = tier
	}

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}

	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit
	return params, nil
}

// ListProducts returns a filtered product page.
func (s *Service) ListProducts(_ context.Context, params ListParams) (ProductListResult, error) {
	window := common.Pagination{Page: params.Page, PerPage: params.Limit}
	rows, total := s.catalog.List(params.Filter, window.Offset(), params.Limit)
	items := make([]ProductView, 0, len(rows))
	for _, p := range rows {
		items = append(items, View(p))
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProduct returns the public view of a single product.
func (s *Service) GetProduct(_ context.Context, rawID string) (ProductView, error) {
	id, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil {
		return ProductView{}, badRequest("id", "id must be an integer", err)
	}
	p, err := s.catalog.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProductView{}, common.NotFound("product not found", err)
		}
		return ProductView{}, fmt.Errorf("get product: %w", err)
	}
	return View(p), nil
}

// ListLeagues returns the distinct leagues in the catalog.
func (s *Service) ListLeagues(context.Context) []League {
	return s.catalog.Leagues()
}

// View derives the public payload for a product.
func View(p Product) ProductView {
	sale := p.Sale()
	return ProductView{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		League:    p.League,
		Image:     p.Image,
		Tier:      p.Tier,
		BasePrice: p.BasePrice.StringFixed(2),
		OldPrice:  sale.Old.StringFixed(2),
		Price:     sale.New.StringFixed(2),
		OnSale:    sale.OnSale,
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
