package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jersey/internal/pricing"
)

// Catalog is an ordered, read-only set of products with id lookup.
type Catalog struct {
	products []Product
	byID     map[int]int
}

// New indexes products in the order given.
func New(products []Product) *Catalog {
	c := &Catalog{
		products: make([]Product, len(products)),
		byID:     make(map[int]int, len(products)),
	}
	copy(c.products, products)
	for i, p := range c.products {
		c.byID[p.ID] = i
	}
	return c
}

// Len reports how many products are loaded.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Get returns the product with the given id.
func (c *Catalog) Get(id int) (Product, error) {
	if c == nil {
		return Product{}, ErrNotFound
	}
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return c.products[idx], nil
}

// Price returns the current sale price of a product.
func (c *Catalog) Price(id int) (decimal.Decimal, bool) {
	p, err := c.Get(id)
	if err != nil {
		return decimal.Zero, false
	}
	return p.Sale().New, true
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	League   string
	Category string
	Tier     pricing.Tier
	Query    string
}

func (f Filter) match(p Product) bool {
	if f.League != "" && !strings.EqualFold(p.League, f.League) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Tier != "" && p.Tier != f.Tier {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

// List returns one page of matching products in catalog order together with
// the total number of matches.
func (c *Catalog) List(f Filter, offset, limit int) ([]Product, int) {
	if c == nil {
		return []Product{}, 0
	}
	matched := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if f.match(p) {
			matched = append(matched, p)
		}
	}
	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Product{}, total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total
}

// League summarises the products published under one league tag.
type League struct {
	Slug     string `json:"slug"`
	Products int    `json:"products"`
}

// Leagues lists the distinct league tags sorted by slug.
func (c *Catalog) Leagues() []League {
	if c == nil {
		return []League{}
	}
	counts := map[string]int{}
	for _, p := range c.products {
		slug := strings.ToLower(p.League)
		if slug == "" {
			continue
		}
		counts[slug]++
	}
	out := make([]League, 0, len(counts))
	for slug, n := range counts {
		out = append(out, League{Slug: slug, Products: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
