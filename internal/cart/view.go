package cart

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jersey/internal/obs"
	"github.com/noah-isme/backend-jersey/internal/pricing"
)

// LineView is a cart line resolved against the live catalog.
type LineView struct {
	ID           string       `json:"id"`
	ProductID    int          `json:"productId"`
	Name         string       `json:"name"`
	Image        string       `json:"image,omitempty"`
	Tier         pricing.Tier `json:"tier"`
	Qty          int          `json:"qty"`
	Size         string       `json:"size,omitempty"`
	Version      string       `json:"version,omitempty"`
	VersionLabel string       `json:"versionLabel,omitempty"`
	CustomName   string       `json:"customName,omitempty"`
	CustomNumber *int         `json:"customNumber,omitempty"`
	Patch        string       `json:"patch,omitempty"`
	PatchLabel   string       `json:"patchLabel,omitempty"`
	Descriptor   string       `json:"descriptor"`
	UnitPrice    string       `json:"unitPrice"`
	OldPrice     string       `json:"oldPrice"`
	LineTotal    string       `json:"lineTotal"`
}

// View is the priced cart payload.
type View struct {
	ID       string          `json:"id"`
	Lines    []LineView      `json:"lines"`
	Pricing  pricing.Summary `json:"pricing"`
	Currency string          `json:"currency,omitempty"`

	Result pricing.Result `json:"-"`
}

// View resolves the cart lines and computes its pricing.
func (s *Service) View(ctx context.Context, cartID string) (View, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	return s.Resolve(c), nil
}

// Resolve prices a cart snapshot. Lines whose product is no longer in the
// catalog are dropped from both the rendered lines and the totals.
func (s *Service) Resolve(c *Cart) View {
	lines := make([]LineView, 0, len(c.Lines))
	priced := make([]pricing.Line, 0, len(c.Lines))
	for _, ln := range c.Lines {
		product, err := s.Catalog.Get(ln.ProductID)
		if err != nil {
			s.Logger.Debug().Int("product_id", ln.ProductID).Str("cart_id", c.ID).Msg("dropping line for unknown product")
			continue
		}
		sale := product.Sale()
		view := LineView{
			ID:           ln.ID,
			ProductID:    ln.ProductID,
			Name:         product.Name,
			Image:        product.Image,
			Tier:         product.Tier,
			Qty:          ln.Qty,
			Size:         ln.Size,
			Version:      ln.Version,
			CustomName:   ln.CustomName,
			CustomNumber: ln.CustomNumber,
			Patch:        ln.Patch,
			Descriptor:   ln.Descriptor(),
			UnitPrice:    pricing.FormatAmount(sale.New, s.CurrencySymbol),
			OldPrice:     pricing.FormatAmount(sale.Old, s.CurrencySymbol),
			LineTotal:    pricing.FormatAmount(sale.New.Mul(decimal.NewFromInt(int64(ln.Qty))), s.CurrencySymbol),
		}
		if ln.Version != "" {
			view.VersionLabel = VersionLabel(ln.Version)
		}
		if ln.Patch != "" {
			view.PatchLabel = PatchLabel(ln.Patch)
		}
		lines = append(lines, view)
		priced = append(priced, pricing.Line{ProductID: ln.ProductID, Qty: ln.Qty, UnitPrice: sale.New})
	}
	res := pricing.Compute(priced)
	obs.ObservePricingQuote(string(res.Badge.Kind))
	return View{
		ID:       c.ID,
		Lines:    lines,
		Pricing:  pricing.Summarize(res, s.CurrencySymbol),
		Currency: s.Currency,
		Result:   res,
	}
}

// QuoteItem is a product and quantity priced without a cart.
type QuoteItem struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Qty       int `json:"qty" validate:"min=1,max=99"`
}

// QuoteInput is the payload of the quote endpoint.
type QuoteInput struct {
	Items []QuoteItem `json:"items" validate:"max=100,dive"`
}

// Quote prices a list of products through the same path as a cart view.
func (s *Service) Quote(_ context.Context, in QuoteInput) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if err := s.Validate.Struct(in); err != nil {
		return View{}, invalidInput(err)
	}
	c := &Cart{ID: "quote", Lines: make([]Line, 0, len(in.Items))}
	for i, item := range in.Items {
		c.Lines = append(c.Lines, Line{ID: strconv.Itoa(i + 1), ProductID: item.ProductID, Qty: item.Qty})
	}
	v := s.Resolve(c)
	v.ID = ""
	return v, nil
}
