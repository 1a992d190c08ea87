package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jersey/internal/cart"
	"github.com/noah-isme/backend-jersey/internal/common"
	"github.com/noah-isme/backend-jersey/internal/events"
	"github.com/noah-isme/backend-jersey/internal/lock"
	"github.com/noah-isme/backend-jersey/internal/obs"
	"github.com/noah-isme/backend-jersey/internal/pricing"
)

// StatusPendingPayment is the state of every order placed by checkout.
const StatusPendingPayment = "PENDING_PAYMENT"

// ErrEmptyCart is returned when checking out a cart without priced lines.
var ErrEmptyCart = errors.New("cart is empty")

// Customer holds the delivery contact.
type Customer struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,min=6,max=32"`
	Address    string `json:"address" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=80"`
	PostalCode string `json:"postalCode" validate:"required,max=16"`
	Country    string `json:"country" validate:"required,len=2"`
}

// Input is the checkout payload.
type Input struct {
	CartID   string   `json:"cartId" validate:"required,uuid"`
	Customer Customer `json:"customer"`
	Notes    string   `json:"notes" validate:"max=500"`
}

// Output describes the placed order.
type Output struct {
	OrderRef string          `json:"orderRef"`
	Status   string          `json:"status"`
	CartID   string          `json:"cartId"`
	Lines    []cart.LineView `json:"lines"`
	Pricing  pricing.Summary `json:"pricing"`
	Currency string          `json:"currency,omitempty"`
	PlacedAt time.Time       `json:"placedAt"`
}

// Locker serialises work per key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID string, payload any) (events.Event, error)
}

// Service turns a cart into a pending order.
type Service struct {
	Carts    *cart.Service
	Lock     Locker
	LockTTL  time.Duration
	Events   Emitter
	Logger   zerolog.Logger
	Validate *validator.Validate
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Place validates the input, then prices the cart, publishes order.placed and
// clears the cart as one step under the checkout lock.
func (s *Service) Place(ctx context.Context, in Input) (Output, error) {
	if s == nil || s.Carts == nil || s.Lock == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	validate := s.Validate
	if validate == nil {
		validate = validator.New()
	}
	in.CartID = strings.TrimSpace(in.CartID)
	in.Customer.Country = strings.ToUpper(strings.TrimSpace(in.Customer.Country))
	if err := validate.Struct(in); err != nil {
		obs.ObserveCheckout("invalid")
		return Output{}, invalidInput(err)
	}

	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	var out Output
	err := s.Lock.WithLock(ctx, "checkout:"+in.CartID, ttl, func(ctx context.Context) error {
		// the order is published and the cart emptied under the cart's own lock
		_, err := s.Carts.Checkout(ctx, in.CartID, func(ctx context.Context, view cart.View) error {
			if view.Result.TotalQty == 0 {
				return ErrEmptyCart
			}
			out = Output{
				OrderRef: uuid.NewString(),
				Status:   StatusPendingPayment,
				CartID:   view.ID,
				Lines:    view.Lines,
				Pricing:  view.Pricing,
				Currency: view.Currency,
				PlacedAt: s.now(),
			}
			if s.Events == nil {
				return nil
			}
			if _, err := s.Events.Emit(ctx, events.TopicOrderPlaced, out.OrderRef, map[string]any{
				"orderRef": out.OrderRef,
				"cartId":   out.CartID,
				"customer": in.Customer,
				"notes":    in.Notes,
				"lines":    out.Lines,
				"pricing":  out.Pricing,
				"currency": out.Currency,
			}); err != nil {
				return fmt.Errorf("publish order: %w", err)
			}
			return nil
		})
		return err
	})
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, ErrEmptyCart):
			result = "empty"
			err = common.Unprocessable("EMPTY_CART", "cart is empty", err, nil)
		case errors.Is(err, lock.ErrBusy):
			result = "busy"
			err = common.Conflict("checkout already in progress", err)
		}
		obs.ObserveCheckout(result)
		return Output{}, err
	}

	obs.ObserveCheckout("placed")
	s.Logger.Info().
		Str("order_ref", out.OrderRef).
		Str("cart_id", out.CartID).
		Int("qty", out.Pricing.TotalQty).
		Str("total", out.Pricing.Total).
		Msg("order placed")
	return out, nil
}

var fieldMessages = map[string]string{
	"cartId":              "cartId must be a valid cart id",
	"customer.name":       "name must be at most 120 characters",
	"customer.email":      "email must be a valid address",
	"customer.phone":      "phone must be between 6 and 32 characters",
	"customer.address":    "address must be at most 200 characters",
	"customer.city":       "city must be at most 80 characters",
	"customer.postalCode": "postalCode must be at most 16 characters",
	"customer.country":    "country must be a 2-letter code",
	"notes":               "notes must be at most 500 characters",
}

func fieldMessage(path, tag string) string {
	if tag == "required" {
		return path[strings.LastIndex(path, ".")+1:] + " is required"
	}
	if msg, ok := fieldMessages[path]; ok {
		return msg
	}
	return path + " is invalid"
}

func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	details := map[string]string{}
	message := "invalid checkout details"
	if errors.As(err, &verrs) {
		for i, fe := range verrs {
			path := fieldPath(fe.Namespace())
			details[path] = fieldMessage(path, fe.Tag())
			if i == 0 {
				message = details[path]
			}
		}
	}
	return &common.AppError{
		Code:       "INVALID_INPUT",
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
		Details:    details,
	}
}

// fieldPath turns "Input.Customer.PostalCode" into "customer.postalCode".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	out := strings.Join(parts, ".")
	return strings.Replace(out, "cartID", "cartId", 1)
}
