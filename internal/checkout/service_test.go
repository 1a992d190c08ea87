package checkout_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jersey/internal/cart"
	"github.com/noah-isme/backend-jersey/internal/catalog"
	"github.com/noah-isme/backend-jersey/internal/checkout"
	"github.com/noah-isme/backend-jersey/internal/common"
	"github.com/noah-isme/backend-jersey/internal/events"
	"github.com/noah-isme/backend-jersey/internal/lock"
)

type fixture struct {
	mr     *miniredis.Miniredis
	carts  *cart.Service
	svc    *checkout.Service
	stream events.RedisStreamStore
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c, err := catalog.Load(context.Background(), catalog.EmbeddedSource{}, zerolog.New(io.Discard))
	require.NoError(t, err)

	stream := events.RedisStreamStore{Client: client, Stream: "test:events"}
	bus := &events.Bus{Store: stream}
	carts := &cart.Service{
		Catalog:        c,
		Store:          cart.NewRedisStore(client, "cart:", time.Hour),
		Events:         bus,
		Logger:         zerolog.New(io.Discard),
		Currency:       "EUR",
		CurrencySymbol: "€",
	}
	var logs bytes.Buffer
	svc := &checkout.Service{
		Carts:  carts,
		Lock:   lock.Locker{Client: client, Prefix: "lock:", RetryBackoff: 5 * time.Millisecond, MaxWait: 50 * time.Millisecond},
		Events: bus,
		Logger: zerolog.New(&logs),
	}
	return fixture{mr: mr, carts: carts, svc: svc, stream: stream, logs: &logs}
}

func validInput(cartID string) checkout.Input {
	return checkout.Input{
		CartID: cartID,
		Customer: checkout.Customer{
			Name:       "Lucía Fernández",
			Email:      "lucia@example.com",
			Phone:      "+34 600 123 456",
			Address:    "Calle Mayor 1",
			City:       "Madrid",
			PostalCode: "28013",
			Country:    "es",
		},
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, cart.AddInput{ProductID: 1, Qty: 2, Size: "M"})
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, cart.AddInput{ProductID: 22, Qty: 1, Size: "L", CustomName: "JORDAN"})
	require.NoError(t, err)

	out, err := f.svc.Place(ctx, validInput(c.ID))
	require.NoError(t, err)
	require.Equal(t, checkout.StatusPendingPayment, out.Status)
	require.NotEmpty(t, out.OrderRef)
	require.Len(t, out.Lines, 2)
	require.Equal(t, "61.90", out.Pricing.Total)
	require.Equal(t, "PACK POPULAR", out.Pricing.BadgeLabel)

	after, err := f.carts.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, after.Lines)

	recent, err := f.stream.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, events.TopicCartCleared, recent[0].Topic)
	require.Equal(t, events.TopicOrderPlaced, recent[1].Topic)
	require.Equal(t, out.OrderRef, recent[1].AggregateID)

	var payload struct {
		Customer checkout.Customer `json:"customer"`
		Pricing  struct {
			Total string `json:"total"`
		} `json:"pricing"`
	}
	require.NoError(t, json.Unmarshal(recent[1].Payload, &payload))
	require.Equal(t, "ES", payload.Customer.Country)
	require.Equal(t, "61.90", payload.Pricing.Total)
	require.Contains(t, f.logs.String(), "order placed")
}

// addDuringPublish adds a line to the cart from another goroutine while the
// order is being published.
type addDuringPublish struct {
	next  checkout.Emitter
	carts *cart.Service
	wg    sync.WaitGroup
	err   error
}

func (e *addDuringPublish) Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error) {
	if topic == events.TopicOrderPlaced {
		cartID := payload.(map[string]any)["cartId"].(string)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			_, e.err = e.carts.AddItem(context.Background(), cartID, cart.AddInput{ProductID: 1, Qty: 4, Size: "XL"})
		}()
		time.Sleep(20 * time.Millisecond)
	}
	return e.next.Emit(ctx, topic, aggregateID, payload)
}

func TestPlaceOrderKeepsItemsAddedDuringCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, cart.AddInput{ProductID: 1, Qty: 1, Size: "M"})
	require.NoError(t, err)

	emitter := &addDuringPublish{next: f.svc.Events, carts: f.carts}
	f.svc.Events = emitter

	out, err := f.svc.Place(ctx, validInput(c.ID))
	require.NoError(t, err)
	emitter.wg.Wait()
	require.NoError(t, emitter.err)
	require.Equal(t, 1, out.Pricing.TotalQty)

	after, err := f.carts.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 4, after.TotalQty())
	require.Len(t, after.Lines, 1)
	require.Equal(t, "XL", after.Lines[0].Size)
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)

	_, err = f.svc.Place(ctx, validInput(c.ID))
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}

func TestPlaceOrderValidatesCustomer(t *testing.T) {
	f := newFixture(t)
	in := validInput("3b8f4c1e-8d0e-4a5f-9a57-2b1f3c4d5e6f")
	in.Customer.Email = "not-an-email"
	in.Customer.PostalCode = ""

	_, err := f.svc.Place(context.Background(), in)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "INVALID_INPUT", appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "email must be a valid address", details["customer.email"])
	require.Equal(t, "postalCode is required", details["customer.postalCode"])
	require.Equal(t, "email must be a valid address", appErr.Message)

	in = validInput("nope")
	_, err = f.svc.Place(context.Background(), in)
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "cartId must be a valid cart id", appErr.Details.(map[string]string)["cartId"])

	in = validInput("3b8f4c1e-8d0e-4a5f-9a57-2b1f3c4d5e6f")
	in.Customer.Country = "spain"
	_, err = f.svc.Place(context.Background(), in)
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "country must be a 2-letter code", appErr.Details.(map[string]string)["customer.country"])
}

func TestPlaceOrderBusyWhenLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, cart.AddInput{ProductID: 1, Qty: 1})
	require.NoError(t, err)
	require.NoError(t, f.mr.Set("lock:checkout:"+c.ID, "other"))

	_, err = f.svc.Place(ctx, validInput(c.ID))
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	still, err := f.carts.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, still.Lines, 1)
}

func TestCheckoutHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, cart.AddInput{ProductID: 5, Qty: 1})
	require.NoError(t, err)

	h := &checkout.Handler{Svc: f.svc}
	body, err := json.Marshal(validInput(c.ID))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data checkout.Output `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "21.80", resp.Data.Pricing.Total)
	require.Equal(t, "1.90 €", resp.Data.Pricing.Display.Shipping)

	rec = httptest.NewRecorder()
	h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
