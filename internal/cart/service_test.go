package cart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jersey/internal/catalog"
	"github.com/noah-isme/backend-jersey/internal/common"
	"github.com/noah-isme/backend-jersey/internal/events"
	"github.com/noah-isme/backend-jersey/internal/pricing"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Product{
		{ID: 1, Name: "Real Madrid Local 24/25", League: "laliga", Tier: pricing.TierDefault},
		{ID: 2, Name: "Chicago Bulls Jordan 23", League: "nba", Category: "nba", Tier: pricing.TierNBA},
		{ID: 3, Name: "Conjunto Kids Betis", League: "laliga", Tier: pricing.TierKids},
	})
}

type failingStore struct {
	loadErr error
	saveErr error
	data    []byte
}

func (s *failingStore) Load(context.Context, string) ([]byte, bool, error) {
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	if s.data == nil {
		return nil, false, nil
	}
	return s.data, true, nil
}

func (s *failingStore) Save(context.Context, string, []byte) error {
	return s.saveErr
}

type captureEmitter struct {
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

func newService(store Store) *Service {
	return &Service{
		Catalog:        testCatalog(),
		Store:          store,
		Logger:         zerolog.New(io.Discard),
		CurrencySymbol: "€",
	}
}

func intPtr(v int) *int { return &v }

func TestAddItemMergesIdenticalSelections(t *testing.T) {
	svc := newService(NewMemoryStore())
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	in := AddInput{ProductID: 1, Qty: 1, Size: "l", Version: "Jugador", CustomName: "Vini Jr.", CustomNumber: intPtr(7), Patch: "liga"}
	_, err = svc.AddItem(ctx, c.ID, in)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, in)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 2, c.Lines[0].Qty)
	require.Equal(t, "L", c.Lines[0].Size)

	in.CustomNumber = intPtr(9)
	c, err = svc.AddItem(ctx, c.ID, in)
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)

	c, err = svc.AddItem(ctx, c.ID, AddInput{ProductID: 1, Qty: 1, Size: "L", Version: "jugador", CustomName: "Vini Jr.", Patch: "liga"})
	require.NoError(t, err)
	require.Len(t, c.Lines, 3)
	require.Equal(t, 4, c.TotalQty())
}

func TestAddItemRejectsInvalidSelections(t *testing.T) {
	svc := newService(NewMemoryStore())
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, AddInput{ProductID: 1, Qty: 2, Size: "M"})
	require.NoError(t, err)

	cases := map[string]struct {
		in    AddInput
		field string
	}{
		"zero qty":       {in: AddInput{ProductID: 1, Qty: 0}, field: "qty"},
		"qty too high":   {in: AddInput{ProductID: 1, Qty: 100}, field: "qty"},
		"unknown size":   {in: AddInput{ProductID: 1, Qty: 1, Size: "XS"}, field: "size"},
		"odd kids size":  {in: AddInput{ProductID: 3, Qty: 1, Size: "17"}, field: "size"},
		"bad version":    {in: AddInput{ProductID: 1, Qty: 1, Version: "pro"}, field: "version"},
		"name too long":  {in: AddInput{ProductID: 1, Qty: 1, CustomName: "Abcdefghijklmnop"}, field: "customName"},
		"digits in name": {in: AddInput{ProductID: 1, Qty: 1, CustomName: "Messi10"}, field: "customName"},
		"number too big": {in: AddInput{ProductID: 1, Qty: 1, CustomNumber: intPtr(100)}, field: "customNumber"},
		"unknown item":   {in: AddInput{ProductID: 99, Qty: 1}, field: "productId"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, c.ID, tc.in)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidInput))
			var appErr *common.AppError
			require.True(t, errors.As(err, &appErr))
			require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
			require.NotEmpty(t, appErr.Message)
			details, ok := appErr.Details.(map[string]string)
			require.True(t, ok)
			require.Contains(t, details, tc.field)
		})
	}

	after, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, after.Lines, 1)
	require.Equal(t, 2, after.Lines[0].Qty)
}

func TestAddItemAcceptsNameCharacters(t *testing.T) {
	svc := newService(nil)
	c, err := svc.Create(context.Background())
	require.NoError(t, err)
	c, err = svc.AddItem(context.Background(), c.ID, AddInput{ProductID: 1, Qty: 1, Size: "22", CustomName: "O'Neal-Núñez", CustomNumber: intPtr(0)})
	require.NoError(t, err)
	require.Equal(t, "O'Neal-Núñez", c.Lines[0].CustomName)
	require.Equal(t, 0, *c.Lines[0].CustomNumber)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	svc := newService(NewMemoryStore())
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddInput{ProductID: 1, Qty: 1})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddInput{ProductID: 2, Qty: 1})
	require.NoError(t, err)
	first, second := c.Lines[0].ID, c.Lines[1].ID

	c, err = svc.UpdateQty(ctx, c.ID, first, 4)
	require.NoError(t, err)
	require.Equal(t, 4, c.Lines[0].Qty)

	_, err = svc.UpdateQty(ctx, c.ID, first, 120)
	require.ErrorIs(t, err, ErrInvalidInput)

	c, err = svc.UpdateQty(ctx, c.ID, first, 0)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	require.Equal(t, second, c.Lines[0].ID)

	_, err = svc.RemoveItem(ctx, c.ID, first)
	require.ErrorIs(t, err, ErrNotFound)

	c, err = svc.RemoveItem(ctx, c.ID, second)
	require.NoError(t, err)
	require.Empty(t, c.Lines)
}

func TestClearEmitsEvent(t *testing.T) {
	emitter := &captureEmitter{}
	svc := newService(NewMemoryStore())
	svc.Events = emitter
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.Clear(ctx, c.ID, "customer")
	require.NoError(t, err)
	require.Empty(t, emitter.topics)

	_, err = svc.AddItem(ctx, c.ID, AddInput{ProductID: 3, Qty: 2})
	require.NoError(t, err)
	c, err = svc.Clear(ctx, c.ID, "customer")
	require.NoError(t, err)
	require.Empty(t, c.Lines)
	require.Equal(t, []string{events.TopicCartCleared}, emitter.topics)
}

func TestInvalidCartID(t *testing.T) {
	svc := newService(nil)
	_, err := svc.Get(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestWriteThroughSurvivesNewSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	first := newService(store)
	c, err := first.Create(ctx)
	require.NoError(t, err)
	_, err = first.AddItem(ctx, c.ID, AddInput{ProductID: 2, Qty: 3, Size: "XL"})
	require.NoError(t, err)

	second := newService(store)
	restored, err := second.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, restored.Lines, 1)
	require.Equal(t, 3, restored.Lines[0].Qty)
	require.Equal(t, "XL", restored.Lines[0].Size)
}

func TestLoadFailuresYieldEmptyCart(t *testing.T) {
	ctx := context.Background()
	id := "3b8f4c1e-8d0e-4a5f-9a57-2b1f3c4d5e6f"

	var logs bytes.Buffer
	svc := newService(&failingStore{loadErr: errors.New("redis down")})
	svc.Logger = zerolog.New(&logs)
	c, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, c.Lines)
	require.Contains(t, logs.String(), "load cart failed")

	svc = newService(&failingStore{data: []byte(`{"lines": [`)})
	c, err = svc.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, c.Lines)
	require.Equal(t, id, c.ID)
}

func TestSaveFailureKeepsSessionState(t *testing.T) {
	var logs bytes.Buffer
	svc := newService(&failingStore{saveErr: errors.New("quota exceeded")})
	svc.Logger = zerolog.New(&logs)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, AddInput{ProductID: 1, Qty: 2})
	require.NoError(t, err)

	again, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, again.TotalQty())
	require.Contains(t, logs.String(), "persist cart failed")
}

// tickingClock advances one second on every reading.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *tickingClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (s *Service) cachedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func TestReadsOfUnknownCartsRetainNothing(t *testing.T) {
	svc := newService(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		id := uuid.NewString()
		view, err := svc.View(ctx, id)
		require.NoError(t, err)
		require.Equal(t, id, view.ID)
		require.Empty(t, view.Lines)

		_, err = svc.UpdateQty(ctx, id, uuid.NewString(), 1)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = svc.RemoveItem(ctx, id, uuid.NewString())
		require.ErrorIs(t, err, ErrNotFound)
		_, err = svc.Clear(ctx, id, "customer")
		require.NoError(t, err)
	}
	require.Zero(t, svc.cachedSessions())

	id := uuid.NewString()
	c, err := svc.AddItem(ctx, id, AddInput{ProductID: 1, Qty: 1})
	require.NoError(t, err)
	require.Equal(t, id, c.ID)
	require.Equal(t, 1, svc.cachedSessions())
}

func TestIdleCartsAreEvicted(t *testing.T) {
	store := NewMemoryStore()
	clock := &tickingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newService(store)
	svc.Now = clock.Now
	svc.IdleTTL = time.Hour
	ctx := context.Background()

	idle, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, idle.ID, AddInput{ProductID: 2, Qty: 2, Size: "L"})
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	busy, err := svc.Create(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, svc.cachedSessions())

	clock.Advance(20 * time.Minute)
	require.Equal(t, 1, svc.Sweep())
	require.Equal(t, 1, svc.cachedSessions())

	restored, err := svc.Get(ctx, idle.ID)
	require.NoError(t, err)
	require.Equal(t, 2, restored.TotalQty())

	// a stale session found on access is reloaded rather than served
	clock.Advance(2 * time.Hour)
	_, err = svc.Get(ctx, busy.ID)
	require.NoError(t, err)
	restored, err = svc.Get(ctx, idle.ID)
	require.NoError(t, err)
	require.Equal(t, 2, restored.TotalQty())
	require.Equal(t, 2, svc.cachedSessions())
}

func TestSweepDisabledWithoutIdleTTL(t *testing.T) {
	svc := newService(NewMemoryStore())
	_, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.Zero(t, svc.Sweep())
	require.Equal(t, 1, svc.cachedSessions())
}

func TestCachedCartPicksUpNewerStoredCopy(t *testing.T) {
	store := NewMemoryStore()
	clock := &tickingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a := newService(store)
	a.Now = clock.Now
	b := newService(store)
	b.Now = clock.Now
	ctx := context.Background()

	c, err := a.Create(ctx)
	require.NoError(t, err)
	_, err = a.AddItem(ctx, c.ID, AddInput{ProductID: 1, Qty: 1, Size: "M"})
	require.NoError(t, err)

	view, err := b.View(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, view.Result.TotalQty)

	_, err = a.AddItem(ctx, c.ID, AddInput{ProductID: 2, Qty: 3, Size: "L"})
	require.NoError(t, err)
	view, err = b.View(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 4, view.Result.TotalQty)

	_, err = b.Clear(ctx, c.ID, "customer")
	require.NoError(t, err)
	again, err := a.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, again.Lines)
}

func TestCheckoutLeavesCartOnCallbackError(t *testing.T) {
	emitter := &captureEmitter{}
	svc := newService(NewMemoryStore())
	svc.Events = emitter
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, AddInput{ProductID: 1, Qty: 2})
	require.NoError(t, err)

	boom := errors.New("publish failed")
	_, err = svc.Checkout(ctx, c.ID, func(context.Context, View) error { return boom })
	require.ErrorIs(t, err, boom)
	still, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, still.TotalQty())
	require.Empty(t, emitter.topics)

	view, err := svc.Checkout(ctx, c.ID, func(_ context.Context, v View) error {
		require.Equal(t, 2, v.Result.TotalQty)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	after, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, after.Lines)
	require.Equal(t, []string{events.TopicCartCleared}, emitter.topics)
}

func TestDescriptor(t *testing.T) {
	ln := Line{Size: "L", Version: VersionPlayer, CustomName: "PEDRI", CustomNumber: intPtr(8), Patch: "liga"}
	require.Equal(t, "L | Versión Jugador | PEDRI | 8 | Parche LaLiga", ln.Descriptor())

	ln = Line{Version: VersionFan, Patch: "copa-rey"}
	require.Equal(t, "Versión Aficionado | copa-rey", ln.Descriptor())

	ln = Line{CustomNumber: intPtr(0)}
	require.Equal(t, "0", ln.Descriptor())

	require.Equal(t, "", Line{}.Descriptor())
}

func TestViewPricesAgainstLiveCatalog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id := "9f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f"
	require.NoError(t, store.Save(ctx, id, []byte(`{
		"id": "`+id+`",
		"lines": [
			{"id": "a", "productId": 1, "qty": 2, "size": "M"},
			{"id": "b", "productId": 999, "qty": 4},
			{"id": "c", "productId": 2, "qty": 1, "version": "jugador", "customName": "JORDAN", "customNumber": 23, "patch": "nba-75"},
			{"id": "d", "productId": 3, "qty": 0}
		]
	}`)))

	svc := newService(store)
	view, err := svc.View(ctx, id)
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	require.Equal(t, "19.90 €", view.Lines[0].UnitPrice)
	require.Equal(t, "39.80 €", view.Lines[0].LineTotal)
	require.Equal(t, "24.90 €", view.Lines[1].UnitPrice)
	require.Equal(t, "30.00 €", view.Lines[1].OldPrice)
	require.Equal(t, "Versión Jugador | JORDAN | 23 | Parche NBA 75 Aniversario", view.Lines[1].Descriptor)

	// 3 units: popular pack plus 5.00 nba surcharge
	require.Equal(t, 3, view.Pricing.TotalQty)
	require.Equal(t, "61.90", view.Pricing.Subtotal)
	require.Equal(t, "0.00", view.Pricing.Shipping)
	require.Equal(t, "61.90 €", view.Pricing.Display.Total)
	require.Equal(t, "PACK POPULAR", view.Pricing.BadgeLabel)
}

func TestQuote(t *testing.T) {
	svc := newService(nil)
	view, err := svc.Quote(context.Background(), QuoteInput{Items: []QuoteItem{{ProductID: 2, Qty: 1}}})
	require.NoError(t, err)
	require.Equal(t, "24.90", view.Pricing.Subtotal)
	require.Equal(t, "1.90", view.Pricing.Shipping)
	require.Equal(t, "26.80", view.Pricing.Total)

	view, err = svc.Quote(context.Background(), QuoteInput{Items: []QuoteItem{{ProductID: 1, Qty: 15}, {ProductID: 404, Qty: 3}}})
	require.NoError(t, err)
	require.Equal(t, "257.70", view.Pricing.Total)
	require.Equal(t, "MEGAPACK x3", view.Pricing.BadgeLabel)
	require.Len(t, view.Lines, 1)

	_, err = svc.Quote(context.Background(), QuoteInput{Items: []QuoteItem{{ProductID: 1, Qty: 0}}})
	require.ErrorIs(t, err, ErrInvalidInput)
}
